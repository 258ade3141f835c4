package main

import (
	"os"

	"github.com/dungeondelvers/delvectl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
