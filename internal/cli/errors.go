package cli

import (
	"errors"
	"strings"

	"github.com/dungeondelvers/delvectl/internal/cli/render"
	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// formatError renders a command error for the terminal
func formatError(err error) string {
	var cyclic *domain.CyclicDependencyError
	switch {
	case errors.Is(err, usecase.ErrAborted):
		return render.FormatError("aborted, nothing was sent")
	case errors.As(err, &cyclic):
		return render.FormatError("dependency cycle between " + strings.Join(cyclic.Contracts, " -> "))
	}
	return render.FormatError(err.Error())
}
