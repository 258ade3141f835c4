package propagation

import "github.com/dungeondelvers/delvectl/internal/usecase"

// Formatters returns a formatter for every supported target format
func Formatters() []usecase.ConfigFormatter {
	return []usecase.ConfigFormatter{
		NewDotenvFormatter(),
		NewJSONFormatter(),
		NewConstantsFormatter(),
		NewSubgraphFormatter(),
	}
}
