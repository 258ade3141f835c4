package propagation

import (
	"strings"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// DotenvFormatter maintains KEY=0x... lines in a .env file. Comments, blank
// lines and unrelated keys are kept as they are.
type DotenvFormatter struct{}

// NewDotenvFormatter creates a dotenv formatter
func NewDotenvFormatter() *DotenvFormatter {
	return &DotenvFormatter{}
}

// Format implements usecase.ConfigFormatter
func (f *DotenvFormatter) Format() models.PropagationFormat {
	return models.FormatDotenv
}

// Merge implements usecase.ConfigFormatter
func (f *DotenvFormatter) Merge(existing []byte, target *models.PropagationTarget, values []usecase.PropagatedValue) (*usecase.MergeResult, error) {
	plan, err := newKeyPlan(target, values)
	if err != nil {
		return nil, err
	}
	content := mergeLines(existing, plan, parseDotenvKey, renderDotenvLine)
	return plan.result(content), nil
}

func parseDotenvKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	eq := strings.IndexByte(trimmed, '=')
	if eq <= 0 {
		return "", false
	}
	key := strings.TrimSpace(trimmed[:eq])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", false
	}
	return key, true
}

func renderDotenvLine(v usecase.PropagatedValue, previous string) string {
	line := v.Key + "=" + v.Address.Hex()
	if strings.HasPrefix(strings.TrimSpace(previous), "export ") {
		line = "export " + line
	}
	return line
}

var _ usecase.ConfigFormatter = (*DotenvFormatter)(nil)
