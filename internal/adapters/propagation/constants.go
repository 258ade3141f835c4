package propagation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// DefaultLineTemplate renders a TypeScript constant
const DefaultLineTemplate = "export const {key} = '{address}';"

// ConstantsFormatter maintains one constant declaration per address in a
// source file. The declaration shape comes from the target line template,
// which may use {key}, {address} and {block}.
type ConstantsFormatter struct{}

// NewConstantsFormatter creates a source-constants formatter
func NewConstantsFormatter() *ConstantsFormatter {
	return &ConstantsFormatter{}
}

// Format implements usecase.ConfigFormatter
func (f *ConstantsFormatter) Format() models.PropagationFormat {
	return models.FormatSourceConstants
}

// Merge implements usecase.ConfigFormatter
func (f *ConstantsFormatter) Merge(existing []byte, target *models.PropagationTarget, values []usecase.PropagatedValue) (*usecase.MergeResult, error) {
	tmpl := target.LineTemplate
	if tmpl == "" {
		tmpl = DefaultLineTemplate
	}
	if !strings.Contains(tmpl, "{key}") || !strings.Contains(tmpl, "{address}") {
		return nil, fmt.Errorf("line template %q must contain {key} and {address}", tmpl)
	}

	matcher, err := declarationMatcher(tmpl)
	if err != nil {
		return nil, err
	}
	plan, err := newKeyPlan(target, values)
	if err != nil {
		return nil, err
	}

	parse := func(line string) (string, bool) {
		m := matcher.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
	render := func(v usecase.PropagatedValue, _ string) string {
		return strings.NewReplacer(
			"{key}", v.Key,
			"{address}", v.Address.Hex(),
			"{block}", strconv.FormatUint(v.Block, 10),
		).Replace(tmpl)
	}

	content := mergeLines(existing, plan, parse, render)
	return plan.result(content), nil
}

// declarationMatcher builds a regexp capturing the identifier a line
// declares, from the words of the template that precede {key}
func declarationMatcher(tmpl string) (*regexp.Regexp, error) {
	prefix := tmpl[:strings.Index(tmpl, "{key}")]
	words := strings.Fields(prefix)

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	pattern := `^\s*` + strings.Join(quoted, `\s+`)
	if len(quoted) > 0 && strings.TrimRight(prefix, " \t") != prefix {
		pattern += `\s+`
	}
	pattern += `([A-Za-z_$][A-Za-z0-9_$]*)(?:[^A-Za-z0-9_$]|$)`
	return regexp.Compile(pattern)
}

var _ usecase.ConfigFormatter = (*ConstantsFormatter)(nil)
