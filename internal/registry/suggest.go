package registry

import (
	"fmt"

	"github.com/sahilm/fuzzy"
)

// didYouMean suggests the best fuzzy match among declared contract names
// for a misspelled reference
func didYouMean(name string, declared []string) string {
	matches := fuzzy.Find(name, declared)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
}
