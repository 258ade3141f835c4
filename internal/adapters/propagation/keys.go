package propagation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// keyPlan decides, for one target, which existing keys are replaced, which
// are dropped as stale and which are appended
type keyPlan struct {
	values  map[string]usecase.PropagatedValue
	order   []string
	managed *regexp.Regexp
	seen    map[string]bool
	removed map[string]bool
}

func newKeyPlan(target *models.PropagationTarget, values []usecase.PropagatedValue) (*keyPlan, error) {
	pattern := target.ManagedKeyPattern
	if pattern == "" {
		pattern = models.DefaultManagedKeyPattern
	}
	managed, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid managed key pattern %q: %w", pattern, err)
	}

	p := &keyPlan{
		values:  make(map[string]usecase.PropagatedValue, len(values)),
		managed: managed,
		seen:    make(map[string]bool),
		removed: make(map[string]bool),
	}
	for _, v := range values {
		if _, dup := p.values[v.Key]; dup {
			return nil, fmt.Errorf("key %q is mapped from more than one contract", v.Key)
		}
		p.values[v.Key] = v
		p.order = append(p.order, v.Key)
	}
	return p, nil
}

// action is what happens to an existing entry
type action int

const (
	keep action = iota
	replace
	drop
)

func (p *keyPlan) classify(key string) action {
	if _, ok := p.values[key]; ok {
		if p.seen[key] {
			// duplicate definition of a key we already rewrote
			return drop
		}
		p.seen[key] = true
		return replace
	}
	if p.managed.MatchString(key) {
		p.removed[key] = true
		return drop
	}
	return keep
}

// missing returns the values not found in the existing content, in
// registry order
func (p *keyPlan) missing() []usecase.PropagatedValue {
	var out []usecase.PropagatedValue
	for _, k := range p.order {
		if !p.seen[k] {
			out = append(out, p.values[k])
		}
	}
	return out
}

func (p *keyPlan) result(content []byte) *usecase.MergeResult {
	removed := make([]string, 0, len(p.removed))
	for k := range p.removed {
		removed = append(removed, k)
	}
	sort.Strings(removed)

	updated := make([]string, len(p.order))
	copy(updated, p.order)
	return &usecase.MergeResult{Content: content, Updated: updated, Removed: removed}
}

// lineParser extracts the key a line assigns, if any
type lineParser func(line string) (key string, ok bool)

// lineRenderer renders one value, given the line it replaces (empty when
// appended)
type lineRenderer func(v usecase.PropagatedValue, previous string) string

// mergeLines rewrites line-oriented content in place: owned lines are
// replaced where they stand, stale managed lines are dropped and new keys
// are appended at the end
func mergeLines(existing []byte, plan *keyPlan, parse lineParser, render lineRenderer) []byte {
	text := strings.ReplaceAll(string(existing), "\r\n", "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	}

	out := make([]string, 0, len(lines)+len(plan.order))
	for _, line := range lines {
		key, ok := parse(line)
		if !ok {
			out = append(out, line)
			continue
		}
		switch plan.classify(key) {
		case replace:
			out = append(out, render(plan.values[key], line))
		case keep:
			out = append(out, line)
		}
	}
	for _, v := range plan.missing() {
		out = append(out, render(v, ""))
	}

	if len(out) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(out, "\n") + "\n")
}
