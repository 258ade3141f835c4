package models

import (
	"strings"
	"unicode"
)

// PropagationFormat is the file format of a downstream config file
type PropagationFormat string

const (
	FormatDotenv          PropagationFormat = "dotenv"
	FormatJSON            PropagationFormat = "json"
	FormatSourceConstants PropagationFormat = "source-constants"
	FormatSubgraph        PropagationFormat = "subgraph"
)

// Valid reports whether the format is supported
func (f PropagationFormat) Valid() bool {
	switch f {
	case FormatDotenv, FormatJSON, FormatSourceConstants, FormatSubgraph:
		return true
	}
	return false
}

// DefaultManagedKeyPattern matches keys the propagator owns
const DefaultManagedKeyPattern = `_ADDRESS$`

// KeyCase controls how a contract name is turned into an output key
type KeyCase string

const (
	KeyCaseUpperSnake KeyCase = "upper-snake" // DungeonMaster -> DUNGEON_MASTER
	KeyCaseCamel      KeyCase = "camel"       // DungeonMaster -> dungeonMaster
	KeyCaseAsIs       KeyCase = "as-is"
)

// KeyMappingRule maps a logical contract name onto an output key
type KeyMappingRule struct {
	Prefix    string            `json:"prefix,omitempty"`    // e.g. "VITE_"
	Suffix    string            `json:"suffix,omitempty"`    // e.g. "_ADDRESS"
	Case      KeyCase           `json:"case,omitempty"`      // default upper-snake
	Overrides map[string]string `json:"overrides,omitempty"` // contract name -> full key
	Include   []string          `json:"include,omitempty"`   // restrict to these contracts
}

// PropagationTarget is one downstream file that receives contract addresses
type PropagationTarget struct {
	FilePath          string            `json:"filePath"`
	Format            PropagationFormat `json:"format"`
	KeyMappingRule    KeyMappingRule    `json:"keyMappingRule"`
	ManagedKeyPattern string            `json:"managedKeyPattern,omitempty"`
	JSONPath          string            `json:"jsonPath,omitempty"`     // dot path of the address object (json)
	LineTemplate      string            `json:"lineTemplate,omitempty"` // source-constants line template
}

// Includes reports whether the contract is mapped by this target
func (t *PropagationTarget) Includes(name string) bool {
	if len(t.KeyMappingRule.Include) == 0 {
		return true
	}
	for _, n := range t.KeyMappingRule.Include {
		if n == name {
			return true
		}
	}
	return false
}

// KeyFor applies the key mapping rule to a contract name
func (t *PropagationTarget) KeyFor(name string) string {
	rule := t.KeyMappingRule
	if key, ok := rule.Overrides[name]; ok {
		return key
	}

	keyCase := rule.Case
	if keyCase == "" && t.Format == FormatSubgraph {
		// subgraph data sources are named after the contract
		keyCase = KeyCaseAsIs
	}

	var base string
	switch keyCase {
	case KeyCaseAsIs:
		base = name
	case KeyCaseCamel:
		base = ToCamel(name)
	default:
		base = ToUpperSnake(name)
	}

	suffix := rule.Suffix
	if suffix == "" && keyCase != KeyCaseAsIs && t.Format != FormatSubgraph {
		if keyCase == KeyCaseCamel {
			suffix = "Address"
		} else {
			suffix = "_ADDRESS"
		}
	}
	return rule.Prefix + base + suffix
}

// ToUpperSnake converts DungeonMaster / VRFManager / dungeonCore to
// DUNGEON_MASTER / VRF_MANAGER / DUNGEON_CORE
func ToUpperSnake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if r == '-' || r == ' ' || r == '.' {
			b.WriteRune('_')
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ToCamel lower-cases the leading word of a contract name
func ToCamel(name string) string {
	runes := []rune(name)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// keep the last capital of an acronym when a lowercase letter follows
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
