package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ValueRef is one argument slot: either a reference to another contract's
// address or a literal value.
type ValueRef struct {
	Ref   string `json:"ref,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Literal builds a literal ValueRef
func Literal(v any) ValueRef {
	return ValueRef{Value: v}
}

// Ref builds a reference ValueRef
func Ref(name string) ValueRef {
	return ValueRef{Ref: name}
}

// IsRef reports whether the slot references a contract address
func (v ValueRef) IsRef() bool {
	return v.Ref != ""
}

// IsZero reports whether the slot is empty
func (v ValueRef) IsZero() bool {
	return v.Ref == "" && v.Value == nil
}

func (v ValueRef) String() string {
	if v.IsRef() {
		return "@" + v.Ref
	}
	return fmt.Sprint(v.Value)
}

// MarshalJSON renders references as {"ref": name} and literals as themselves
func (v ValueRef) MarshalJSON() ([]byte, error) {
	if v.IsRef() {
		return json.Marshal(map[string]string{"ref": v.Ref})
	}
	return json.Marshal(v.Value)
}

// UnmarshalJSON accepts both shapes produced by MarshalJSON
func (v *ValueRef) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseValueRef(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValueRef converts a decoded manifest value (JSON, YAML or TOML) into a
// ValueRef. Maps with a "ref" key are references, maps with a "value" key are
// explicit literals and anything else is taken literally. Strings of the form
// ${VAR} are expanded from the environment.
func ParseValueRef(raw any) (ValueRef, error) {
	switch val := raw.(type) {
	case nil:
		return ValueRef{}, nil
	case map[string]any:
		if ref, ok := val["ref"]; ok {
			name, ok := ref.(string)
			if !ok || name == "" {
				return ValueRef{}, fmt.Errorf("ref must be a non-empty string, got %v", ref)
			}
			return Ref(name), nil
		}
		if lit, ok := val["value"]; ok {
			return Literal(normalizeLiteral(lit)), nil
		}
		return ValueRef{}, fmt.Errorf("argument object must have a 'ref' or 'value' key")
	case map[any]any:
		converted := make(map[string]any, len(val))
		for k, item := range val {
			converted[fmt.Sprint(k)] = item
		}
		return ParseValueRef(converted)
	default:
		return Literal(normalizeLiteral(val)), nil
	}
}

// ParseValueRefs converts a list of decoded manifest values
func ParseValueRefs(raw []any) ([]ValueRef, error) {
	refs := make([]ValueRef, 0, len(raw))
	for i, item := range raw {
		ref, err := ParseValueRef(item)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func normalizeLiteral(v any) any {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case string:
		return expandEnv(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeLiteral(item)
		}
		return out
	default:
		return v
	}
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.ExpandEnv(s)
	}
	return s
}
