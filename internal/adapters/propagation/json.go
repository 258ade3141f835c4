package propagation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// JSONFormatter maintains address keys in the object found at the target
// jsonPath (the document root when empty). Everything outside the managed
// keys is preserved; output keys are sorted.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format implements usecase.ConfigFormatter
func (f *JSONFormatter) Format() models.PropagationFormat {
	return models.FormatJSON
}

// Merge implements usecase.ConfigFormatter
func (f *JSONFormatter) Merge(existing []byte, target *models.PropagationTarget, values []usecase.PropagatedValue) (*usecase.MergeResult, error) {
	plan, err := newKeyPlan(target, values)
	if err != nil {
		return nil, err
	}

	root := map[string]any{}
	if len(bytes.TrimSpace(existing)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(existing))
		dec.UseNumber()
		if err := dec.Decode(&root); err != nil {
			return nil, fmt.Errorf("existing content is not a JSON object: %w", err)
		}
	}

	obj, err := objectAt(root, target.JSONPath)
	if err != nil {
		return nil, err
	}

	for key := range obj {
		if plan.classify(key) == drop {
			delete(obj, key)
		}
	}
	for _, k := range plan.order {
		obj[k] = plan.values[k].Address.Hex()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return plan.result(buf.Bytes()), nil
}

// objectAt walks a dot path, creating intermediate objects as needed
func objectAt(root map[string]any, path string) (map[string]any, error) {
	current := root
	if path == "" {
		return current, nil
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("invalid jsonPath %q", path)
		}
		next, exists := current[part]
		if !exists || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("jsonPath %q: %q is not an object", path, part)
		}
		current = child
	}
	return current, nil
}

var _ usecase.ConfigFormatter = (*JSONFormatter)(nil)
