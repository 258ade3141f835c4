package propagation

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// SubgraphFormatter updates source.address and source.startBlock of the data
// sources in a subgraph.yaml whose name matches a mapped key. The rest of the
// document, comments included, is left alone.
type SubgraphFormatter struct{}

// NewSubgraphFormatter creates a subgraph manifest formatter
func NewSubgraphFormatter() *SubgraphFormatter {
	return &SubgraphFormatter{}
}

// Format implements usecase.ConfigFormatter
func (f *SubgraphFormatter) Format() models.PropagationFormat {
	return models.FormatSubgraph
}

// Merge implements usecase.ConfigFormatter
func (f *SubgraphFormatter) Merge(existing []byte, target *models.PropagationTarget, values []usecase.PropagatedValue) (*usecase.MergeResult, error) {
	if len(bytes.TrimSpace(existing)) == 0 {
		return nil, fmt.Errorf("subgraph manifest is missing or empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(existing, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse subgraph manifest: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("subgraph manifest has no document")
	}

	sources := mappingValue(doc.Content[0], "dataSources")
	if sources == nil || sources.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("subgraph manifest has no dataSources list")
	}

	byKey := make(map[string]usecase.PropagatedValue, len(values))
	for _, v := range values {
		byKey[v.Key] = v
	}

	var updated []string
	for _, ds := range sources.Content {
		name := mappingValue(ds, "name")
		if name == nil {
			continue
		}
		v, ok := byKey[name.Value]
		if !ok {
			continue
		}
		source := mappingValue(ds, "source")
		if source == nil || source.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("data source %q has no source mapping", name.Value)
		}
		setScalar(source, "address", &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Style: yaml.DoubleQuotedStyle,
			Value: v.Address.Hex(),
		})
		if v.Block > 0 {
			setScalar(source, "startBlock", &yaml.Node{
				Kind:  yaml.ScalarNode,
				Tag:   "!!int",
				Value: strconv.FormatUint(v.Block, 10),
			})
		}
		updated = append(updated, name.Value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode subgraph manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return &usecase.MergeResult{Content: buf.Bytes(), Updated: updated}, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setScalar(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			value.LineComment = mapping.Content[i+1].LineComment
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

var _ usecase.ConfigFormatter = (*SubgraphFormatter)(nil)
