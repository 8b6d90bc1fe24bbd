package filter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML converts a parsed YAML node into raw filter values.
//
// Works on the node tree rather than a decoded map so mapping order and
// duplicate keys survive, exactly as with Decode.
func FromYAML(node *yaml.Node) (any, error) {
	if node == nil {
		return nil, nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return FromYAML(node.Content[0])

	case yaml.AliasNode:
		return FromYAML(node.Alias)

	case yaml.MappingNode:
		obj := &Object{Members: make([]Member, 0, len(node.Content)/2)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			val, err := FromYAML(valNode)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", keyNode.Value, err)
			}
			obj.Members = append(obj.Members, Member{Key: keyNode.Value, Value: val})
		}
		return obj, nil

	case yaml.SequenceNode:
		arr := make([]any, 0, len(node.Content))
		for i, elem := range node.Content {
			val, err := FromYAML(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, val)
		}
		return arr, nil

	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %v", node.Line, node.Kind)
	}
}
