// Package defs holds the definition model shared by the loader, expander
// and registry: an insertion-ordered mapping type, the definition store
// keyed by category and id, and the component invocation variant.
package defs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed mapping that preserves insertion order.
// All definition bodies, overrides and expanded records use it so that
// downstream serialization stays deterministic.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// MapOf creates a Map from alternating key/value pairs, in the given order.
// It exists mainly for tests and builtin registrations.
func MapOf(pairs ...any) *Map {
	m := NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetString returns the value under key if it is a string.
func (m *Map) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value under key. A new key is appended to the iteration
// order; an existing key keeps its position.
func (m *Map) Set(key string, value any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Delete removes key, preserving the order of the remaining entries.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Pop removes key and returns its value.
func (m *Map) Pop(key string) (any, bool) {
	v, ok := m.Get(key)
	if ok {
		m.Delete(key)
	}
	return v, ok
}

// Update copies every entry of other into m, other's values winning.
func (m *Map) Update(other *Map) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Set(k, other.vals[k])
	}
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := NewMap()
	for _, k := range m.keys {
		out.Set(k, DeepCopy(m.vals[k]))
	}
	return out
}

// DeepCopy copies nested Maps and sequences; scalars are returned as-is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// UnmarshalYAML decodes a YAML mapping node, keeping key order.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	v, err := DecodeNode(node)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("expected a mapping, got %T", v)
	}
	*m = *decoded
	return nil
}

// MarshalYAML encodes the map as a YAML mapping node in insertion order.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.vals[k]); err != nil {
			return nil, fmt.Errorf("encode value for key %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// DecodeNode converts a YAML node into the generic value model: mappings
// become *Map (insertion-ordered), sequences []any, scalars their natural
// Go type. Aliases are followed.
func DecodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeNode(node.Content[0])
	case yaml.AliasNode:
		return DecodeNode(node.Alias)
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			key := keyNode.Value
			if keyNode.Kind == yaml.AliasNode {
				key = keyNode.Alias.Value
			}
			v, err := DecodeNode(valNode)
			if err != nil {
				return nil, err
			}
			m.Set(key, v)
		}
		return m, nil
	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := DecodeNode(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

// ParseDocument decodes YAML text into the generic value model.
func ParseDocument(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return DecodeNode(&root)
}
