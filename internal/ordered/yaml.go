package ordered

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML mapping into the map, preserving the order
// keys appear in the source. Nested mappings decode to plain Go maps.
func (m *Map[K, V]) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got yaml kind %d", value.Kind)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var key K
		if err := value.Content[i].Decode(&key); err != nil {
			return fmt.Errorf("decode key %q: %w", value.Content[i].Value, err)
		}
		var val V
		if err := value.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("decode value for key %q: %w", value.Content[i].Value, err)
		}
		m.Set(key, val)
	}
	return nil
}
