package bundle

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specforge-dev/specforge/internal/ordered"
)

// ForEachOperation is the only fan-out directive a manifest may declare. A
// file carrying it is rendered once per extracted operation instead of once
// per bundle.
const ForEachOperation = "operation"

// destinationPlaceholders are the tokens a fan-out destination must contain
// so each rendered copy lands on its own path.
var destinationPlaceholders = []string{"{{operation_id}}", "{operation_id}", "{{endpoint}}"}

// Manifest is the parsed manifest.yaml of one template bundle. It names the
// bundle, declares every file to render and carries bundle-scoped defaults.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`

	// Protocol, Role and Language are optional in the manifest. The bundle
	// location is authoritative; when set these must agree with it.
	Protocol string `yaml:"protocol"`
	Role     string `yaml:"role"`
	Language string `yaml:"language"`

	Files       []FileSpec `yaml:"files"`
	Directories []string   `yaml:"directories"`
	Hooks       Hooks      `yaml:"hooks"`

	// Variables are bundle-author defaults, lowest layer of the render
	// context. Declaration order is kept.
	Variables *ordered.Map[string, any] `yaml:"variables"`
}

// FileSpec declares one template file of a bundle.
type FileSpec struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	// ForEach is empty for a render-once file or ForEachOperation for a
	// file rendered per operation.
	ForEach string `yaml:"for_each"`
	// Context holds per-file variables layered on top of everything else.
	Context *ordered.Map[string, any] `yaml:"context"`
}

// Hooks carries the manifest's generation hooks. Pre-generate hooks are
// advisory data surfaced on the plan; post-generate hooks name built-in
// artifact transforms applied after rendering.
type Hooks struct {
	PreGenerate  CommandList `yaml:"pre_generate"`
	PostGenerate CommandList `yaml:"post_generate"`
}

// CommandList decodes from either a single YAML scalar or a sequence of
// scalars, so manifests can write one hook without list syntax.
type CommandList []string

func (c *CommandList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		if strings.TrimSpace(single) == "" {
			*c = nil
			return nil
		}
		*c = CommandList{single}
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*c = CommandList(many)
	default:
		return fmt.Errorf("expected a command or a list of commands, got yaml kind %d", value.Kind)
	}
	return nil
}

// ParseManifest decodes and validates a manifest.yaml body.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structural rules every manifest must satisfy.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("manifest %q: version is required", m.Name)
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest %q: declares no files", m.Name)
	}
	seen := make(map[string]struct{}, len(m.Files))
	for i, f := range m.Files {
		if strings.TrimSpace(f.Source) == "" {
			return fmt.Errorf("manifest %q: file %d: source is required", m.Name, i)
		}
		if strings.TrimSpace(f.Destination) == "" {
			return fmt.Errorf("manifest %q: file %q: destination is required", m.Name, f.Source)
		}
		switch f.ForEach {
		case "":
			if _, dup := seen[f.Destination]; dup {
				return fmt.Errorf("manifest %q: duplicate destination %q", m.Name, f.Destination)
			}
			seen[f.Destination] = struct{}{}
		case ForEachOperation:
			if !hasPlaceholder(f.Destination) {
				return fmt.Errorf("manifest %q: file %q: per-operation destination needs an {{operation_id}} placeholder", m.Name, f.Source)
			}
		default:
			return fmt.Errorf("manifest %q: file %q: unknown for_each directive %q (only %q is supported)", m.Name, f.Source, f.ForEach, ForEachOperation)
		}
	}
	return nil
}

func hasPlaceholder(dest string) bool {
	for _, p := range destinationPlaceholders {
		if strings.Contains(dest, p) {
			return true
		}
	}
	return false
}

// ExpandDestination substitutes every operation id placeholder in a
// fan-out destination with the given snake-cased id.
func ExpandDestination(dest, snakeID string) string {
	for _, p := range destinationPlaceholders {
		dest = strings.ReplaceAll(dest, p, snakeID)
	}
	return dest
}
