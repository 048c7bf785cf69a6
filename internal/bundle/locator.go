package bundle

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/specforge-dev/specforge/internal/capability"
)

//go:embed templates
var embeddedTemplates embed.FS

// manifestName is the file every bundle directory must contain.
const manifestName = "manifest.yaml"

// Locator resolves protocol, role and language triples to loaded bundles.
// It is built once from the embedded template tree plus an optional
// override directory and is immutable afterwards, so lookups need no
// locking. An override bundle replaces the embedded bundle for the same
// triple wholesale; there is no per-file merging.
type Locator struct {
	bundles map[Descriptor]*Bundle
}

// NewLocator loads every embedded bundle, then every bundle under
// overrideDir when it is non-empty. overrideDir follows the same
// <protocol>/<role>/<language>/manifest.yaml layout as the embedded tree.
func NewLocator(overrideDir string) (*Locator, error) {
	loc := &Locator{bundles: make(map[Descriptor]*Bundle)}

	embedded, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	if err := loc.load(embedded); err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}

	if overrideDir != "" {
		info, err := os.Stat(overrideDir)
		if err != nil {
			return nil, fmt.Errorf("template dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template dir %q is not a directory", overrideDir)
		}
		if err := loc.load(os.DirFS(overrideDir)); err != nil {
			return nil, fmt.Errorf("template dir %q: %w", overrideDir, err)
		}
	}
	return loc, nil
}

// load registers every bundle found in fsys. A later call wins on triple
// collision, which is what makes the override directory authoritative.
func (l *Locator) load(fsys fs.FS) error {
	matches, err := fs.Glob(fsys, path.Join("*", "*", "*", manifestName))
	if err != nil {
		return err
	}
	for _, match := range matches {
		dir := path.Dir(match)
		desc, err := parseDescriptor(dir)
		if err != nil {
			return fmt.Errorf("bundle %q: %w", dir, err)
		}

		data, err := fs.ReadFile(fsys, match)
		if err != nil {
			return fmt.Errorf("bundle %s: %w", desc, err)
		}
		manifest, err := ParseManifest(data)
		if err != nil {
			return fmt.Errorf("bundle %s: %w", desc, err)
		}
		if err := checkDeclaredTriple(desc, manifest); err != nil {
			return err
		}

		sub, err := fs.Sub(fsys, dir)
		if err != nil {
			return fmt.Errorf("bundle %s: %w", desc, err)
		}
		l.bundles[desc] = &Bundle{Descriptor: desc, Manifest: manifest, fsys: sub}
	}
	return nil
}

// Find returns the bundle registered for the exact triple. There is no
// fuzzy matching and no language defaulting; a miss is a NotFoundError.
func (l *Locator) Find(protocol capability.Protocol, role capability.Role, language capability.Language) (*Bundle, error) {
	desc := Descriptor{Protocol: protocol, Role: role, Language: language}
	b, ok := l.bundles[desc]
	if !ok {
		return nil, &NotFoundError{Descriptor: desc}
	}
	return b, nil
}

// List returns every registered descriptor sorted for display.
func (l *Locator) List() []Descriptor {
	out := make([]Descriptor, 0, len(l.bundles))
	for desc := range l.bundles {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func parseDescriptor(dir string) (Descriptor, error) {
	segments := strings.Split(dir, "/")
	if len(segments) != 3 {
		return Descriptor{}, fmt.Errorf("expected <protocol>/<role>/<language> layout, got %q", dir)
	}
	protocol, err := capability.ParseProtocol(segments[0])
	if err != nil {
		return Descriptor{}, err
	}
	role, err := capability.ParseRole(segments[1])
	if err != nil {
		return Descriptor{}, err
	}
	language, err := capability.ParseLanguage(segments[2])
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Protocol: protocol, Role: role, Language: language}, nil
}

// checkDeclaredTriple rejects a manifest whose declared protocol, role or
// language disagrees with the directory it lives in.
func checkDeclaredTriple(desc Descriptor, m *Manifest) error {
	if m.Protocol != "" && m.Protocol != string(desc.Protocol) {
		return fmt.Errorf("bundle %s: manifest declares protocol %q", desc, m.Protocol)
	}
	if m.Role != "" && m.Role != string(desc.Role) {
		return fmt.Errorf("bundle %s: manifest declares role %q", desc, m.Role)
	}
	if m.Language != "" && m.Language != string(desc.Language) {
		return fmt.Errorf("bundle %s: manifest declares language %q", desc, m.Language)
	}
	return nil
}
