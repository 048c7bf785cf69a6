// Package bundle locates and loads template bundles, the unit of template
// discovery. A bundle is a directory holding a manifest.yaml and the
// template files it references, addressed by the exact protocol, role and
// language triple it serves.
package bundle

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/specforge-dev/specforge/internal/capability"
)

// ErrNotFound reports that no bundle is registered for a requested triple.
var ErrNotFound = errors.New("template bundle not found")

// NotFoundError carries the triple that failed to resolve. It unwraps to
// ErrNotFound.
type NotFoundError struct {
	Descriptor Descriptor
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no template bundle for %s", e.Descriptor)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Descriptor identifies a bundle by the triple it serves.
type Descriptor struct {
	Protocol capability.Protocol
	Role     capability.Role
	Language capability.Language
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s/%s", d.Protocol, d.Role, d.Language)
}

// Bundle is one loaded template set.
type Bundle struct {
	Descriptor Descriptor
	Manifest   *Manifest

	fsys fs.FS
}

// Template returns the raw body of a template file inside the bundle.
func (b *Bundle) Template(name string) ([]byte, error) {
	data, err := fs.ReadFile(b.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: template %q: %w", b.Descriptor, name, err)
	}
	return data, nil
}
