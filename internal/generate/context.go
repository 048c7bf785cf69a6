package generate

import (
	"github.com/specforge-dev/specforge/internal/bundle"
	"github.com/specforge-dev/specforge/internal/capability"
	"github.com/specforge-dev/specforge/internal/naming"
	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

// Metadata is the run-level information exposed to every template.
type Metadata struct {
	Generator string
	Protocol  capability.Protocol
	Role      capability.Role
	Language  capability.Language
}

// RenderContext is the flattened variable set handed to the renderer.
// Layers are merged last-write-wins in a fixed precedence order: bundle
// manifest variables, then run metadata, then the protocol seed, with
// per-file overrides and per-operation injection layered on top via With
// and WithOperation.
type RenderContext struct {
	vars *ordered.Map[string, any]
}

// BuildContext flattens the seed and bundle into the base render context
// shared by every file of the bundle. Operations are always exposed under
// the "operations" key, possibly empty.
func BuildContext(seed *capability.Seed, b *bundle.Bundle, meta Metadata, ops []spec.Operation) *RenderContext {
	vars := ordered.New[string, any]()

	if b != nil && b.Manifest != nil && b.Manifest.Variables != nil {
		for k, v := range b.Manifest.Variables.All() {
			vars.Set(k, v)
		}
	}

	vars.Set("generator", meta.Generator)
	vars.Set("protocol", string(meta.Protocol))
	vars.Set("role", string(meta.Role))
	vars.Set("language", string(meta.Language))

	if seed != nil {
		for k, v := range seed.Variables.All() {
			vars.Set(k, v)
		}
	}

	if ops == nil {
		ops = []spec.Operation{}
	}
	vars.Set("operations", ops)

	return &RenderContext{vars: vars}
}

// With returns a copy of the context with extra variables layered on top.
func (c *RenderContext) With(extra *ordered.Map[string, any]) *RenderContext {
	next := c.clone()
	if extra != nil {
		for k, v := range extra.All() {
			next.vars.Set(k, v)
		}
	}
	return next
}

// WithOperation returns a copy of the context carrying one operation under
// the fixed "operation" key, plus its snake-cased id as "operation_id".
func (c *RenderContext) WithOperation(op spec.Operation) *RenderContext {
	next := c.clone()
	next.vars.Set("operation", op)
	next.vars.Set("operation_id", naming.Snake(op.ID))
	return next
}

// Vars materializes the context for template execution.
func (c *RenderContext) Vars() map[string]any {
	out := make(map[string]any, c.vars.Len())
	for k, v := range c.vars.All() {
		out[k] = v
	}
	return out
}

// Value reports one variable, mostly for tests and plan display.
func (c *RenderContext) Value(key string) (any, bool) {
	return c.vars.Get(key)
}

// Keys returns the variable names in layering order.
func (c *RenderContext) Keys() []string {
	return c.vars.Keys()
}

func (c *RenderContext) clone() *RenderContext {
	return &RenderContext{vars: c.vars.Clone()}
}
