// Package generate orchestrates the pipeline from a loaded contract to a
// rendered project: context building, template rendering, post-processing
// and artifact persistence.
package generate

import "github.com/specforge-dev/specforge/internal/bundle"

// Artifact is one rendered output file. Path is slash-separated and
// relative to the output root.
type Artifact struct {
	Path       string
	Content    []byte
	Executable bool
}

// Result is the outcome of a successful run, or the partial outcome
// accompanying a post-processing error.
type Result struct {
	// ProjectName is the resolved name the project was seeded with, after
	// any defaulting or derivation from the contract title.
	ProjectName string

	Descriptor bundle.Descriptor
	Artifacts  []Artifact
	// Directories lists extra directories the bundle wants created even
	// when no artifact lands in them.
	Directories []string
	// PreGenerate carries the bundle's advisory pre-generation hooks for
	// display. The pipeline never executes them.
	PreGenerate []string
}
