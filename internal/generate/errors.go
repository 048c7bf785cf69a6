package generate

import "fmt"

// Stage names one phase of the generation pipeline. Every error that
// crosses the package boundary is tagged with the stage it occurred in.
type Stage string

const (
	StageLoading         Stage = "loading"
	StageExtracting      Stage = "extracting"
	StagePreparing       Stage = "preparing"
	StageValidating      Stage = "validating"
	StageDiscovering     Stage = "discovering"
	StageBuildingContext Stage = "building-context"
	StageRendering       Stage = "rendering"
	StagePostProcessing  Stage = "post-processing"
	StageWriting         Stage = "writing"
	StageCompleted       Stage = "completed"
)

// GenerationError wraps a failure with the pipeline stage it happened in.
type GenerationError struct {
	Stage Stage
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func failed(stage Stage, cause error) *GenerationError {
	return &GenerationError{Stage: stage, Cause: cause}
}

// RenderError wraps a failure from the template renderer. The cause is
// opaque to the pipeline, only the template name is added.
type RenderError struct {
	Template string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// PostProcessError reports a failed post-generation hook. Artifacts
// rendered before the failure are still returned to the caller.
type PostProcessError struct {
	Hook  string
	Cause error
}

func (e *PostProcessError) Error() string {
	return fmt.Sprintf("post-generate hook %q: %v", e.Hook, e.Cause)
}

func (e *PostProcessError) Unwrap() error { return e.Cause }
