package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/specforge-dev/specforge/internal/bundle"
	"github.com/specforge-dev/specforge/internal/capability"
	"github.com/specforge-dev/specforge/internal/naming"
	"github.com/specforge-dev/specforge/internal/spec"
	"github.com/specforge-dev/specforge/internal/version"
)

const defaultWorkers = 4

// Options parameterizes one orchestrated run.
type Options struct {
	Seed       *capability.Seed
	Language   capability.Language
	Operations []spec.Operation
	// Workers bounds parallel template renders. Zero or negative means
	// the default.
	Workers int
}

// Orchestrator drives the generation state machine for one or more runs.
// It holds no per-run state, so a single instance may serve concurrent
// runs.
type Orchestrator struct {
	locator  *bundle.Locator
	renderer Renderer
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRenderer swaps the template renderer, used by tests and by callers
// embedding a different template engine.
func WithRenderer(r Renderer) OrchestratorOption {
	return func(o *Orchestrator) { o.renderer = r }
}

func NewOrchestrator(locator *bundle.Locator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{locator: locator, renderer: NewTemplateRenderer()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// renderTask pairs one output file with the context it renders under.
// Tasks are indexed so parallel completion cannot reorder results.
type renderTask struct {
	source string
	dest   string
	ctx    *RenderContext
}

// Generate runs the state machine: Validating, Discovering,
// BuildingContext, Rendering, PostProcessing. Any failure is terminal and
// tagged with its stage. A post-processing failure still returns the
// rendered artifacts so callers can inspect what succeeded.
func (o *Orchestrator) Generate(ctx context.Context, opts Options) (*Result, error) {
	// Validating.
	if err := ctx.Err(); err != nil {
		return nil, failed(StageValidating, err)
	}
	if opts.Seed == nil {
		return nil, failed(StageValidating, errors.New("no generation seed"))
	}
	projectName, ok := seedProjectName(opts.Seed)
	if !ok {
		return nil, failed(StageValidating, errors.New("project name is required"))
	}
	if opts.Language == "" {
		return nil, failed(StageValidating, errors.New("target language is required"))
	}

	// Discovering.
	b, err := o.locator.Find(opts.Seed.Protocol, opts.Seed.Role, opts.Language)
	if err != nil {
		return nil, failed(StageDiscovering, err)
	}

	// BuildingContext, once per bundle.
	meta := Metadata{
		Generator: "specforge " + version.Version,
		Protocol:  opts.Seed.Protocol,
		Role:      opts.Seed.Role,
		Language:  opts.Language,
	}
	base := BuildContext(opts.Seed, b, meta, opts.Operations)

	// Rendering.
	tasks := planTasks(b, base, opts.Operations)
	artifacts, err := o.renderAll(ctx, b, tasks, opts.Workers)
	if err != nil {
		return nil, failed(StageRendering, err)
	}

	result := &Result{
		ProjectName: projectName,
		Descriptor:  b.Descriptor,
		Artifacts:   artifacts,
		Directories: b.Manifest.Directories,
		PreGenerate: b.Manifest.Hooks.PreGenerate,
	}

	// PostProcessing. Failures are advisory: the rendered artifacts are
	// returned alongside the error.
	if err := postProcess(result.Artifacts, b.Manifest.Hooks.PostGenerate); err != nil {
		return result, failed(StagePostProcessing, err)
	}
	return result, nil
}

// planTasks expands the manifest's file list into concrete render tasks in
// declared file order, with for-each files fanned out in operation order.
func planTasks(b *bundle.Bundle, base *RenderContext, ops []spec.Operation) []renderTask {
	var tasks []renderTask
	for _, f := range b.Manifest.Files {
		fileCtx := base
		if f.Context != nil && f.Context.Len() > 0 {
			fileCtx = base.With(f.Context)
		}
		if f.ForEach == bundle.ForEachOperation {
			for _, op := range ops {
				tasks = append(tasks, renderTask{
					source: f.Source,
					dest:   bundle.ExpandDestination(f.Destination, naming.Snake(op.ID)),
					ctx:    fileCtx.WithOperation(op),
				})
			}
			continue
		}
		tasks = append(tasks, renderTask{source: f.Source, dest: f.Destination, ctx: fileCtx})
	}
	return tasks
}

// renderAll renders every task with bounded parallelism. Results land in
// their task slot, so the returned slice follows declared order no matter
// which render finishes first. One failure cancels the group and fails the
// whole stage.
func (o *Orchestrator) renderAll(ctx context.Context, b *bundle.Bundle, tasks []renderTask, workers int) ([]Artifact, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}
	results := make([]Artifact, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			body, err := b.Template(task.source)
			if err != nil {
				return err
			}
			content, err := o.renderer.Render(task.source, body, task.ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", task.dest, err)
			}
			results[i] = Artifact{Path: task.dest, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func seedProjectName(seed *capability.Seed) (string, bool) {
	v, ok := seed.Variables.Get("project_name")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
