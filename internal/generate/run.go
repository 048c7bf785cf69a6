package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/specforge-dev/specforge/internal/bundle"
	"github.com/specforge-dev/specforge/internal/capability"
	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

// RunOptions parameterizes a full pipeline run from contract location to
// rendered artifacts.
type RunOptions struct {
	// Input is the contract path or URL. It may be empty for roles that
	// do not require a document.
	Input string

	Protocol string
	Role     string
	Language string

	// ProjectName defaults to a name derived from the contract title, or
	// to "<protocol>-<role>" when no contract is loaded.
	ProjectName string
	Version     string

	// BaseURL overrides the contract's server URL when set.
	BaseURL string

	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	PathPatterns []string

	// TemplateDir points at an override bundle tree. Ignored when a
	// Locator is injected.
	TemplateDir string
	Workers     int
	Lenient     bool

	// HandlerOptions are forwarded to the protocol handler and land last
	// in the seed, overriding its defaults.
	HandlerOptions *ordered.Map[string, any]

	// Registry and Locator default to the built-in ones when nil.
	Registry *capability.Registry
	Locator  *bundle.Locator

	// Warn receives soft-degradation notices from loading, resolution and
	// extraction. Nil means they are dropped.
	Warn func(string)
}

// Run executes the whole pipeline: load, extract, prepare, then the
// orchestrated generation stages. Every returned error is stage-tagged.
func Run(ctx context.Context, opts RunOptions) (*Result, error) {
	warn := func(format string, args ...any) {
		if opts.Warn != nil {
			opts.Warn(fmt.Sprintf(format, args...))
		}
	}

	protocol, err := capability.ParseProtocol(opts.Protocol)
	if err != nil {
		return nil, failed(StagePreparing, err)
	}
	role, err := capability.ParseRole(opts.Role)
	if err != nil {
		return nil, failed(StagePreparing, err)
	}
	language, err := capability.ParseLanguage(opts.Language)
	if err != nil {
		return nil, failed(StagePreparing, err)
	}
	methods, err := parseMethods(opts.Methods)
	if err != nil {
		return nil, failed(StageExtracting, err)
	}

	var doc *spec.Document
	var ops []spec.Operation
	if opts.Input != "" {
		loadOpts := []spec.Option{spec.WithWarnings(warn)}
		if opts.Lenient {
			loadOpts = append(loadOpts, spec.WithLenient(true))
		}
		doc, err = spec.Load(ctx, opts.Input, loadOpts...)
		if err != nil {
			return nil, failed(StageLoading, err)
		}
		if opts.BaseURL != "" {
			doc.BaseURL = opts.BaseURL
		}

		buildOpts := []spec.BuildOption{spec.WithWarnFunc(warn)}
		if len(opts.IncludeTags) > 0 {
			buildOpts = append(buildOpts, spec.WithIncludeTags(opts.IncludeTags))
		}
		if len(opts.ExcludeTags) > 0 {
			buildOpts = append(buildOpts, spec.WithExcludeTags(opts.ExcludeTags))
		}
		if len(methods) > 0 {
			buildOpts = append(buildOpts, spec.WithMethods(methods))
		}
		if len(opts.PathPatterns) > 0 {
			buildOpts = append(buildOpts, spec.WithPathPatterns(opts.PathPatterns))
		}
		ops, err = spec.Extract(doc, buildOpts...)
		if err != nil {
			return nil, failed(StageExtracting, err)
		}
	}

	projectName := opts.ProjectName
	if projectName == "" && doc != nil {
		projectName = deriveProjectName(doc.Title)
	}
	if projectName == "" {
		projectName = string(protocol) + "-" + string(role)
	}

	registry := opts.Registry
	if registry == nil {
		registry = capability.NewRegistry()
	}
	seed, err := registry.Prepare(protocol, capability.PrepareInput{
		Role:        role,
		ProjectName: projectName,
		Version:     opts.Version,
		Document:    doc,
		Options:     opts.HandlerOptions,
	})
	if err != nil {
		return nil, failed(StagePreparing, err)
	}

	locator := opts.Locator
	if locator == nil {
		locator, err = bundle.NewLocator(opts.TemplateDir)
		if err != nil {
			return nil, failed(StageDiscovering, err)
		}
	}

	orch := NewOrchestrator(locator)
	return orch.Generate(ctx, Options{
		Seed:       seed,
		Language:   language,
		Operations: ops,
		Workers:    opts.Workers,
	})
}

// deriveProjectName turns a contract title into a usable project name:
// lowercased words joined with dashes, restricted to the character set
// naming.ValidateProjectName accepts.
func deriveProjectName(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return ""
	}
	t = strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ").Replace(t)
	joined := strings.Join(strings.Fields(t), "-")

	var b strings.Builder
	for _, r := range joined {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func parseMethods(raw []string) ([]spec.HttpMethod, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]spec.HttpMethod, 0, len(raw))
	for _, s := range raw {
		m, ok := spec.ParseMethod(s)
		if !ok {
			return nil, fmt.Errorf("unknown HTTP method %q", s)
		}
		out = append(out, m)
	}
	return out, nil
}
