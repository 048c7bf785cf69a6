package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/specforge-dev/specforge/internal/bundle"
	"github.com/specforge-dev/specforge/internal/capability"
	"github.com/specforge-dev/specforge/internal/generate"
	"github.com/specforge-dev/specforge/internal/naming"
	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input       string
	Protocol    string
	Role        string
	Lang        string
	ProjectName string
	Version     string
	Out         string
	TemplateDir string
	BaseURL     string
	IncludeTags []string
	ExcludeTags []string
	Methods     []string
	Paths       []string
	// Variables come from the config file's "variables" mapping; Set holds
	// raw key=value pairs from repeated --set flags. Set wins on conflict.
	Variables  map[string]any
	Set        []string
	Workers    int
	Lenient    bool
	ConfigPath string
	DryRun     bool
	Force      bool
	Verbose    bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Protocol: "mcp", Role: "server", Lang: "go"}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a protocol project from an OpenAPI/Swagger contract",
		Long: "Generate a protocol project from an OpenAPI/Swagger contract. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  specforge generate --input contract.yaml --out ./out
  specforge generate --input contract.yaml --protocol mcp --role server --lang go
  specforge --config specforge.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI/Swagger contract")
	flags.String("protocol", "", "Target protocol (mcp|a2a|acp|anp); defaults to mcp")
	flags.String("role", "", "Generated role (server|client|agent|broker); defaults to server")
	flags.String("lang", "", "Target language (go|python|typescript|rust); defaults to go")
	flags.String("project-name", "", "Project name (derived from the contract title when omitted)")
	flags.String("project-version", "", "Version stamped into the generated project")
	flags.String("out", "", "Output directory (defaults to the project name)")
	flags.String("template-dir", "", "Directory with template bundles overriding the embedded ones")
	flags.String("base-url", "", "Override the contract's base API URL")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations with these HTTP methods")
	flags.StringSlice("paths", nil, "Only include operations whose path matches these globs")
	flags.StringArray("set", nil, "Extra template variable as key=value (repeatable)")
	flags.Int("workers", 0, "Parallel template renders; 0 picks the default")
	flags.Bool("lenient", false, "Downgrade recoverable contract defects to warnings")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("protocol") {
		value, err := flags.GetString("protocol")
		if err != nil {
			return err
		}
		cfg.Protocol = strings.TrimSpace(value)
	}
	if flags.Changed("role") {
		value, err := flags.GetString("role")
		if err != nil {
			return err
		}
		cfg.Role = strings.TrimSpace(value)
	}
	if flags.Changed("lang") {
		value, err := flags.GetString("lang")
		if err != nil {
			return err
		}
		cfg.Lang = strings.TrimSpace(value)
	}
	if flags.Changed("project-name") {
		value, err := flags.GetString("project-name")
		if err != nil {
			return err
		}
		cfg.ProjectName = strings.TrimSpace(value)
	}
	if flags.Changed("project-version") {
		value, err := flags.GetString("project-version")
		if err != nil {
			return err
		}
		cfg.Version = strings.TrimSpace(value)
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("template-dir") {
		value, err := flags.GetString("template-dir")
		if err != nil {
			return err
		}
		cfg.TemplateDir = strings.TrimSpace(value)
	}
	if flags.Changed("base-url") {
		value, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(value)
	}
	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("methods") {
		value, err := flags.GetStringSlice("methods")
		if err != nil {
			return err
		}
		cfg.Methods = sanitizeTags(value)
	}
	if flags.Changed("paths") {
		value, err := flags.GetStringSlice("paths")
		if err != nil {
			return err
		}
		cfg.Paths = sanitizeTags(value)
	}
	if flags.Changed("set") {
		value, err := flags.GetStringArray("set")
		if err != nil {
			return err
		}
		cfg.Set = value
	}
	if flags.Changed("workers") {
		value, err := flags.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = value
	}
	if flags.Changed("lenient") {
		value, err := flags.GetBool("lenient")
		if err != nil {
			return err
		}
		cfg.Lenient = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.Lang = strings.ToLower(strings.TrimSpace(c.Lang))
	c.ProjectName = strings.TrimSpace(c.ProjectName)
	c.Version = strings.TrimSpace(c.Version)
	c.Out = strings.TrimSpace(c.Out)
	c.TemplateDir = strings.TrimSpace(c.TemplateDir)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	c.Paths = sanitizeTags(c.Paths)
}

func (c *GenerateConfig) validate() error {
	if c.Protocol == "" {
		c.Protocol = "mcp"
	}
	if c.Role == "" {
		c.Role = "server"
	}
	if c.Lang == "" {
		c.Lang = "go"
	}

	if _, err := capability.ParseProtocol(c.Protocol); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v (allowed: mcp, a2a, acp, anp)", err))
	}
	if _, err := capability.ParseRole(c.Role); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v (allowed: server, client, agent, broker)", err))
	}
	if _, err := capability.ParseLanguage(c.Lang); err != nil {
		return newUsageError(fmt.Sprintf("generate: %v (allowed: go, python, typescript, rust)", err))
	}

	if c.ProjectName != "" {
		if err := naming.ValidateProjectName(c.ProjectName); err != nil {
			return newUsageError(fmt.Sprintf("generate: --project-name: %v", err))
		}
	}

	for _, m := range c.Methods {
		if _, ok := spec.ParseMethod(m); !ok {
			return newUsageError(fmt.Sprintf("generate: unknown HTTP method %q", m))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	if c.Workers < 0 {
		return newUsageError("generate: --workers cannot be negative")
	}

	for _, pair := range c.Set {
		key, _, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return newUsageError(fmt.Sprintf("generate: --set %q: expected key=value", pair))
		}
	}

	return nil
}

// handlerOptions merges config-file variables (sorted for stable seeding)
// with --set pairs in flag order.
func (c *GenerateConfig) handlerOptions() *ordered.Map[string, any] {
	if len(c.Variables) == 0 && len(c.Set) == 0 {
		return nil
	}
	opts := ordered.New[string, any]()
	keys := make([]string, 0, len(c.Variables))
	for k := range c.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts.Set(k, c.Variables[k])
	}
	for _, pair := range c.Set {
		key, value, _ := strings.Cut(pair, "=")
		opts.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return opts
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	res, err := generate.Run(ctx, generate.RunOptions{
		Input:          cfg.Input,
		Protocol:       cfg.Protocol,
		Role:           cfg.Role,
		Language:       cfg.Lang,
		ProjectName:    cfg.ProjectName,
		Version:        cfg.Version,
		BaseURL:        cfg.BaseURL,
		IncludeTags:    cfg.IncludeTags,
		ExcludeTags:    cfg.ExcludeTags,
		Methods:        cfg.Methods,
		PathPatterns:   cfg.Paths,
		TemplateDir:    cfg.TemplateDir,
		Workers:        cfg.Workers,
		Lenient:        cfg.Lenient,
		HandlerOptions: cfg.handlerOptions(),
		Warn: func(msg string) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		},
	})
	if err != nil {
		return mapGenerateError(err)
	}

	outDir := cfg.Out
	if outDir == "" {
		outDir = res.ProjectName
	}
	// Absolute path only for display; the writer handles actual creation.
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	writer := &generate.DirWriter{Root: outDir, Force: cfg.Force}
	if cfg.DryRun {
		if err := writer.Validate(); err != nil {
			return wrapOutputError(err, absOut)
		}
		printPlan(absOut, res, writer.Plan(res))
		return nil
	}

	if err := writer.Write(res); err != nil {
		return wrapOutputError(err, absOut)
	}
	if len(res.PreGenerate) > 0 {
		fmt.Fprintf(os.Stderr, "note: bundle %s declares pre-generate hooks it did not run: %s\n",
			res.Descriptor, strings.Join(res.PreGenerate, "; "))
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stdout, "Generated %s project %q: %d files in %s\n",
			res.Descriptor, res.ProjectName, len(res.Artifacts), absOut)
	}

	return nil
}

// mapGenerateError turns structured pipeline failures into friendly usage
// errors. Anything unrecognized passes through stage-tagged.
func mapGenerateError(err error) error {
	var specErr *spec.SpecError
	if errors.As(err, &specErr) {
		msg := fmt.Sprintf("contract: %s", specErr.Message)
		if specErr.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, specErr.Location)
		}
		if specErr.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, specErr.JSONPointer)
		}
		return newUsageError(msg)
	}

	var extErr *spec.ExtractionError
	if errors.As(err, &extErr) {
		msg := fmt.Sprintf("contract: %s", extErr.Message)
		if extErr.Operation != "" {
			msg = fmt.Sprintf("%s\nOperation: %s", msg, extErr.Operation)
		}
		return newUsageError(msg)
	}

	var capErr *capability.Error
	if errors.As(err, &capErr) {
		return newUsageError(capErr.Message)
	}

	if errors.Is(err, bundle.ErrNotFound) {
		return newUsageError(fmt.Sprintf("%v\nHint: run \"specforge templates\" to list available bundles, or point --template-dir at one.", err))
	}

	return err
}

func printPlan(outDir string, res *generate.Result, plan []generate.PlannedFile) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(plan))
	for _, p := range plan {
		fmt.Fprintf(os.Stdout, "- %s\n", p.Path)
	}
	if len(res.PreGenerate) > 0 {
		fmt.Fprintln(os.Stdout, "Pre-generate hooks (not executed):")
		for _, hook := range res.PreGenerate {
			fmt.Fprintf(os.Stdout, "- %s\n", hook)
		}
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		switch normalized {
		case "input":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Input = str
		case "protocol":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Protocol = str
		case "role":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Role = str
		case "lang", "language":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Lang = str
		case "projectname":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.ProjectName = str
		case "projectversion", "version":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Version = str
		case "out":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Out = str
		case "templatedir":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.TemplateDir = str
		case "baseurl":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.BaseURL = str
		case "includetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.IncludeTags = sanitizeTags(list)
		case "excludetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.ExcludeTags = sanitizeTags(list)
		case "methods":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Methods = sanitizeTags(list)
		case "paths":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Paths = sanitizeTags(list)
		case "variables":
			vars, err := valueAsVariables(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Variables = vars
		case "workers":
			n, err := valueAsInt(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Workers = n
		case "lenient":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Lenient = val
		case "dryrun":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.DryRun = val
		case "force":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Force = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("expected integer, got %v", val)
		}
		return int(val), nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// valueAsVariables accepts a mapping of scalar values. Nested structures are
// rejected so template contexts stay flat and printable.
func valueAsVariables(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key := strings.TrimSpace(k)
			if key == "" {
				return nil, errors.New("variable names cannot be empty")
			}
			switch elem.(type) {
			case string, bool, int, int64, float64, nil:
				out[key] = elem
			default:
				return nil, fmt.Errorf("variable %q: expected a scalar, got %T", k, elem)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
