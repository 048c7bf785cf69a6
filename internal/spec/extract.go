package spec

import (
    "fmt"
    "regexp"
    "strings"

    "github.com/specforge-dev/specforge/internal/ordered"
)

// ExtractionErrorCode categorizes extractor failures.
type ExtractionErrorCode string

const (
    UnsupportedParameterShape ExtractionErrorCode = "UnsupportedParameterShape"
)

// ExtractionError reports a parameter the extractor refuses to guess a
// serialization for.
type ExtractionError struct {
    Code      ExtractionErrorCode
    Message   string
    Operation string
    Parameter string
}

func (e *ExtractionError) Error() string { return e.Message }

// Location of a parameter.
type Location string

const (
    LocationPath   Location = "path"
    LocationQuery  Location = "query"
    LocationHeader Location = "header"
    LocationBody   Location = "body"
)

// SerializationStyle tags how an array-typed parameter is written on the
// wire. It is fixed at extraction time; renderers never re-derive it.
type SerializationStyle string

const (
    StyleNone SerializationStyle = ""
    // StyleCommaJoined joins scalar list items with commas, the only array
    // serialization supported, and only for query parameters.
    StyleCommaJoined SerializationStyle = "comma-joined"
)

// StatusClass buckets response status codes.
type StatusClass string

const (
    Status1xx     StatusClass = "1xx"
    Status2xx     StatusClass = "2xx"
    Status3xx     StatusClass = "3xx"
    Status4xx     StatusClass = "4xx"
    Status5xx     StatusClass = "5xx"
    StatusDefault StatusClass = "default"
)

func statusClassOf(status string) (StatusClass, bool) {
    s := strings.ToLower(strings.TrimSpace(status))
    if s == "default" {
        return StatusDefault, true
    }
    if len(s) == 3 {
        switch s[0] {
        case '1':
            return Status1xx, true
        case '2':
            return Status2xx, true
        case '3':
            return Status3xx, true
        case '4':
            return Status4xx, true
        case '5':
            return Status5xx, true
        }
    }
    return "", false
}

// Operation is one callable surface of the contract, with every type
// already resolved. Operations are immutable after extraction.
type Operation struct {
    ID          string
    Method      HttpMethod
    Path        string
    Summary     string
    Doc         string
    Tags        []string
    Deprecated  bool
    Parameters  []ParameterDescriptor
    RequestBody *Descriptor
    // RequestBodyRequired is meaningful only when RequestBody is set.
    RequestBodyRequired bool
    // Responses maps each status class to its resolved type, first status
    // of a class in authored order wins.
    Responses *ordered.Map[StatusClass, *Descriptor]
}

// ParameterDescriptor is one resolved operation parameter.
type ParameterDescriptor struct {
    Name     string
    Location Location
    Required bool
    Type     *Descriptor
    Example  any
    Style    SerializationStyle
    Doc      string
}

// BuildOption configures extraction.
type BuildOption func(*buildConfig)

type buildConfig struct {
    includeTags map[string]struct{}
    excludeTags map[string]struct{}
    methods     map[HttpMethod]struct{}
    pathRes     []*regexp.Regexp
    warn        WarnFunc
}

// WithIncludeTags keeps only operations that carry at least one of the
// given tags.
func WithIncludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        for _, t := range tags {
            t = strings.TrimSpace(t)
            if t == "" {
                continue
            }
            if c.includeTags == nil {
                c.includeTags = make(map[string]struct{}, len(tags))
            }
            c.includeTags[t] = struct{}{}
        }
    }
}

// WithExcludeTags removes operations that carry any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        for _, t := range tags {
            t = strings.TrimSpace(t)
            if t == "" {
                continue
            }
            if c.excludeTags == nil {
                c.excludeTags = make(map[string]struct{}, len(tags))
            }
            c.excludeTags[t] = struct{}{}
        }
    }
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
    return func(c *buildConfig) {
        if len(methods) == 0 {
            return
        }
        if c.methods == nil {
            c.methods = make(map[HttpMethod]struct{}, len(methods))
        }
        for _, m := range methods {
            c.methods[m] = struct{}{}
        }
    }
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern is replaced with one
// that never matches rather than failing extraction.
func WithPathPatterns(patterns []string) BuildOption {
    return func(c *buildConfig) {
        for _, p := range patterns {
            p = strings.TrimSpace(p)
            if p == "" {
                continue
            }
            re, err := regexp.Compile(p)
            if err != nil {
                re = regexp.MustCompile("a^$")
            }
            c.pathRes = append(c.pathRes, re)
        }
    }
}

// WithWarnFunc routes non-fatal degradation notices to w.
func WithWarnFunc(w WarnFunc) BuildOption {
    return func(c *buildConfig) { c.warn = w }
}

// Extract walks the document's paths in authored order and produces the
// operation list with all parameter and response types resolved.
func Extract(doc *Document, opts ...BuildOption) ([]Operation, error) {
    if doc == nil {
        return nil, fmt.Errorf("nil document")
    }
    cfg := &buildConfig{}
    for _, opt := range opts {
        opt(cfg)
    }
    r := NewResolver(doc, cfg.warn)

    var out []Operation
    for _, pi := range doc.Paths {
        for _, def := range pi.Operations {
            if len(cfg.methods) > 0 {
                if _, ok := cfg.methods[def.Method]; !ok {
                    continue
                }
            }
            if len(cfg.pathRes) > 0 && !matchesAny(cfg.pathRes, pi.Path) {
                continue
            }
            if !allowByTags(def.Tags, cfg) {
                continue
            }
            op, err := buildOperation(r, cfg, pi, def)
            if err != nil {
                return nil, err
            }
            out = append(out, op)
        }
    }
    return out, nil
}

func buildOperation(r *Resolver, cfg *buildConfig, pi PathItem, def OperationDef) (Operation, error) {
    id := def.OperationID
    if id == "" {
        id = strings.ToUpper(string(def.Method)) + " " + def.Path
    }
    op := Operation{
        ID:         id,
        Method:     def.Method,
        Path:       def.Path,
        Summary:    def.Summary,
        Doc:        def.Description,
        Tags:       def.Tags,
        Deprecated: def.Deprecated,
        Responses:  ordered.New[StatusClass, *Descriptor](),
    }

    for _, pd := range mergeParameters(pi.Parameters, def.Parameters) {
        param, err := buildParameter(r, id, pd)
        if err != nil {
            return Operation{}, err
        }
        op.Parameters = append(op.Parameters, param)
    }

    if def.Body != nil {
        body, err := r.Resolve(def.Body.Schema, id+" request")
        if err != nil {
            return Operation{}, err
        }
        op.RequestBody = body
        op.RequestBodyRequired = def.Body.Required
    }

    for _, resp := range def.Responses {
        class, ok := statusClassOf(resp.Status)
        if !ok {
            warnf(cfg.warn, "operation %q: unrecognized response status %q, skipping", id, resp.Status)
            continue
        }
        if op.Responses.Has(class) {
            continue
        }
        if resp.Schema == nil {
            // Contracts routinely leave error responses untyped.
            warnf(cfg.warn, "operation %q: response %s has no content, defaulting to opaque", id, resp.Status)
            op.Responses.Set(class, &Descriptor{Kind: KindScalar, Scalar: ScalarOpaque, Doc: resp.Description})
            continue
        }
        d, err := r.Resolve(resp.Schema, id+" response "+resp.Status)
        if err != nil {
            return Operation{}, err
        }
        op.Responses.Set(class, d)
    }

    return op, nil
}

// mergeParameters overlays operation parameters onto path-level ones.
// Path-level order is kept; an operation-level parameter with the same
// (location, name) replaces in place, new ones append in authored order.
func mergeParameters(pathLevel, opLevel []ParameterDef) []ParameterDef {
    merged := make([]ParameterDef, 0, len(pathLevel)+len(opLevel))
    index := make(map[string]int, len(pathLevel))
    for _, p := range pathLevel {
        index[p.In+":"+p.Name] = len(merged)
        merged = append(merged, p)
    }
    for _, p := range opLevel {
        if i, ok := index[p.In+":"+p.Name]; ok {
            merged[i] = p
            continue
        }
        index[p.In+":"+p.Name] = len(merged)
        merged = append(merged, p)
    }
    return merged
}

func buildParameter(r *Resolver, opID string, pd ParameterDef) (ParameterDescriptor, error) {
    loc := Location(strings.ToLower(pd.In))
    switch loc {
    case LocationPath, LocationQuery, LocationHeader, LocationBody:
    default:
        return ParameterDescriptor{}, &ExtractionError{
            Code:      UnsupportedParameterShape,
            Operation: opID,
            Parameter: pd.Name,
            Message:   fmt.Sprintf("operation %q: parameter %q has unsupported location %q", opID, pd.Name, pd.In),
        }
    }

    t, err := r.Resolve(pd.Schema, opID+" "+pd.Name)
    if err != nil {
        return ParameterDescriptor{}, err
    }

    style := StyleNone
    if t.Kind == KindList {
        _, scalarElem := t.ElemScalar()
        if loc == LocationQuery && scalarElem {
            style = StyleCommaJoined
        } else {
            // Comma-joining is only defined for scalar lists in the query
            // string; anything else must surface instead of degrading.
            return ParameterDescriptor{}, &ExtractionError{
                Code:      UnsupportedParameterShape,
                Operation: opID,
                Parameter: pd.Name,
                Message:   fmt.Sprintf("operation %q: array-typed parameter %q in %s has no supported serialization", opID, pd.Name, loc),
            }
        }
    }

    return ParameterDescriptor{
        Name:     pd.Name,
        Location: loc,
        Required: pd.Required,
        Type:     t,
        Example:  pd.Example,
        Style:    style,
        Doc:      pd.Description,
    }, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
    for _, re := range res {
        if re.MatchString(s) {
            return true
        }
    }
    return false
}

func allowByTags(tags []string, cfg *buildConfig) bool {
    if len(cfg.includeTags) > 0 {
        ok := false
        for _, t := range tags {
            if _, yes := cfg.includeTags[t]; yes {
                ok = true
                break
            }
        }
        if !ok {
            return false
        }
    }
    for _, t := range tags {
        if _, blocked := cfg.excludeTags[t]; blocked {
            return false
        }
    }
    return true
}
