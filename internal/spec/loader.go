package spec

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "path/filepath"
    "regexp"
    "strconv"
    "strings"
    "time"

    openapi2 "github.com/getkin/kin-openapi/openapi2"
    "github.com/getkin/kin-openapi/openapi2conv"
    "github.com/getkin/kin-openapi/openapi3"
    "gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    NetworkError    ErrorCode = "NetworkError"
    ParseError      ErrorCode = "ParseError"
    ValidationError ErrorCode = "ValidationError"
    ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
    Code        ErrorCode
    Message     string
    Location    string // file path or URL
    JSONPointer string // e.g. "#/paths/~1pets/get"
    Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
    // HTTPTimeout bounds each HTTP request.
    HTTPTimeout time.Duration
    // MaxRetries for transient HTTP failures (>=500, 429, or network errors).
    MaxRetries int
    // BackoffBase is the base delay for exponential backoff.
    BackoffBase time.Duration
    // AllowFileRefs controls whether file:// refs are allowed for external references.
    // Default false, but automatically allowed when the root input is a local file
    // to enable typical multi-file contracts.
    AllowFileRefs bool
    // Lenient downgrades validation failures to warnings so imperfect but
    // structurally usable documents still load.
    Lenient bool
    // Warn receives the loader's non-fatal notices. May be nil.
    Warn WarnFunc
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        HTTPTimeout: 10 * time.Second,
        MaxRetries:  3,
        BackoffBase: 200 * time.Millisecond,
        AllowFileRefs: false,
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option             { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option  { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option     { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithLenient(lenient bool) Option         { return func(s *Settings) { s.Lenient = lenient } }
func WithWarnings(w WarnFunc) Option          { return func(s *Settings) { s.Warn = w } }

// Load reads, validates, and normalizes a contract into a Document. If the
// input is Swagger v2.0, it is upgraded to v3 via kin-openapi before the
// document model is built, so downstream stages always see one canonical
// shape.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked
// by default (use WithAllowFileRefs(true) when loading from local files and you
// want to permit file-based external refs).
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
    if strings.TrimSpace(input) == "" {
        return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
    }

    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }

    if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
        return loadRemote(ctx, u, input, settings)
    }
    return loadLocal(ctx, input, settings)
}

func loadRemote(ctx context.Context, u *url.URL, input string, settings Settings) (*Document, error) {
    scheme := strings.ToLower(u.Scheme)
    switch scheme {
    case "http", "https":
    case "file":
        return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
    default:
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
    }

    raw, err := fetchWithRetry(ctx, input, settings)
    if err != nil {
        return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
    }

    return build(ctx, raw, input, settings, func() (*openapi3.T, error) {
        return newLoader(settings, false).LoadFromURI(u)
    })
}

func loadLocal(ctx context.Context, input string, settings Settings) (*Document, error) {
    abs, err := filepath.Abs(input)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
    }

    raw, err := os.ReadFile(abs)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
    }

    return build(ctx, raw, abs, settings, func() (*openapi3.T, error) {
        return newLoader(settings, true).LoadFromFile(abs)
    })
}

// Parse is the in-memory variant of Load for callers that already hold the
// contract bytes. External references are resolved relative to the process
// working directory.
func Parse(ctx context.Context, raw []byte, opts ...Option) (*Document, error) {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }

    return build(ctx, raw, "", settings, func() (*openapi3.T, error) {
        return newLoader(settings, true).LoadFromData(raw)
    })
}

// build dispatches on the contract's declared version marker. loadV3
// produces the kin-openapi form used for validation and reference
// handling; Swagger v2 input goes through conversion first.
func build(ctx context.Context, raw []byte, location string, settings Settings, loadV3 func() (*openapi3.T, error)) (*Document, error) {
    version, err := detectSpecVersion(raw)
    if err != nil {
        return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
    }
    if version == 2 {
        return upgradeAndBuild(ctx, raw, location, settings)
    }

    kdoc, err := loadV3()
    if err != nil {
        return nil, mapValidateOrParseErr(err, location)
    }
    if err := validateDoc(ctx, kdoc, settings, location); err != nil {
        return nil, err
    }
    return buildFromV3(ctx, kdoc, raw, location, settings)
}

// buildFromV3 builds the Document from the authored bytes so declaration
// order is preserved. When the contract pulls in external references the
// resolved graph is internalized and re-marshaled first; order then follows
// the canonical form rather than the authored file.
func buildFromV3(ctx context.Context, kdoc *openapi3.T, raw []byte, location string, settings Settings) (*Document, error) {
    walk := raw
    if hasExternalRefs(raw) {
        kdoc.InternalizeRefs(ctx, nil)
        canonical, err := json.Marshal(kdoc)
        if err != nil {
            return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("canonicalize document: %v", err), Location: location, Cause: err}
        }
        warnf(settings.Warn, "document uses external references; path and field order follows the canonical form")
        walk = canonical
    }
    d, err := BuildDocument(walk, settings.Warn)
    if err != nil {
        return nil, withLocation(err, location)
    }
    return d, nil
}

// upgradeAndBuild converts Swagger v2 bytes to v3 and builds the Document
// from the converted form. Conversion goes through an object model, so the
// walk runs over its canonical re-marshal; key order is canonical, not
// authored.
func upgradeAndBuild(ctx context.Context, raw []byte, location string, settings Settings) (*Document, error) {
    // Rewrite incompatible v2 constructs first to improve conversion success.
    if fixed, changed, _ := preprocessV2ForCompatibility(raw); changed {
        raw = fixed
    }
    v3doc, err := convertV2ToV3(raw)
    if err != nil {
        return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2 to v3: %v", err), Location: location, Cause: err}
    }
    loader := newLoader(settings, location != "")
    if err := loader.ResolveRefsIn(v3doc, nil); err != nil {
        warnf(settings.Warn, "resolve refs after conversion: %v", err)
    }
    if err := validateDoc(ctx, v3doc, settings, location); err != nil {
        return nil, err
    }
    v3doc.InternalizeRefs(ctx, nil)
    canonical, merr := json.Marshal(v3doc)
    if merr != nil {
        return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("canonicalize converted document: %v", merr), Location: location, Cause: merr}
    }
    d, berr := BuildDocument(canonical, settings.Warn)
    if berr != nil {
        return nil, withLocation(berr, location)
    }
    return d, nil
}

func validateDoc(ctx context.Context, kdoc *openapi3.T, settings Settings, location string) error {
    err := kdoc.Validate(ctx)
    if err == nil {
        return nil
    }
    if settings.Lenient {
        warnf(settings.Warn, "validation: %v (continuing in lenient mode)", err)
        return nil
    }
    if canProceedDespiteValidation(err) {
        return nil
    }
    return mapValidateOrParseErr(err, location)
}

func withLocation(err error, location string) error {
    var se *SpecError
    if errors.As(err, &se) && se.Location == "" {
        se.Location = location
    }
    return err
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
    loader := openapi3.NewLoader()
    loader.IsExternalRefsAllowed = true
    loader.ReadFromURIFunc = refReader(settings, rootIsFile)
    return loader
}

// refReader fetches external references for the kin-openapi loader. File
// refs are allowed only when configured or when the root document itself
// came from disk.
func refReader(settings Settings, rootIsFile bool) func(*openapi3.Loader, *url.URL) ([]byte, error) {
    client := &http.Client{Timeout: settings.HTTPTimeout}
    allowFile := settings.AllowFileRefs || rootIsFile
    return func(_ *openapi3.Loader, uri *url.URL) ([]byte, error) {
        switch strings.ToLower(uri.Scheme) {
        case "", "file":
            if !allowFile {
                return nil, fmt.Errorf("blocked file ref: %s", uri)
            }
            path := uri.Path
            if path == "" {
                path = uri.Opaque
            }
            return os.ReadFile(path)
        case "http", "https":
            resp, err := client.Get(uri.String())
            if err != nil {
                return nil, err
            }
            defer resp.Body.Close()
            if resp.StatusCode >= 400 {
                return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri)
            }
            return io.ReadAll(resp.Body)
        default:
            return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
        }
    }
}

// detectSpecVersion reads the version marker: 3 for OpenAPI v3, 2 for
// Swagger v2. Scalar text is taken as authored, so an unquoted
// `swagger: 2.0` still reads as "2.0".
func detectSpecVersion(data []byte) (int, error) {
    var probe struct {
        OpenAPI yaml.Node `yaml:"openapi"`
        Swagger yaml.Node `yaml:"swagger"`
    }
    if err := yaml.Unmarshal(data, &probe); err != nil {
        return 0, fmt.Errorf("parse contract: %w", err)
    }
    if v := strings.TrimSpace(probe.OpenAPI.Value); strings.HasPrefix(v, "3.") {
        return 3, nil
    }
    if v := strings.TrimSpace(probe.Swagger.Value); strings.HasPrefix(v, "2.") {
        return 2, nil
    }
    return 0, errors.New("spec: missing or unknown version marker (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
    // For kin-openapi v0.116.0, convert by unmarshalling to v2 then calling ToV3.
    var v2 openapi2.T
    if err := yaml.Unmarshal(data, &v2); err != nil {
        return nil, err
    }
    return openapi2conv.ToV3(&v2)
}

// fetchWithRetry GETs rawURL, retrying transient failures (network errors,
// 5xx, 429) with exponential backoff. A Retry-After delay on 429 is honored
// when it exceeds the computed backoff.
func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
    client := &http.Client{Timeout: settings.HTTPTimeout}
    backoff := settings.BackoffBase
    if backoff <= 0 {
        backoff = 200 * time.Millisecond
    }
    attempts := settings.MaxRetries
    if attempts <= 0 {
        attempts = 1
    }

    var lastErr error
    for i := 0; i < attempts; i++ {
        if i > 0 {
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-time.After(backoff):
            }
            backoff *= 2
        }

        req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
        if err != nil {
            return nil, err
        }
        resp, err := client.Do(req)
        if err != nil {
            lastErr = err
            continue
        }

        if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
            resp.Body.Close()
            lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
            if wait := retryAfter(resp); wait > backoff {
                backoff = wait
            }
            continue
        }
        if resp.StatusCode >= 300 {
            snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
            resp.Body.Close()
            return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
        }

        body, err := io.ReadAll(resp.Body)
        resp.Body.Close()
        if err != nil {
            lastErr = err
            continue
        }
        return body, nil
    }
    if lastErr == nil {
        lastErr = errors.New("fetch failed")
    }
    return nil, lastErr
}

func retryAfter(resp *http.Response) time.Duration {
    v := strings.TrimSpace(resp.Header.Get("Retry-After"))
    if v == "" {
        return 0
    }
    if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
        return time.Duration(secs) * time.Second
    }
    return 0
}

// mapValidateOrParseErr wraps a kin-openapi failure, attaching a JSON
// Pointer when one can be recovered from the error chain.
func mapValidateOrParseErr(err error, location string) error {
    code := ValidationError
    msg := strings.ToLower(err.Error())
    if strings.Contains(msg, "parse") || strings.Contains(msg, "invalid character") || strings.Contains(msg, "unmarshal") {
        code = ParseError
    }
    return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
    // A MultiError reports every defect at once; the first one is enough
    // for a pointer.
    for {
        me, ok := err.(openapi3.MultiError)
        if !ok {
            break
        }
        if len(me) == 0 {
            return ""
        }
        err = me[0]
    }
    if err == nil {
        return ""
    }

    var se *openapi3.SchemaError
    if errors.As(err, &se) {
        if parts := se.JSONPointer(); len(parts) > 0 {
            return "#/" + strings.Join(parts, "/")
        }
        if se.SchemaField != "" {
            return se.SchemaField
        }
    }
    // Last resort: a pointer literal inside the message text.
    return jsonPtrRe.FindString(err.Error())
}

// canProceedDespiteValidation reports whether a failed validation still
// leaves enough structure to build from, like unresolved $ref entries the
// document walk tolerates on its own.
func canProceedDespiteValidation(err error) bool {
    return err == nil || strings.Contains(strings.ToLower(err.Error()), "unresolved ref")
}
