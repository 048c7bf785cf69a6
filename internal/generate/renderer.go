package generate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/specforge-dev/specforge/internal/naming"
)

// Renderer turns a template body and a context into output text. The
// pipeline treats the template syntax as opaque; any failure surfaces as a
// RenderError.
type Renderer interface {
	Render(name string, body []byte, ctx *RenderContext) ([]byte, error)
}

// TemplateRenderer renders Go text/template bodies. Missing variables are
// hard errors so a bundle cannot silently render an empty value.
type TemplateRenderer struct {
	funcs template.FuncMap
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{funcs: templateFuncs()}
}

func (r *TemplateRenderer) Render(name string, body []byte, ctx *RenderContext) ([]byte, error) {
	tpl, err := template.New(name).Funcs(r.funcs).Option("missingkey=error").Parse(string(body))
	if err != nil {
		return nil, &RenderError{Template: name, Cause: err}
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, ctx.Vars()); err != nil {
		return nil, &RenderError{Template: name, Cause: err}
	}
	return buf.Bytes(), nil
}

// templateFuncs is the helper set every bundle can rely on. The casing
// helpers accept any value so templates can pass named string types
// without converting first.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"snake":    func(v any) string { return naming.Snake(fmt.Sprint(v)) },
		"pascal":   func(v any) string { return naming.Pascal(fmt.Sprint(v)) },
		"camel":    func(v any) string { return naming.Camel(fmt.Sprint(v)) },
		"upper":    func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
		"lower":    func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
		"join":     strings.Join,
		"markdown": func(v any) string { return naming.SanitizeMarkdown(fmt.Sprint(v)) },
	}
}
