package spec

// Compatibility rewrites for Swagger v2 documents that predate strict
// tooling. kin-openapi refuses operations with several body parameters or a
// body/formData mix, both of which show up in older real-world contracts,
// so the upgrade path massages them into convertible shapes first.

import (
    "strings"

    "gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites non-compliant Swagger v2 operations
// so the v3 conversion can succeed:
//   - several body parameters merge into one body whose schema is an object
//     with a property per original parameter
//   - a body/formData mix turns every body parameter into a formData one and
//     adds multipart/form-data to consumes
//
// It returns possibly-modified YAML bytes and whether anything changed. On
// error the original bytes come back unmodified.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
    var doc map[string]any
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return data, false, err
    }
    paths, ok := doc["paths"].(map[string]any)
    if !ok || len(paths) == 0 {
        return data, false, nil
    }

    modified := false
    for _, pim := range paths {
        pi, ok := pim.(map[string]any)
        if !ok { continue }
        for method, opm := range pi {
            if !isHTTPMethod(method) {
                continue
            }
            op, ok := opm.(map[string]any)
            if !ok { continue }
            if fixV2Operation(op) {
                modified = true
            }
        }
    }

    if !modified {
        return data, false, nil
    }
    out, err := yaml.Marshal(doc)
    if err != nil {
        return data, false, err
    }
    return out, true, nil
}

func fixV2Operation(op map[string]any) bool {
    params, ok := op["parameters"].([]any)
    if !ok || len(params) == 0 {
        return false
    }

    bodyCount := 0
    hasFormData := false
    for _, p := range params {
        pm, _ := p.(map[string]any)
        if pm == nil { continue }
        switch {
        case strings.EqualFold(asString(pm["in"]), "body"):
            bodyCount++
        case strings.EqualFold(asString(pm["in"]), "formData"):
            hasFormData = true
        }
    }
    if bodyCount == 0 {
        return false
    }

    if hasFormData {
        // Mixing is illegal in v2; push body params over to formData.
        newParams := make([]any, 0, len(params))
        for _, p := range params {
            pm, _ := p.(map[string]any)
            if pm == nil { continue }
            if strings.EqualFold(asString(pm["in"]), "body") {
                newParams = append(newParams, formDataFromBodyParam(pm))
                continue
            }
            newParams = append(newParams, pm)
        }
        op["parameters"] = newParams
        var consumes []any
        if c, ok := op["consumes"].([]any); ok {
            consumes = c
        }
        if !containsString(consumes, "multipart/form-data") {
            op["consumes"] = append(consumes, "multipart/form-data")
        }
        return true
    }

    if bodyCount > 1 {
        props := map[string]any{}
        required := make([]any, 0)
        newParams := make([]any, 0, len(params))
        for _, p := range params {
            pm, _ := p.(map[string]any)
            if pm == nil { continue }
            if !strings.EqualFold(asString(pm["in"]), "body") {
                newParams = append(newParams, p)
                continue
            }
            name := asString(pm["name"])
            if name == "" { name = "field" }
            schema := extractSchemaFromParam(pm)
            if schema == nil { schema = map[string]any{"type": "string"} }
            props[name] = schema
            if rb, _ := pm["required"].(bool); rb {
                required = append(required, name)
            }
        }
        bodySchema := map[string]any{"type": "object", "properties": props}
        if len(required) > 0 { bodySchema["required"] = required }
        merged := map[string]any{
            "in":     "body",
            "name":   "body",
            "schema": bodySchema,
        }
        op["parameters"] = append([]any{merged}, newParams...)
        return true
    }
    return false
}

func asString(v any) string {
    if s, ok := v.(string); ok { return s }
    return ""
}

func containsString(list []any, want string) bool {
    for _, v := range list {
        if s, ok := v.(string); ok && s == want { return true }
    }
    return false
}

func extractSchemaFromParam(pm map[string]any) map[string]any {
    if sch, ok := pm["schema"].(map[string]any); ok {
        return sch
    }
    // Synthesize a schema from the param's own type/items/format.
    t, _ := pm["type"].(string)
    if t == "" { return nil }
    m := map[string]any{"type": t}
    if it, ok := pm["items"].(map[string]any); ok {
        m["items"] = it
    }
    if f, ok := pm["format"].(string); ok && f != "" {
        m["format"] = f
    }
    return m
}

func formDataFromBodyParam(pm map[string]any) map[string]any {
    name := asString(pm["name"])
    if name == "" { name = "field" }
    out := map[string]any{
        "in":   "formData",
        "name": name,
    }
    if desc, ok := pm["description"].(string); ok && desc != "" {
        out["description"] = desc
    }
    if req, ok := pm["required"].(bool); ok {
        out["required"] = req
    }
    var typ string
    var format string
    var items any
    if sch, ok := pm["schema"].(map[string]any); ok {
        if t, ok := sch["type"].(string); ok { typ = t }
        if it, ok := sch["items"].(map[string]any); ok { items = it }
        if f, ok := sch["format"].(string); ok { format = f }
        if typ == "" && sch["$ref"] != nil {
            // A referenced object has no formData representation; degrade to string.
            typ = "string"
        }
    }
    if typ == "" {
        if t, ok := pm["type"].(string); ok { typ = t }
        if it, ok := pm["items"].(map[string]any); ok { items = it }
        if f, ok := pm["format"].(string); ok { format = f }
    }
    if typ == "" { typ = "string" }
    out["type"] = typ
    if items != nil { out["items"] = items }
    if format != "" { out["format"] = format }
    return out
}
