package spec

// Normalized document model shared by the resolver and the extractor.
//
// The model is built by walking the raw YAML of the contract rather than the
// parsed object graph so that path, operation, and property order survive
// exactly as authored. Validation and reference loading still go through
// kin-openapi in the loader; this walk only decides shape and order.

import (
    "fmt"
    "strings"

    "gopkg.in/yaml.v3"
)

// WarnFunc receives non-fatal degradations (unknown formats, defaulted
// responses). It is a side-channel distinct from returned errors.
type WarnFunc func(format string, args ...any)

func warnf(w WarnFunc, format string, args ...any) {
    if w != nil {
        w(format, args...)
    }
}

type HttpMethod string

const (
    GET     HttpMethod = "get"
    POST    HttpMethod = "post"
    PUT     HttpMethod = "put"
    DELETE  HttpMethod = "delete"
    PATCH   HttpMethod = "patch"
    HEAD    HttpMethod = "head"
    OPTIONS HttpMethod = "options"
    TRACE   HttpMethod = "trace"
)

var methodOrder = []HttpMethod{GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE}

// ParseMethod maps a user-supplied method name onto an HttpMethod.
func ParseMethod(s string) (HttpMethod, bool) {
    m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
    for _, known := range methodOrder {
        if m == known {
            return m, true
        }
    }
    return "", false
}

func isHTTPMethod(s string) bool {
    _, ok := ParseMethod(s)
    return ok
}

// Document is the normalized contract: metadata, paths in authored order,
// and a pointer table of named schemas.
type Document struct {
    Title       string
    Version     string
    Description string
    BaseURL     string
    Paths       []PathItem
    // SchemaNames lists component schema names in declaration order.
    SchemaNames []string

    schemas map[string]*schemaEntry // by normalized pointer
}

type schemaEntry struct {
    Name string
    Node *SchemaNode
}

// SchemaAt resolves a pointer like "#/components/schemas/Pet" to the shared
// schema node and its declared name.
func (d *Document) SchemaAt(pointer string) (*SchemaNode, string, bool) {
    e, ok := d.schemas[normalizePointer(pointer)]
    if !ok {
        return nil, "", false
    }
    return e.Node, e.Name, true
}

type PathItem struct {
    Path       string
    Parameters []ParameterDef // path-level, overridable per operation
    Operations []OperationDef // authored order
}

type OperationDef struct {
    Method      HttpMethod
    Path        string
    OperationID string
    Summary     string
    Description string
    Tags        []string
    Deprecated  bool
    Parameters  []ParameterDef
    Body        *BodyDef
    Responses   []ResponseDef // authored order
}

type ParameterDef struct {
    Name        string
    In          string // path|query|header|cookie
    Required    bool
    Description string
    Example     any
    Schema      *SchemaNode
}

type BodyDef struct {
    Mime     string
    Required bool
    Schema   *SchemaNode
}

type ResponseDef struct {
    Status      string // "200", "2XX", "default"
    Description string
    Mime        string
    Schema      *SchemaNode // nil when the response declares no content
}

// NodeKind discriminates SchemaNode variants.
type NodeKind string

const (
    NodePrimitive NodeKind = "primitive"
    NodeArray     NodeKind = "array"
    NodeObject    NodeKind = "object"
    NodeReference NodeKind = "reference"
    NodeComposite NodeKind = "composite"
    NodeEnum      NodeKind = "enum"
)

type CompositeKind string

const (
    AllOf CompositeKind = "allOf"
    OneOf CompositeKind = "oneOf"
    AnyOf CompositeKind = "anyOf"
)

// SchemaNode is one node of the recursive schema union. Nodes are owned by
// the Document and never mutated after the build.
type SchemaNode struct {
    Kind NodeKind

    // Primitive and enum base.
    Type   string
    Format string

    // Array element.
    Elem *SchemaNode

    // Object shape, fields in authored order.
    Fields   []SchemaField
    Required map[string]bool
    HasExtra bool // additionalProperties declared

    // Reference pointer, normalized.
    Ref string

    // Composition.
    Composite     CompositeKind
    Members       []*SchemaNode
    Discriminator string

    // Enum literals in authored order.
    Values []any

    Description string
    Example     any
}

type SchemaField struct {
    Name string
    Node *SchemaNode
}

// BuildDocument walks raw contract bytes into a Document. The bytes must be
// a canonical v3 document (the loader handles version sniffing and the v2
// upgrade before calling this).
func BuildDocument(raw []byte, warn WarnFunc) (*Document, error) {
    var root yaml.Node
    if err := yaml.Unmarshal(raw, &root); err != nil {
        return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse document: %v", err), Cause: err}
    }
    top := documentRoot(&root)
    if top == nil || top.Kind != yaml.MappingNode {
        return nil, &SpecError{Code: ParseError, Message: "parse document: top level is not a mapping"}
    }

    d := &Document{schemas: make(map[string]*schemaEntry)}

    if info := mapGet(top, "info"); info != nil {
        d.Title = strings.TrimSpace(scalarOf(mapGet(info, "title")))
        d.Version = strings.TrimSpace(scalarOf(mapGet(info, "version")))
        d.Description = strings.TrimSpace(scalarOf(mapGet(info, "description")))
    }
    if servers := mapGet(top, "servers"); servers != nil && servers.Kind == yaml.SequenceNode && len(servers.Content) > 0 {
        d.BaseURL = strings.TrimSpace(scalarOf(mapGet(deref(servers.Content[0]), "url")))
    }

    // Components first: paths may reference parameters, bodies, and
    // responses declared later in the file.
    var paramTable, bodyTable, responseTable map[string]*yaml.Node
    if comps := mapGet(top, "components"); comps != nil {
        if schemas := mapGet(comps, "schemas"); schemas != nil {
            forEachEntry(schemas, func(name string, node *yaml.Node) {
                built := buildSchemaNode(node, warn)
                pointer := "#/components/schemas/" + name
                d.schemas[pointer] = &schemaEntry{Name: name, Node: built}
                d.SchemaNames = append(d.SchemaNames, name)
            })
        }
        paramTable = nodeTable(mapGet(comps, "parameters"))
        bodyTable = nodeTable(mapGet(comps, "requestBodies"))
        responseTable = nodeTable(mapGet(comps, "responses"))
    }

    b := &docBuilder{
        doc:       d,
        warn:      warn,
        params:    paramTable,
        bodies:    bodyTable,
        responses: responseTable,
    }

    if paths := mapGet(top, "paths"); paths != nil {
        forEachEntry(paths, func(path string, item *yaml.Node) {
            d.Paths = append(d.Paths, b.buildPathItem(path, item))
        })
    }

    return d, nil
}

type docBuilder struct {
    doc       *Document
    warn      WarnFunc
    params    map[string]*yaml.Node
    bodies    map[string]*yaml.Node
    responses map[string]*yaml.Node
}

func (b *docBuilder) buildPathItem(path string, item *yaml.Node) PathItem {
    pi := PathItem{Path: path}
    item = deref(item)
    if item == nil || item.Kind != yaml.MappingNode {
        return pi
    }
    if params := mapGet(item, "parameters"); params != nil {
        pi.Parameters = b.buildParameters(params)
    }
    forEachEntry(item, func(key string, val *yaml.Node) {
        if !isHTTPMethod(key) {
            return
        }
        pi.Operations = append(pi.Operations, b.buildOperation(HttpMethod(strings.ToLower(key)), path, val))
    })
    return pi
}

func (b *docBuilder) buildOperation(method HttpMethod, path string, node *yaml.Node) OperationDef {
    op := OperationDef{Method: method, Path: path}
    node = deref(node)
    if node == nil || node.Kind != yaml.MappingNode {
        return op
    }
    op.OperationID = strings.TrimSpace(scalarOf(mapGet(node, "operationId")))
    op.Summary = strings.TrimSpace(scalarOf(mapGet(node, "summary")))
    op.Description = strings.TrimSpace(scalarOf(mapGet(node, "description")))
    op.Deprecated = scalarOf(mapGet(node, "deprecated")) == "true"
    if tags := mapGet(node, "tags"); tags != nil && tags.Kind == yaml.SequenceNode {
        for _, t := range tags.Content {
            if s := strings.TrimSpace(scalarOf(deref(t))); s != "" {
                op.Tags = append(op.Tags, s)
            }
        }
    }
    if params := mapGet(node, "parameters"); params != nil {
        op.Parameters = b.buildParameters(params)
    }
    if body := mapGet(node, "requestBody"); body != nil {
        op.Body = b.buildBody(body)
    }
    if responses := mapGet(node, "responses"); responses != nil {
        forEachEntry(responses, func(status string, val *yaml.Node) {
            op.Responses = append(op.Responses, b.buildResponse(status, val))
        })
    }
    return op
}

func (b *docBuilder) buildParameters(node *yaml.Node) []ParameterDef {
    node = deref(node)
    if node == nil || node.Kind != yaml.SequenceNode {
        return nil
    }
    out := make([]ParameterDef, 0, len(node.Content))
    for _, p := range node.Content {
        p = deref(p)
        if ref := refOf(p); ref != "" {
            p = deref(b.params[componentName(ref)])
        }
        if p == nil || p.Kind != yaml.MappingNode {
            continue
        }
        pd := ParameterDef{
            Name:        strings.TrimSpace(scalarOf(mapGet(p, "name"))),
            In:          strings.TrimSpace(scalarOf(mapGet(p, "in"))),
            Required:    scalarOf(mapGet(p, "required")) == "true",
            Description: strings.TrimSpace(scalarOf(mapGet(p, "description"))),
        }
        if ex := mapGet(p, "example"); ex != nil {
            pd.Example = decodeValue(ex)
        }
        if schema := mapGet(p, "schema"); schema != nil {
            pd.Schema = buildSchemaNode(schema, b.warn)
            if pd.Example == nil {
                pd.Example = pd.Schema.Example
            }
        }
        out = append(out, pd)
    }
    if len(out) == 0 {
        return nil
    }
    return out
}

func (b *docBuilder) buildBody(node *yaml.Node) *BodyDef {
    node = deref(node)
    if ref := refOf(node); ref != "" {
        node = deref(b.bodies[componentName(ref)])
    }
    if node == nil || node.Kind != yaml.MappingNode {
        return nil
    }
    bd := &BodyDef{Required: scalarOf(mapGet(node, "required")) == "true"}
    bd.Mime, bd.Schema = b.pickContent(mapGet(node, "content"))
    if bd.Schema == nil {
        return nil
    }
    return bd
}

func (b *docBuilder) buildResponse(status string, node *yaml.Node) ResponseDef {
    rd := ResponseDef{Status: status}
    node = deref(node)
    if ref := refOf(node); ref != "" {
        node = deref(b.responses[componentName(ref)])
    }
    if node == nil || node.Kind != yaml.MappingNode {
        return rd
    }
    rd.Description = strings.TrimSpace(scalarOf(mapGet(node, "description")))
    rd.Mime, rd.Schema = b.pickContent(mapGet(node, "content"))
    return rd
}

// pickContent selects the schema of the JSON media type when present, else
// the first media type in authored order.
func (b *docBuilder) pickContent(content *yaml.Node) (string, *SchemaNode) {
    content = deref(content)
    if content == nil || content.Kind != yaml.MappingNode {
        return "", nil
    }
    var firstMime string
    var firstSchema *yaml.Node
    var jsonMime string
    var jsonSchema *yaml.Node
    forEachEntry(content, func(mime string, media *yaml.Node) {
        schema := mapGet(media, "schema")
        if firstMime == "" {
            firstMime, firstSchema = mime, schema
        }
        if jsonMime == "" && (mime == "application/json" || strings.HasSuffix(mime, "+json")) {
            jsonMime, jsonSchema = mime, schema
        }
    })
    if jsonMime != "" {
        if jsonSchema == nil {
            return jsonMime, nil
        }
        return jsonMime, buildSchemaNode(jsonSchema, b.warn)
    }
    if firstMime == "" || firstSchema == nil {
        return firstMime, nil
    }
    return firstMime, buildSchemaNode(firstSchema, b.warn)
}

// buildSchemaNode converts one raw schema mapping into a SchemaNode,
// preserving property order.
func buildSchemaNode(node *yaml.Node, warn WarnFunc) *SchemaNode {
    node = deref(node)
    if node == nil || node.Kind != yaml.MappingNode {
        // Bool schemas and other non-mapping forms carry no shape we model.
        return &SchemaNode{Kind: NodePrimitive}
    }

    if ref := refOf(node); ref != "" {
        return &SchemaNode{Kind: NodeReference, Ref: normalizePointer(ref)}
    }

    sn := &SchemaNode{
        Type:        strings.TrimSpace(scalarOf(mapGet(node, "type"))),
        Format:      strings.TrimSpace(scalarOf(mapGet(node, "format"))),
        Description: strings.TrimSpace(scalarOf(mapGet(node, "description"))),
    }
    if ex := mapGet(node, "example"); ex != nil {
        sn.Example = decodeValue(ex)
    }

    for _, kind := range []CompositeKind{AllOf, OneOf, AnyOf} {
        members := mapGet(node, string(kind))
        if members == nil || members.Kind != yaml.SequenceNode {
            continue
        }
        sn.Kind = NodeComposite
        sn.Composite = kind
        for _, m := range members.Content {
            sn.Members = append(sn.Members, buildSchemaNode(m, warn))
        }
        if disc := mapGet(node, "discriminator"); disc != nil {
            sn.Discriminator = strings.TrimSpace(scalarOf(mapGet(disc, "propertyName")))
        }
        return sn
    }

    if enum := mapGet(node, "enum"); enum != nil && enum.Kind == yaml.SequenceNode {
        sn.Kind = NodeEnum
        for _, v := range enum.Content {
            sn.Values = append(sn.Values, decodeValue(v))
        }
        return sn
    }

    props := mapGet(node, "properties")
    if sn.Type == "array" || (sn.Type == "" && mapGet(node, "items") != nil) {
        sn.Kind = NodeArray
        if items := mapGet(node, "items"); items != nil {
            sn.Elem = buildSchemaNode(items, warn)
        }
        return sn
    }
    if sn.Type == "object" || props != nil {
        sn.Kind = NodeObject
        forEachEntry(props, func(name string, prop *yaml.Node) {
            sn.Fields = append(sn.Fields, SchemaField{Name: name, Node: buildSchemaNode(prop, warn)})
        })
        if req := mapGet(node, "required"); req != nil && req.Kind == yaml.SequenceNode {
            sn.Required = make(map[string]bool, len(req.Content))
            for _, r := range req.Content {
                if s := scalarOf(deref(r)); s != "" {
                    sn.Required[s] = true
                }
            }
        }
        if extra := mapGet(node, "additionalProperties"); extra != nil && scalarOf(extra) != "false" {
            sn.HasExtra = true
        }
        return sn
    }

    sn.Kind = NodePrimitive
    return sn
}

// normalizePointer maps legacy definition pointers onto the component form
// so converted documents and native ones share one table.
func normalizePointer(ref string) string {
    if strings.HasPrefix(ref, "#/definitions/") {
        return "#/components/schemas/" + strings.TrimPrefix(ref, "#/definitions/")
    }
    return ref
}

// componentName strips the pointer prefix, returning the trailing name.
func componentName(ref string) string {
    if i := strings.LastIndex(ref, "/"); i >= 0 {
        return ref[i+1:]
    }
    return ref
}

// hasExternalRefs reports whether any $ref points outside this document.
func hasExternalRefs(raw []byte) bool {
    var root yaml.Node
    if err := yaml.Unmarshal(raw, &root); err != nil {
        return false
    }
    found := false
    var walk func(n *yaml.Node)
    walk = func(n *yaml.Node) {
        if n == nil || found {
            return
        }
        if n.Kind == yaml.MappingNode {
            for i := 0; i+1 < len(n.Content); i += 2 {
                if n.Content[i].Value == "$ref" && n.Content[i+1].Kind == yaml.ScalarNode {
                    if !strings.HasPrefix(n.Content[i+1].Value, "#/") {
                        found = true
                        return
                    }
                }
            }
        }
        for _, c := range n.Content {
            walk(c)
        }
    }
    walk(&root)
    return found
}

// yaml.Node helpers

func documentRoot(n *yaml.Node) *yaml.Node {
    if n == nil {
        return nil
    }
    if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
        return deref(n.Content[0])
    }
    return deref(n)
}

func deref(n *yaml.Node) *yaml.Node {
    if n != nil && n.Kind == yaml.AliasNode {
        return n.Alias
    }
    return n
}

func mapGet(n *yaml.Node, key string) *yaml.Node {
    n = deref(n)
    if n == nil || n.Kind != yaml.MappingNode {
        return nil
    }
    for i := 0; i+1 < len(n.Content); i += 2 {
        if n.Content[i].Value == key {
            return deref(n.Content[i+1])
        }
    }
    return nil
}

func forEachEntry(n *yaml.Node, fn func(key string, val *yaml.Node)) {
    n = deref(n)
    if n == nil || n.Kind != yaml.MappingNode {
        return
    }
    for i := 0; i+1 < len(n.Content); i += 2 {
        fn(n.Content[i].Value, deref(n.Content[i+1]))
    }
}

func nodeTable(n *yaml.Node) map[string]*yaml.Node {
    out := make(map[string]*yaml.Node)
    forEachEntry(n, func(name string, val *yaml.Node) {
        out[name] = val
    })
    return out
}

func scalarOf(n *yaml.Node) string {
    n = deref(n)
    if n == nil || n.Kind != yaml.ScalarNode {
        return ""
    }
    return n.Value
}

func refOf(n *yaml.Node) string {
    return scalarOf(mapGet(n, "$ref"))
}

func decodeValue(n *yaml.Node) any {
    n = deref(n)
    if n == nil {
        return nil
    }
    var v any
    if err := n.Decode(&v); err != nil {
        return nil
    }
    return v
}
