package spec

import (
    "fmt"

    "github.com/specforge-dev/specforge/internal/naming"
)

// ResolutionErrorCode categorizes resolver failures.
type ResolutionErrorCode string

const (
    ConflictingField    ResolutionErrorCode = "ConflictingField"
    InvalidComposition  ResolutionErrorCode = "InvalidComposition"
    UnresolvedReference ResolutionErrorCode = "UnresolvedReference"
)

// ResolutionError reports a schema shape the resolver refuses to guess at.
type ResolutionError struct {
    Code    ResolutionErrorCode
    Message string
    Pointer string // reference pointer or synthesized name path
}

func (e *ResolutionError) Error() string { return e.Message }

// Resolver turns schema nodes into descriptors. Results for referenced
// schemas are memoized per resolver, so repeated lookups of one pointer
// return the same *Descriptor. A resolver is bound to one document and is
// not safe for concurrent use.
type Resolver struct {
    doc  *Document
    memo map[string]*Descriptor
    warn WarnFunc
}

// NewResolver creates a resolver for doc. warn may be nil.
func NewResolver(doc *Document, warn WarnFunc) *Resolver {
    return &Resolver{
        doc:  doc,
        memo: make(map[string]*Descriptor),
        warn: warn,
    }
}

// Resolve resolves node into a descriptor. hint seeds synthesized names for
// anonymous objects, typically "<operation id> <field path>".
func (r *Resolver) Resolve(node *SchemaNode, hint string) (*Descriptor, error) {
    return r.resolve(node, make(map[string]bool), hint)
}

// resolve dispatches on node kind. seen tracks reference pointers on the
// current call chain; re-entering one is the cycle break that mints a
// NamedAlias instead of recursing.
func (r *Resolver) resolve(node *SchemaNode, seen map[string]bool, hint string) (*Descriptor, error) {
    if node == nil {
        warnf(r.warn, "missing schema for %q, treating as opaque", hint)
        return &Descriptor{Kind: KindScalar, Scalar: ScalarOpaque}, nil
    }
    switch node.Kind {
    case NodeReference:
        return r.resolveReference(node.Ref, seen)
    case NodePrimitive:
        return r.scalarFor(node, hint), nil
    case NodeEnum:
        d := r.scalarFor(node, hint)
        d.EnumValues = node.Values
        return d, nil
    case NodeArray:
        elem, err := r.resolve(node.Elem, seen, hint+" item")
        if err != nil {
            return nil, err
        }
        return &Descriptor{Kind: KindList, Elem: elem, Doc: node.Description}, nil
    case NodeObject:
        return r.resolveObject(node, seen, "", hint)
    case NodeComposite:
        if node.Composite == AllOf {
            return r.resolveAllOf(node, seen, "", hint)
        }
        return r.resolveChoice(node, seen, "", hint)
    default:
        warnf(r.warn, "unhandled schema kind %q for %q, treating as opaque", node.Kind, hint)
        return &Descriptor{Kind: KindScalar, Scalar: ScalarOpaque}, nil
    }
}

func (r *Resolver) resolveReference(pointer string, seen map[string]bool) (*Descriptor, error) {
    target, name, ok := r.doc.SchemaAt(pointer)
    if !ok {
        return nil, &ResolutionError{
            Code:    UnresolvedReference,
            Pointer: pointer,
            Message: fmt.Sprintf("unresolved schema reference %q", pointer),
        }
    }
    if d, ok := r.memo[pointer]; ok {
        if seen[pointer] {
            // Already resolving this pointer higher up the chain: break the
            // cycle with an alias to the shared (possibly still filling)
            // descriptor.
            return &Descriptor{Kind: KindNamedAlias, Name: name, Target: d}, nil
        }
        return d, nil
    }

    // Allocate the memo entry before descending so every alias minted for
    // this pointer shares one target.
    d := &Descriptor{}
    r.memo[pointer] = d
    seen[pointer] = true
    resolved, err := r.resolveNamed(target, seen, name)
    delete(seen, pointer)
    if err != nil {
        delete(r.memo, pointer)
        return nil, err
    }
    *d = *resolved
    return d, nil
}

// resolveNamed resolves the target of a reference, attaching its declared
// name.
func (r *Resolver) resolveNamed(node *SchemaNode, seen map[string]bool, name string) (*Descriptor, error) {
    var (
        d   *Descriptor
        err error
    )
    switch {
    case node.Kind == NodeObject:
        d, err = r.resolveObject(node, seen, name, name)
    case node.Kind == NodeComposite && node.Composite == AllOf:
        d, err = r.resolveAllOf(node, seen, name, name)
    case node.Kind == NodeComposite:
        d, err = r.resolveChoice(node, seen, name, name)
    default:
        d, err = r.resolve(node, seen, name)
    }
    if err != nil {
        return nil, err
    }
    if d.Name == "" {
        d.Name = name
    }
    return d, nil
}

func (r *Resolver) resolveObject(node *SchemaNode, seen map[string]bool, name, hint string) (*Descriptor, error) {
    if name == "" {
        name = naming.Pascal(hint)
    }
    if len(node.Fields) == 0 && node.HasExtra {
        // Free-form maps have no fixed fields to describe.
        warnf(r.warn, "object %q declares only additional properties, treating as opaque", name)
        return &Descriptor{Kind: KindScalar, Scalar: ScalarOpaque, Name: name, Doc: node.Description}, nil
    }

    fields := make([]Field, 0, len(node.Fields))
    for _, f := range node.Fields {
        ft, err := r.resolve(f.Node, seen, hint+" "+f.Name)
        if err != nil {
            return nil, err
        }
        fields = append(fields, Field{
            Name:     f.Name,
            Type:     ft,
            Optional: !node.Required[f.Name],
            Doc:      f.Node.Description,
        })
    }
    return &Descriptor{Kind: KindStruct, Name: name, Fields: fields, Doc: node.Description}, nil
}

func (r *Resolver) resolveAllOf(node *SchemaNode, seen map[string]bool, name, hint string) (*Descriptor, error) {
    if name == "" {
        name = naming.Pascal(hint)
    }
    var fields []Field
    have := make(map[string]bool)
    for i, m := range node.Members {
        md, err := r.resolve(m, seen, fmt.Sprintf("%s part%d", hint, i+1))
        if err != nil {
            return nil, err
        }
        if md.Kind != KindStruct {
            return nil, &ResolutionError{
                Code:    InvalidComposition,
                Pointer: name,
                Message: fmt.Sprintf("allOf member %d of %q resolves to %s, expected a struct", i+1, name, md.Kind),
            }
        }
        for _, f := range md.Fields {
            if have[f.Name] {
                return nil, &ResolutionError{
                    Code:    ConflictingField,
                    Pointer: name,
                    Message: fmt.Sprintf("allOf of %q declares field %q more than once", name, f.Name),
                }
            }
            have[f.Name] = true
            fields = append(fields, f)
        }
    }
    return &Descriptor{Kind: KindStruct, Name: name, Fields: fields, Doc: node.Description}, nil
}

func (r *Resolver) resolveChoice(node *SchemaNode, seen map[string]bool, name, hint string) (*Descriptor, error) {
    if name == "" {
        name = naming.Pascal(hint)
    }
    variants := make([]*Descriptor, 0, len(node.Members))
    for i, m := range node.Members {
        vd, err := r.resolve(m, seen, fmt.Sprintf("%s variant%d", hint, i+1))
        if err != nil {
            return nil, err
        }
        variants = append(variants, vd)
    }
    return &Descriptor{
        Kind:          KindChoice,
        Name:          name,
        Variants:      variants,
        Discriminator: node.Discriminator,
        Doc:           node.Description,
    }, nil
}

// scalarFor maps a primitive (type, format) pair onto a semantic scalar
// tag. Unknown formats degrade to the base kind with a warning; unknown
// types degrade to opaque. Never an error.
func (r *Resolver) scalarFor(node *SchemaNode, hint string) *Descriptor {
    d := &Descriptor{Kind: KindScalar, Doc: node.Description}
    switch node.Type {
    case "integer":
        switch node.Format {
        case "", "int64":
            d.Scalar = ScalarInteger64
        case "int32":
            d.Scalar = ScalarInteger32
        default:
            d.Scalar = ScalarInteger64
            warnf(r.warn, "unknown integer format %q at %q, using %s", node.Format, hint, ScalarInteger64)
        }
    case "number":
        switch node.Format {
        case "", "double":
            d.Scalar = ScalarFloat64
        case "float":
            d.Scalar = ScalarFloat32
        default:
            d.Scalar = ScalarFloat64
            warnf(r.warn, "unknown number format %q at %q, using %s", node.Format, hint, ScalarFloat64)
        }
    case "string":
        switch node.Format {
        case "", "password", "email", "uri":
            d.Scalar = ScalarString
        case "date-time":
            d.Scalar = ScalarTimestamp
        case "date":
            d.Scalar = ScalarDate
        case "uuid":
            d.Scalar = ScalarUUID
        case "byte", "binary":
            d.Scalar = ScalarBytes
        default:
            d.Scalar = ScalarString
            warnf(r.warn, "unknown string format %q at %q, using %s", node.Format, hint, ScalarString)
        }
    case "boolean":
        d.Scalar = ScalarBool
    case "":
        d.Scalar = ScalarOpaque
    default:
        d.Scalar = ScalarOpaque
        warnf(r.warn, "unknown schema type %q at %q, treating as opaque", node.Type, hint)
    }
    return d
}
