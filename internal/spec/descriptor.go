package spec

// Resolved type descriptors. A Descriptor tree is what templates consume:
// finite, named, and free of raw references. Cycles in the source schema
// graph surface as NamedAlias nodes, which renderers treat as an
// indirection boundary (emit the target's declared name, never inline it).

// DescriptorKind discriminates Descriptor variants.
type DescriptorKind string

const (
    KindScalar     DescriptorKind = "scalar"
    KindList       DescriptorKind = "list"
    KindStruct     DescriptorKind = "struct"
    KindChoice     DescriptorKind = "choice"
    KindNamedAlias DescriptorKind = "alias"
)

// ScalarKind is the semantic tag of a scalar descriptor.
type ScalarKind string

const (
    ScalarString    ScalarKind = "string"
    ScalarBool      ScalarKind = "bool"
    ScalarInteger32 ScalarKind = "integer32"
    ScalarInteger64 ScalarKind = "integer64"
    ScalarFloat32   ScalarKind = "float32"
    ScalarFloat64   ScalarKind = "float64"
    ScalarTimestamp ScalarKind = "timestamp"
    ScalarDate      ScalarKind = "date"
    ScalarUUID      ScalarKind = "uuid"
    ScalarBytes     ScalarKind = "bytes"
    // ScalarOpaque marks values the contract leaves unspecified. It is the
    // default for contentless responses and unmodelable shapes.
    ScalarOpaque ScalarKind = "opaque"
)

// Descriptor is the resolved form of a schema node. Exactly one variant's
// fields are meaningful, selected by Kind.
type Descriptor struct {
    Kind DescriptorKind

    // Scalar tag.
    Scalar ScalarKind
    // EnumValues carries literal values when the source was an enumeration;
    // the descriptor stays a scalar of the base kind.
    EnumValues []any

    // Name is the declared or synthesized name of structs, choices, and
    // the declared name an alias stands for.
    Name string

    // List element.
    Elem *Descriptor

    // Struct fields in declaration order.
    Fields []Field

    // Choice variants in declaration order, plus the discriminator
    // property name when the source declared one.
    Variants      []*Descriptor
    Discriminator string

    // Target of a NamedAlias: the descriptor the name stands for. It is
    // referentially equal across every alias minted for one pointer, and
    // may still be mid-resolution when the alias is created, so renderers
    // must not traverse through it.
    Target *Descriptor

    Doc string
}

// Field is one named member of a struct descriptor.
type Field struct {
    Name     string
    Type     *Descriptor
    Optional bool
    Doc      string
}

// IsScalar reports whether d is a scalar of kind k.
func (d *Descriptor) IsScalar(k ScalarKind) bool {
    return d != nil && d.Kind == KindScalar && d.Scalar == k
}

// ElemScalar returns the scalar kind of a list-of-scalar descriptor.
func (d *Descriptor) ElemScalar() (ScalarKind, bool) {
    if d == nil || d.Kind != KindList || d.Elem == nil || d.Elem.Kind != KindScalar {
        return "", false
    }
    return d.Elem.Scalar, true
}
