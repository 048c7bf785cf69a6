package spec

import (
    "errors"
    "reflect"
    "testing"
)

func refNode(pointer string) *SchemaNode {
    return &SchemaNode{Kind: NodeReference, Ref: pointer}
}

func TestResolve_PetStruct(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)
    r := NewResolver(doc, nil)

    d, err := r.Resolve(refNode("#/components/schemas/Pet"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if d.Kind != KindStruct || d.Name != "Pet" {
        t.Fatalf("got kind=%s name=%q", d.Kind, d.Name)
    }
    if len(d.Fields) != 3 {
        t.Fatalf("fields: got %d", len(d.Fields))
    }

    id := d.Fields[0]
    if id.Name != "id" || !id.Type.IsScalar(ScalarInteger64) || id.Optional {
        t.Errorf("id field: got %+v (type %+v)", id, id.Type)
    }
    name := d.Fields[1]
    if name.Name != "name" || !name.Type.IsScalar(ScalarString) || name.Optional {
        t.Errorf("name field: got %+v (type %+v)", name, name.Type)
    }
    tags := d.Fields[2]
    if tags.Name != "tags" || !tags.Optional {
        t.Errorf("tags field: got %+v", tags)
    }
    if k, ok := tags.Type.ElemScalar(); !ok || k != ScalarString {
        t.Errorf("tags type: expected list of strings, got %+v", tags.Type)
    }
}

func TestResolve_SelfReferenceBecomesAlias(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    A:
      type: object
      properties:
        field:
          $ref: '#/components/schemas/A'
`)
    r := NewResolver(doc, nil)

    a, err := r.Resolve(refNode("#/components/schemas/A"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if a.Kind != KindStruct || a.Name != "A" || len(a.Fields) != 1 {
        t.Fatalf("got %+v", a)
    }
    alias := a.Fields[0].Type
    if alias.Kind != KindNamedAlias || alias.Name != "A" {
        t.Fatalf("field type: got kind=%s name=%q", alias.Kind, alias.Name)
    }
    if alias.Target != a {
        t.Fatalf("alias target is not the resolved descriptor")
    }
}

func TestResolve_MutualReferenceCycle(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    A:
      type: object
      properties:
        b:
          $ref: '#/components/schemas/B'
    B:
      type: object
      properties:
        a:
          $ref: '#/components/schemas/A'
`)
    r := NewResolver(doc, nil)

    a, err := r.Resolve(refNode("#/components/schemas/A"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    b := a.Fields[0].Type
    if b.Kind != KindStruct || b.Name != "B" {
        t.Fatalf("A.b: got kind=%s name=%q", b.Kind, b.Name)
    }
    back := b.Fields[0].Type
    if back.Kind != KindNamedAlias || back.Name != "A" || back.Target != a {
        t.Fatalf("B.a: expected alias back to A, got %+v", back)
    }

    // Resolving B afterwards must return the very descriptor embedded in A.
    b2, err := r.Resolve(refNode("#/components/schemas/B"), "")
    if err != nil {
        t.Fatalf("resolve B: %v", err)
    }
    if b2 != b {
        t.Fatalf("expected memoized descriptor for B")
    }
}

func TestResolve_SharedReferenceWithoutCycle(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    C:
      type: object
      properties:
        x:
          $ref: '#/components/schemas/D'
        y:
          $ref: '#/components/schemas/D'
    D:
      type: object
      properties:
        v: { type: string }
`)
    r := NewResolver(doc, nil)

    c, err := r.Resolve(refNode("#/components/schemas/C"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    x, y := c.Fields[0].Type, c.Fields[1].Type
    if x.Kind != KindStruct || x.Name != "D" {
        t.Fatalf("C.x: got %+v", x)
    }
    // No cycle here, so both fields share the struct itself, not an alias.
    if x != y {
        t.Fatalf("expected both fields to share one descriptor")
    }
}

func TestResolve_MemoizationAndDeterminism(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)

    r := NewResolver(doc, nil)
    first, err := r.Resolve(refNode("#/components/schemas/Pet"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    second, err := r.Resolve(refNode("#/components/schemas/Pet"), "")
    if err != nil {
        t.Fatalf("resolve again: %v", err)
    }
    if first != second {
        t.Fatalf("same resolver must return the memoized descriptor")
    }

    fresh, err := NewResolver(doc, nil).Resolve(refNode("#/components/schemas/Pet"), "")
    if err != nil {
        t.Fatalf("fresh resolve: %v", err)
    }
    if !reflect.DeepEqual(first, fresh) {
        t.Fatalf("two runs over one document disagree:\n%+v\n%+v", first, fresh)
    }
}

func TestResolve_AllOfMergesFields(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    Base:
      type: object
      required: [id]
      properties:
        id: { type: string }
    Extended:
      allOf:
        - $ref: '#/components/schemas/Base'
        - type: object
          properties:
            extra: { type: integer }
`)
    r := NewResolver(doc, nil)

    d, err := r.Resolve(refNode("#/components/schemas/Extended"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if d.Kind != KindStruct || d.Name != "Extended" {
        t.Fatalf("got %+v", d)
    }
    if len(d.Fields) != 2 || d.Fields[0].Name != "id" || d.Fields[1].Name != "extra" {
        t.Fatalf("fields out of order: %+v", d.Fields)
    }
    if d.Fields[0].Optional {
        t.Errorf("id must stay required through the merge")
    }
}

func TestResolve_AllOfConflictFailsLoudly(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    Clash:
      allOf:
        - type: object
          properties:
            id: { type: string }
        - type: object
          properties:
            id: { type: integer }
`)
    r := NewResolver(doc, nil)

    _, err := r.Resolve(refNode("#/components/schemas/Clash"), "")
    if err == nil {
        t.Fatalf("expected conflict error")
    }
    var re *ResolutionError
    if !errors.As(err, &re) || re.Code != ConflictingField {
        t.Fatalf("expected ConflictingField, got %v", err)
    }
}

func TestResolve_AllOfNonStructMember(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    Bad:
      allOf:
        - type: object
          properties:
            id: { type: string }
        - type: string
`)
    r := NewResolver(doc, nil)

    _, err := r.Resolve(refNode("#/components/schemas/Bad"), "")
    var re *ResolutionError
    if !errors.As(err, &re) || re.Code != InvalidComposition {
        t.Fatalf("expected InvalidComposition, got %v", err)
    }
}

func TestResolve_OneOfBecomesChoice(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    Animal:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
      discriminator:
        propertyName: species
    Cat:
      type: object
      properties:
        purrs: { type: boolean }
    Dog:
      type: object
      properties:
        barks: { type: boolean }
`)
    r := NewResolver(doc, nil)

    d, err := r.Resolve(refNode("#/components/schemas/Animal"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if d.Kind != KindChoice || d.Name != "Animal" || d.Discriminator != "species" {
        t.Fatalf("got %+v", d)
    }
    if len(d.Variants) != 2 || d.Variants[0].Name != "Cat" || d.Variants[1].Name != "Dog" {
        t.Fatalf("variants: %+v", d.Variants)
    }
}

func TestResolve_EnumKeepsBaseScalar(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)
    r := NewResolver(doc, nil)

    d, err := r.Resolve(refNode("#/components/schemas/Status"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if !d.IsScalar(ScalarString) || d.Name != "Status" {
        t.Fatalf("got %+v", d)
    }
    if len(d.EnumValues) != 3 || d.EnumValues[0] != "available" {
        t.Fatalf("enum values: %v", d.EnumValues)
    }
}

func TestResolve_AnonymousObjectNamedFromHint(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)
    r := NewResolver(doc, nil)

    node := &SchemaNode{
        Kind: NodeObject,
        Fields: []SchemaField{
            {Name: "count", Node: &SchemaNode{Kind: NodePrimitive, Type: "integer"}},
        },
    }
    d, err := r.Resolve(node, "getPetsId response 200")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if d.Name != "GetPetsIdResponse200" {
        t.Errorf("synthesized name: got %q", d.Name)
    }
    if len(d.Fields) != 1 || !d.Fields[0].Type.IsScalar(ScalarInteger64) {
        t.Errorf("fields: got %+v", d.Fields)
    }
}

func TestResolve_UnresolvedReference(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)
    r := NewResolver(doc, nil)

    _, err := r.Resolve(refNode("#/components/schemas/Nope"), "")
    var re *ResolutionError
    if !errors.As(err, &re) || re.Code != UnresolvedReference {
        t.Fatalf("expected UnresolvedReference, got %v", err)
    }
    if re.Pointer != "#/components/schemas/Nope" {
        t.Errorf("pointer: got %q", re.Pointer)
    }
}

func TestResolve_UnknownFormatWarnsAndDegrades(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)

    var warnings []string
    r := NewResolver(doc, func(format string, args ...any) {
        warnings = append(warnings, format)
    })

    d, err := r.Resolve(&SchemaNode{Kind: NodePrimitive, Type: "string", Format: "hostname"}, "field")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if !d.IsScalar(ScalarString) {
        t.Errorf("got %+v", d)
    }
    if len(warnings) != 1 {
        t.Errorf("expected one warning, got %v", warnings)
    }
}

func TestResolve_ScalarTable(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, sampleContract)
    r := NewResolver(doc, nil)

    cases := []struct {
        typ, format string
        want        ScalarKind
    }{
        {"integer", "", ScalarInteger64},
        {"integer", "int32", ScalarInteger32},
        {"integer", "int64", ScalarInteger64},
        {"number", "", ScalarFloat64},
        {"number", "float", ScalarFloat32},
        {"string", "", ScalarString},
        {"string", "date-time", ScalarTimestamp},
        {"string", "date", ScalarDate},
        {"string", "uuid", ScalarUUID},
        {"string", "byte", ScalarBytes},
        {"string", "binary", ScalarBytes},
        {"boolean", "", ScalarBool},
        {"", "", ScalarOpaque},
    }
    for _, tc := range cases {
        d, err := r.Resolve(&SchemaNode{Kind: NodePrimitive, Type: tc.typ, Format: tc.format}, "x")
        if err != nil {
            t.Fatalf("(%s,%s): %v", tc.typ, tc.format, err)
        }
        if !d.IsScalar(tc.want) {
            t.Errorf("(%s,%s): got %s, want %s", tc.typ, tc.format, d.Scalar, tc.want)
        }
    }
}

func TestResolve_AdditionalPropertiesOnlyIsOpaque(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths: {}
components:
  schemas:
    Bag:
      type: object
      additionalProperties: true
`)
    var warnings []string
    r := NewResolver(doc, func(format string, args ...any) {
        warnings = append(warnings, format)
    })

    d, err := r.Resolve(refNode("#/components/schemas/Bag"), "")
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if !d.IsScalar(ScalarOpaque) || d.Name != "Bag" {
        t.Fatalf("got %+v", d)
    }
    if len(warnings) == 0 {
        t.Errorf("expected a degradation warning")
    }
}
