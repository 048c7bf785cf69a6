package spec

import (
    "errors"
    "testing"
)

func extractAll(t *testing.T, contract string, opts ...BuildOption) []Operation {
    t.Helper()
    ops, err := Extract(buildDoc(t, contract), opts...)
    if err != nil {
        t.Fatalf("extract: %v", err)
    }
    return ops
}

func TestExtract_DocumentOrder(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract)

    wantIDs := []string{"listPets", "createPet", "GET /pets/{id}", "adminOnly"}
    if len(ops) != len(wantIDs) {
        t.Fatalf("operations: got %d, want %d", len(ops), len(wantIDs))
    }
    for i, want := range wantIDs {
        if ops[i].ID != want {
            t.Errorf("ops[%d]: got %q, want %q", i, ops[i].ID, want)
        }
    }
}

func TestExtract_FallbackIDForMissingOperationID(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract)

    op := ops[2]
    if op.ID != "GET /pets/{id}" || op.Method != GET || op.Path != "/pets/{id}" {
        t.Fatalf("got %+v", op)
    }
}

func TestExtract_ParameterMergeAndStyle(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract)

    list := ops[0]
    if len(list.Parameters) != 2 {
        t.Fatalf("listPets parameters: got %+v", list.Parameters)
    }

    limit := list.Parameters[0]
    if limit.Name != "limit" || limit.Location != LocationQuery {
        t.Fatalf("parameters[0]: got %+v", limit)
    }
    if !limit.Required {
        t.Errorf("operation-level limit must override the path-level one")
    }
    if !limit.Type.IsScalar(ScalarInteger64) {
        t.Errorf("limit type: got %+v", limit.Type)
    }
    if limit.Style != StyleNone {
        t.Errorf("limit style: got %q", limit.Style)
    }

    tags := list.Parameters[1]
    if tags.Name != "tags" || tags.Location != LocationQuery {
        t.Fatalf("parameters[1]: got %+v", tags)
    }
    if tags.Style != StyleCommaJoined {
        t.Errorf("scalar list in query must be comma-joined, got %q", tags.Style)
    }
    if k, ok := tags.Type.ElemScalar(); !ok || k != ScalarString {
        t.Errorf("tags type: got %+v", tags.Type)
    }
}

func TestExtract_RequestBodyAndResponses(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract)

    create := ops[1]
    if create.RequestBody == nil || !create.RequestBodyRequired {
        t.Fatalf("createPet body: got %+v", create.RequestBody)
    }
    if create.RequestBody.Kind != KindStruct || create.RequestBody.Name != "Pet" {
        t.Errorf("createPet body type: got %+v", create.RequestBody)
    }

    list := ops[0]
    success, _ := list.Responses.Get(Status2xx)
    if success == nil || success.Kind != KindList {
        t.Fatalf("listPets 2xx: got %+v", success)
    }
    if success.Elem.Name != "Pet" {
        t.Errorf("listPets 2xx element: got %+v", success.Elem)
    }
    nf, _ := list.Responses.Get(Status4xx)
    if nf == nil || !nf.IsScalar(ScalarOpaque) {
        t.Fatalf("listPets 4xx: contentless response must resolve opaque, got %+v", nf)
    }
    if nf.Doc != "not found" {
        t.Errorf("listPets 4xx doc: got %q", nf.Doc)
    }
}

func TestExtract_ResponseClassFirstWins(t *testing.T) {
    t.Parallel()
    var warnings []string
    warn := func(format string, args ...any) { warnings = append(warnings, format) }

    ops := extractAll(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths:
  /a:
    get:
      operationId: getA
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: string }
        "201":
          description: also ok
          content:
            application/json:
              schema: { type: integer }
        "2XX":
          description: wildcard
        weird:
          description: not a status
        default:
          description: fallback
`, WithWarnFunc(warn))

    op := ops[0]
    if op.Responses.Len() != 2 {
        t.Fatalf("classes: got %v", op.Responses.Keys())
    }
    d, _ := op.Responses.Get(Status2xx)
    if !d.IsScalar(ScalarString) {
        t.Errorf("first 2xx status must win, got %+v", d)
    }
    if _, ok := op.Responses.Get(StatusDefault); !ok {
        t.Errorf("default class missing")
    }
    if len(warnings) == 0 {
        t.Errorf("unrecognized status should warn")
    }
}

func TestExtract_TagFiltering(t *testing.T) {
    t.Parallel()

    ops := extractAll(t, sampleContract, WithIncludeTags([]string{"read"}))
    if len(ops) != 1 || ops[0].ID != "listPets" {
        t.Fatalf("include tags: got %+v", ops)
    }

    ops = extractAll(t, sampleContract, WithExcludeTags([]string{"admin"}))
    for _, op := range ops {
        if op.ID == "adminOnly" {
            t.Fatalf("exclude tags: adminOnly should be filtered out")
        }
    }
}

func TestExtract_MethodAndPathFilters(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract,
        WithMethods([]HttpMethod{POST}),
        WithPathPatterns([]string{"^/pets$"}))

    if len(ops) != 1 {
        t.Fatalf("filters: got %+v", ops)
    }
    if ops[0].Method != POST || ops[0].Path != "/pets" {
        t.Fatalf("filters: wrong operation %s %s", ops[0].Method, ops[0].Path)
    }
}

func TestExtract_InvalidPathPatternMatchesNothing(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract, WithPathPatterns([]string{"["}))
    if len(ops) != 0 {
        t.Fatalf("invalid pattern must select nothing, got %+v", ops)
    }
}

func TestExtract_ArrayParamOutsideQueryFails(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths:
  /a/{ids}:
    get:
      operationId: getByIDs
      parameters:
        - in: path
          name: ids
          required: true
          schema:
            type: array
            items: { type: string }
      responses:
        "200": { description: ok }
`)
    _, err := Extract(doc)
    if err == nil {
        t.Fatalf("expected extraction failure")
    }
    var ee *ExtractionError
    if !errors.As(err, &ee) || ee.Code != UnsupportedParameterShape {
        t.Fatalf("expected UnsupportedParameterShape, got %v", err)
    }
    if ee.Operation != "getByIDs" || ee.Parameter != "ids" {
        t.Errorf("error context: got op=%q param=%q", ee.Operation, ee.Parameter)
    }
}

func TestExtract_ArrayOfObjectsInQueryFails(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths:
  /a:
    get:
      operationId: getA
      parameters:
        - in: query
          name: filters
          schema:
            type: array
            items:
              type: object
              properties:
                k: { type: string }
      responses:
        "200": { description: ok }
`)
    _, err := Extract(doc)
    var ee *ExtractionError
    if !errors.As(err, &ee) || ee.Code != UnsupportedParameterShape {
        t.Fatalf("expected UnsupportedParameterShape, got %v", err)
    }
}

func TestExtract_CookieParameterFails(t *testing.T) {
    t.Parallel()
    doc := buildDoc(t, `
openapi: 3.0.0
info: { title: T, version: "1" }
paths:
  /a:
    get:
      operationId: getA
      parameters:
        - in: cookie
          name: session
          schema: { type: string }
      responses:
        "200": { description: ok }
`)
    _, err := Extract(doc)
    var ee *ExtractionError
    if !errors.As(err, &ee) || ee.Code != UnsupportedParameterShape {
        t.Fatalf("expected UnsupportedParameterShape, got %v", err)
    }
}

func TestExtract_SharedResolverAcrossOperations(t *testing.T) {
    t.Parallel()
    ops := extractAll(t, sampleContract)

    // createPet's body and listPets's 2xx element refer to the same schema
    // and must share one descriptor.
    list2xx, _ := ops[0].Responses.Get(Status2xx)
    if ops[1].RequestBody != list2xx.Elem {
        t.Fatalf("Pet resolved more than once within a single extraction")
    }
}
