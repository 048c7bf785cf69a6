package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge-dev/specforge/internal/capability"
	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

const petstoreContract = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
  description: Pets over HTTP.
servers:
  - url: https://api.example.com/v1
paths:
  /pets/{id}:
    get:
      operationId: getPetById
      summary: Fetch one pet.
      tags: [pets]
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
        - name: tags
          in: query
          schema:
            type: array
            items:
              type: string
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
components:
  schemas:
    Pet:
      type: object
      properties:
        id:
          type: integer
        tags:
          type: array
          items:
            type: string
`

func loadPetstore(t *testing.T) (*spec.Document, []spec.Operation) {
	t.Helper()
	doc, err := spec.Parse(context.Background(), []byte(petstoreContract))
	require.NoError(t, err)
	ops, err := spec.Extract(doc)
	require.NoError(t, err)
	return doc, ops
}

func petstoreSeed(t *testing.T, role capability.Role, doc *spec.Document) *capability.Seed {
	t.Helper()
	seed, err := capability.NewRegistry().Prepare(capability.ProtocolMCP, capability.PrepareInput{
		Role:        role,
		ProjectName: "petstore-server",
		Document:    doc,
	})
	require.NoError(t, err)
	return seed
}

func TestBuildContext_LayersAndPrecedence(t *testing.T) {
	doc, ops := loadPetstore(t)
	seed := petstoreSeed(t, capability.RoleServer, doc)

	meta := Metadata{
		Generator: "specforge test",
		Protocol:  capability.ProtocolMCP,
		Role:      capability.RoleServer,
		Language:  capability.LangGo,
	}
	ctx := BuildContext(seed, nil, meta, ops)

	name, ok := ctx.Value("project_name")
	require.True(t, ok)
	assert.Equal(t, "petstore-server", name)

	proto, _ := ctx.Value("protocol")
	assert.Equal(t, "mcp", proto)
	lang, _ := ctx.Value("language")
	assert.Equal(t, "go", lang)

	got, ok := ctx.Value("operations")
	require.True(t, ok)
	require.Len(t, got.([]spec.Operation), 1)

	title, _ := ctx.Value("api_title")
	assert.Equal(t, "Petstore", title)
}

func TestBuildContext_SeedOverridesMetadataKey(t *testing.T) {
	vars := ordered.New[string, any]()
	vars.Set("project_name", "demo")
	vars.Set("language", "overridden")
	seed := &capability.Seed{
		Protocol:  capability.ProtocolMCP,
		Role:      capability.RoleClient,
		Variables: vars,
	}

	ctx := BuildContext(seed, nil, Metadata{Language: capability.LangGo}, nil)

	lang, _ := ctx.Value("language")
	assert.Equal(t, "overridden", lang)
}

func TestBuildContext_OperationsAlwaysPresent(t *testing.T) {
	ctx := BuildContext(nil, nil, Metadata{}, nil)
	got, ok := ctx.Value("operations")
	require.True(t, ok)
	assert.Empty(t, got.([]spec.Operation))
}

func TestRenderContext_WithDoesNotMutateBase(t *testing.T) {
	base := BuildContext(nil, nil, Metadata{Generator: "g"}, nil)

	extra := ordered.New[string, any]()
	extra.Set("generator", "overridden")
	extra.Set("only_here", 42)
	derived := base.With(extra)

	v, _ := derived.Value("generator")
	assert.Equal(t, "overridden", v)
	v, _ = base.Value("generator")
	assert.Equal(t, "g", v)
	_, ok := base.Value("only_here")
	assert.False(t, ok)
}

func TestRenderContext_WithOperation(t *testing.T) {
	_, ops := loadPetstore(t)
	base := BuildContext(nil, nil, Metadata{}, ops)

	derived := base.WithOperation(ops[0])

	op, ok := derived.Value("operation")
	require.True(t, ok)
	assert.Equal(t, "getPetById", op.(spec.Operation).ID)

	id, _ := derived.Value("operation_id")
	assert.Equal(t, "get_pet_by_id", id)

	_, ok = base.Value("operation")
	assert.False(t, ok)
}
