package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

func testDocument() *spec.Document {
	return &spec.Document{
		Title:       "Petstore",
		Version:     "1.0.0",
		Description: "A sample API",
		BaseURL:     "https://api.example.com/v1",
	}
}

func TestMCPHandler_ServerRequiresDocument(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	_, err := h.Prepare(PrepareInput{Role: RoleServer, ProjectName: "my-server"})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, MissingRequiredInput, ce.Code)
	assert.Equal(t, RoleServer, ce.Role)
}

func TestMCPHandler_ClientWorksWithoutDocument(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	seed, err := h.Prepare(PrepareInput{Role: RoleClient, ProjectName: "my-client", Version: "2.0.0"})
	require.NoError(t, err)
	assert.Equal(t, ProtocolMCP, seed.Protocol)
	assert.Equal(t, RoleClient, seed.Role)

	name, _ := seed.Variables.Get("project_name")
	assert.Equal(t, "my-client", name)
	version, _ := seed.Variables.Get("version")
	assert.Equal(t, "2.0.0", version)
	transport, _ := seed.Variables.Get("transport")
	assert.Equal(t, "stdio", transport)
	connection, _ := seed.Variables.Get("connection_type")
	assert.Equal(t, "direct", connection)
	assert.False(t, seed.Variables.Has("features"), "features are server-only")
	assert.False(t, seed.Variables.Has("api_title"))
}

func TestMCPHandler_ServerSeedsDocumentMetadata(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	seed, err := h.Prepare(PrepareInput{
		Role:        RoleServer,
		ProjectName: "petstore_server",
		Document:    testDocument(),
	})
	require.NoError(t, err)

	version, _ := seed.Variables.Get("version")
	assert.Equal(t, "0.1.0", version, "version defaults when unset")

	features, ok := seed.Variables.Get("features")
	require.True(t, ok)
	assert.Equal(t, map[string]bool{
		"tools":     true,
		"resources": true,
		"prompts":   true,
		"sampling":  false,
	}, features)

	title, _ := seed.Variables.Get("api_title")
	assert.Equal(t, "Petstore", title)
	apiVersion, _ := seed.Variables.Get("api_version")
	assert.Equal(t, "1.0.0", apiVersion)
	desc, _ := seed.Variables.Get("api_description")
	assert.Equal(t, "A sample API", desc)
	base, _ := seed.Variables.Get("base_api_url")
	assert.Equal(t, "https://api.example.com/v1", base)
}

func TestMCPHandler_SeedOrderIsStable(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	seed, err := h.Prepare(PrepareInput{
		Role:        RoleServer,
		ProjectName: "p",
		Document:    testDocument(),
	})
	require.NoError(t, err)

	want := []string{
		"project_name", "version", "transport", "connection_type",
		"features", "api_title", "api_version", "api_description", "base_api_url",
	}
	assert.Equal(t, want, seed.Variables.Keys())
}

func TestMCPHandler_OptionsOverrideDefaults(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	opts := ordered.New[string, any]()
	opts.Set("transport", "http")
	opts.Set("port", 8080)

	seed, err := h.Prepare(PrepareInput{
		Role:        RoleClient,
		ProjectName: "c",
		Options:     opts,
	})
	require.NoError(t, err)

	transport, _ := seed.Variables.Get("transport")
	assert.Equal(t, "http", transport)
	port, _ := seed.Variables.Get("port")
	assert.Equal(t, 8080, port)
	// Overriding must not move the key.
	assert.Equal(t, "transport", seed.Variables.Keys()[2])
}

func TestMCPHandler_InvalidTransport(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	opts := ordered.New[string, any]()
	opts.Set("transport", "carrier-pigeon")

	_, err := h.Prepare(PrepareInput{Role: RoleClient, ProjectName: "c", Options: opts})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, InvalidConfiguration, ce.Code)
	assert.Contains(t, ce.Message, "transport")
}

func TestMCPHandler_InvalidProjectName(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	for _, bad := range []string{"", "my project", "-leading", "_leading", "na!me"} {
		_, err := h.Prepare(PrepareInput{Role: RoleClient, ProjectName: bad})
		var ce *Error
		require.ErrorAs(t, err, &ce, "name %q", bad)
		assert.Equal(t, InvalidConfiguration, ce.Code, "name %q", bad)
	}
}

func TestMCPHandler_UnsupportedRole(t *testing.T) {
	t.Parallel()
	h := NewMCPHandler()

	for _, role := range []Role{RoleAgent, RoleBroker} {
		_, err := h.Prepare(PrepareInput{Role: role, ProjectName: "p"})
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, UnsupportedRole, ce.Code)
		assert.Equal(t, role, ce.Role)
	}
}
