package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge-dev/specforge/internal/ordered"
)

type fakeHandler struct {
	protocol Protocol
	prepared int
}

func (f *fakeHandler) Protocol() Protocol { return f.protocol }
func (f *fakeHandler) Supports(Role) bool { return true }
func (f *fakeHandler) Prepare(in PrepareInput) (*Seed, error) {
	f.prepared++
	return &Seed{Protocol: f.protocol, Role: in.Role, Variables: ordered.New[string, any]()}, nil
}

func TestNewRegistry_Defaults(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	for _, p := range Protocols() {
		h, ok := r.Get(p)
		require.True(t, ok, "missing handler for %s", p)
		assert.Equal(t, p, h.Protocol())
	}

	// Only MCP is complete; the rest are stubs that refuse every role.
	_, err := r.Prepare(ProtocolA2A, PrepareInput{Role: RoleAgent, ProjectName: "x"})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnsupportedRole, ce.Code)
	assert.Equal(t, ProtocolA2A, ce.Protocol)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	override := &fakeHandler{protocol: ProtocolMCP}
	r.Register(override)

	seed, err := r.Prepare(ProtocolMCP, PrepareInput{Role: RoleBroker})
	require.NoError(t, err)
	assert.Equal(t, ProtocolMCP, seed.Protocol)
	assert.Equal(t, 1, override.prepared)
}

func TestRegistry_UnknownProtocol(t *testing.T) {
	t.Parallel()
	r := &Registry{handlers: map[Protocol]Handler{}}

	_, err := r.Prepare(ProtocolMCP, PrepareInput{Role: RoleServer})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnknownProtocol, ce.Code)
}
