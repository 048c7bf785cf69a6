package capability

import (
	"fmt"
	"sync"

	"github.com/specforge-dev/specforge/internal/ordered"
	"github.com/specforge-dev/specforge/internal/spec"
)

// ErrorCode categorizes capability failures. All of them are caller errors,
// never retryable.
type ErrorCode string

const (
	UnknownProtocol      ErrorCode = "UnknownProtocol"
	UnsupportedRole      ErrorCode = "UnsupportedRole"
	MissingRequiredInput ErrorCode = "MissingRequiredInput"
	InvalidConfiguration ErrorCode = "InvalidConfiguration"
)

// Error is a structured capability failure.
type Error struct {
	Code     ErrorCode
	Protocol Protocol
	Role     Role
	Message  string
}

func (e *Error) Error() string { return e.Message }

func unsupportedRole(p Protocol, r Role) *Error {
	return &Error{
		Code:     UnsupportedRole,
		Protocol: p,
		Role:     r,
		Message:  fmt.Sprintf("protocol %s does not support role %s", p, r),
	}
}

// PrepareInput is what a handler gets to work with when seeding a run.
// Document is nil when the caller has no contract; handlers decide per role
// whether that is acceptable.
type PrepareInput struct {
	Role        Role
	ProjectName string
	Version     string
	Document    *spec.Document
	// Options are caller-supplied variables merged into the seed last, so
	// they override handler defaults.
	Options *ordered.Map[string, any]
}

// Seed is the protocol-specific contribution to a render context. Variable
// order is the order templates observe.
type Seed struct {
	Protocol  Protocol
	Role      Role
	Variables *ordered.Map[string, any]
}

// Handler prepares the seed for one protocol.
type Handler interface {
	Protocol() Protocol
	Supports(role Role) bool
	Prepare(in PrepareInput) (*Seed, error)
}

// Registry maps protocols to handlers. Reads are shared, registration takes
// the write lock.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Protocol]Handler
}

// NewRegistry returns a registry with the default handlers: a complete MCP
// handler and stubs for the remaining protocols.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[Protocol]Handler)}
	r.Register(NewMCPHandler())
	r.Register(stubHandler{protocol: ProtocolA2A})
	r.Register(stubHandler{protocol: ProtocolACP})
	r.Register(stubHandler{protocol: ProtocolANP})
	return r
}

// Register installs h for its protocol. Re-registering replaces the previous
// handler, which is how tests swap in overrides.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Protocol()] = h
}

// Get returns the handler registered for p.
func (r *Registry) Get(p Protocol) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[p]
	return h, ok
}

// Prepare dispatches to the handler for p.
func (r *Registry) Prepare(p Protocol, in PrepareInput) (*Seed, error) {
	h, ok := r.Get(p)
	if !ok {
		return nil, &Error{
			Code:     UnknownProtocol,
			Protocol: p,
			Message:  fmt.Sprintf("no handler registered for protocol %s", p),
		}
	}
	return h.Prepare(in)
}

// stubHandler proves the extension point for protocols that ship without an
// implementation yet.
type stubHandler struct {
	protocol Protocol
}

func (s stubHandler) Protocol() Protocol { return s.protocol }

func (s stubHandler) Supports(Role) bool { return false }

func (s stubHandler) Prepare(in PrepareInput) (*Seed, error) {
	return nil, unsupportedRole(s.protocol, in.Role)
}
