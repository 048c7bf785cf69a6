// Package capability defines the protocol surface of the generator: which
// protocols exist, which roles each one serves, and the protocol-specific
// variable seed contributed to every generation run.
package capability

import (
	"fmt"
	"strings"
)

// Protocol identifies an agent protocol a bundle can target.
type Protocol string

const (
	ProtocolMCP Protocol = "mcp"
	ProtocolA2A Protocol = "a2a"
	ProtocolACP Protocol = "acp"
	ProtocolANP Protocol = "anp"
)

// Protocols lists all known protocols in stable order.
func Protocols() []Protocol {
	return []Protocol{ProtocolMCP, ProtocolA2A, ProtocolACP, ProtocolANP}
}

// ParseProtocol maps a user-supplied string onto a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcp":
		return ProtocolMCP, nil
	case "a2a":
		return ProtocolA2A, nil
	case "acp":
		return ProtocolACP, nil
	case "anp":
		return ProtocolANP, nil
	default:
		return "", &Error{Code: InvalidConfiguration, Message: fmt.Sprintf("unknown protocol %q", s)}
	}
}

// Role is the side of a protocol a generated project implements.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleBroker Role = "broker"
)

// ParseRole maps a user-supplied string onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	case "agent":
		return RoleAgent, nil
	case "broker":
		return RoleBroker, nil
	default:
		return "", &Error{Code: InvalidConfiguration, Message: fmt.Sprintf("unknown role %q", s)}
	}
}

// Language is the implementation language of a generated project.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangRust       Language = "rust"
)

// ParseLanguage maps a user-supplied string onto a Language, accepting the
// common short aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "golang":
		return LangGo, nil
	case "python", "py":
		return LangPython, nil
	case "typescript", "ts":
		return LangTypeScript, nil
	case "rust", "rs":
		return LangRust, nil
	default:
		return "", &Error{Code: InvalidConfiguration, Message: fmt.Sprintf("unknown language %q", s)}
	}
}

// Capabilities describes what a protocol can do, independent of whether a
// handler for it is registered.
type Capabilities struct {
	Protocol         Protocol
	Roles            []Role
	RequiresDocument bool
	Streaming        bool
	Bidirectional    bool
}

// Capabilities returns the fixed capability row for p.
func (p Protocol) Capabilities() Capabilities {
	switch p {
	case ProtocolMCP:
		return Capabilities{
			Protocol:         ProtocolMCP,
			Roles:            []Role{RoleServer, RoleClient},
			RequiresDocument: true,
			Streaming:        true,
			Bidirectional:    true,
		}
	case ProtocolA2A:
		return Capabilities{
			Protocol:      ProtocolA2A,
			Roles:         []Role{RoleAgent},
			Streaming:     true,
			Bidirectional: true,
		}
	case ProtocolACP:
		return Capabilities{
			Protocol:  ProtocolACP,
			Roles:     []Role{RoleServer, RoleClient, RoleBroker},
			Streaming: true,
		}
	case ProtocolANP:
		return Capabilities{
			Protocol: ProtocolANP,
			Roles:    []Role{RoleAgent},
		}
	default:
		return Capabilities{Protocol: p}
	}
}

// SupportsRole reports whether the protocol's capability row includes r.
func (p Protocol) SupportsRole(r Role) bool {
	for _, have := range p.Capabilities().Roles {
		if have == r {
			return true
		}
	}
	return false
}
