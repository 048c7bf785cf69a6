package capability

import (
	"fmt"

	"github.com/specforge-dev/specforge/internal/naming"
	"github.com/specforge-dev/specforge/internal/ordered"
)

// MCPHandler is the complete Model Context Protocol handler. Server projects
// expose contract operations as MCP tools and therefore need a document;
// client projects connect to an existing server and do not.
type MCPHandler struct{}

func NewMCPHandler() *MCPHandler { return &MCPHandler{} }

func (h *MCPHandler) Protocol() Protocol { return ProtocolMCP }

func (h *MCPHandler) Supports(role Role) bool { return ProtocolMCP.SupportsRole(role) }

func (h *MCPHandler) Prepare(in PrepareInput) (*Seed, error) {
	if !h.Supports(in.Role) {
		return nil, unsupportedRole(ProtocolMCP, in.Role)
	}
	if err := naming.ValidateProjectName(in.ProjectName); err != nil {
		return nil, &Error{
			Code:     InvalidConfiguration,
			Protocol: ProtocolMCP,
			Role:     in.Role,
			Message:  fmt.Sprintf("project name: %v", err),
		}
	}
	if err := validateTransport(in.Options); err != nil {
		return nil, err
	}
	if in.Role == RoleServer && in.Document == nil {
		return nil, &Error{
			Code:     MissingRequiredInput,
			Protocol: ProtocolMCP,
			Role:     in.Role,
			Message:  "mcp server role requires an input contract",
		}
	}

	version := in.Version
	if version == "" {
		version = "0.1.0"
	}

	vars := ordered.New[string, any]()
	vars.Set("project_name", in.ProjectName)
	vars.Set("version", version)
	vars.Set("transport", "stdio")
	vars.Set("connection_type", "direct")
	if in.Role == RoleServer {
		vars.Set("features", map[string]bool{
			"tools":     true,
			"resources": true,
			"prompts":   true,
			"sampling":  false,
		})
	}
	if in.Document != nil {
		// All four keys are set even when empty so templates can rely on
		// their presence under strict rendering.
		vars.Set("api_title", in.Document.Title)
		vars.Set("api_version", in.Document.Version)
		vars.Set("api_description", in.Document.Description)
		vars.Set("base_api_url", in.Document.BaseURL)
	}
	// Caller options land last so they win over the defaults above. A
	// repeated key keeps its original position.
	if in.Options != nil {
		for k, v := range in.Options.All() {
			vars.Set(k, v)
		}
	}

	return &Seed{Protocol: ProtocolMCP, Role: in.Role, Variables: vars}, nil
}

func validateTransport(options *ordered.Map[string, any]) error {
	raw, ok := options.Get("transport")
	if !ok {
		return nil
	}
	transport, ok := raw.(string)
	if !ok {
		return &Error{
			Code:     InvalidConfiguration,
			Protocol: ProtocolMCP,
			Message:  fmt.Sprintf("transport must be a string, got %T", raw),
		}
	}
	switch transport {
	case "stdio", "http", "websocket":
		return nil
	default:
		return &Error{
			Code:     InvalidConfiguration,
			Protocol: ProtocolMCP,
			Message:  fmt.Sprintf("invalid transport %q: must be one of stdio, http, websocket", transport),
		}
	}
}
