// Package mcp implements the Model Context Protocol tool provider:
// connecting to configured MCP servers over the official SDK transports,
// exposing their tools as llm.ToolDefinitions, and dispatching calls
// through a liveness-checked, reconnect-on-failure toolexec.Tool.
//
// Grounded on go-opencode's internal/mcp/client.go and types.go for the
// connection/config shape, and on another pack repo's MCP manager
// (Ping before each call, reconnect on failure) for the liveness/reconnect
// behavior layered on top of that. Reconnects here are immediate, with no
// backoff between tries.
package mcp

import (
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Config defines one MCP server connection.
type Config struct {
	Enabled     bool              `json:"enabled"`
	Type        TransportType     `json:"type"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Timeout     int               `json:"timeout,omitempty"` // milliseconds
}

// TransportType selects how a server process or endpoint is reached.
type TransportType string

const (
	TransportTypeRemote TransportType = "remote"
	TransportTypeLocal  TransportType = "local"
	TransportTypeStdio  TransportType = "stdio"
)

// Tool is one MCP tool's metadata, already carrying its server-prefixed
// name by the time a caller sees it through Client.Tools.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// fromSDKTool converts an SDK tool to our Tool type.
func fromSDKTool(t *sdkmcp.Tool) Tool {
	var schema json.RawMessage
	if t.InputSchema != nil {
		schema, _ = json.Marshal(t.InputSchema)
	}
	return Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// Status is a server connection's current lifecycle state.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisabled     Status = "disabled"
	StatusFailed       Status = "failed"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// ServerInfo is the identity a server reports during initialization.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerStatus reports one server's connection state, for diagnostics.
type ServerStatus struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	ToolCount int     `json:"toolCount"`
	Error     *string `json:"error,omitempty"`
}

// ProtocolVersion is the MCP protocol version this client speaks.
const ProtocolVersion = "2024-11-05"
