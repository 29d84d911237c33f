package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vibeworks/agentcore/internal/toolexec"
)

// Tool adapts one MCP-exposed tool to toolexec.Tool, so it registers and
// runs through the same executor as every built-in tool — mirroring
// go-opencode's MCPToolWrapper, generalized from that module's own
// tool.Tool interface to this one's.
type wrappedTool struct {
	name   string
	client *Client
}

// NewTool builds a toolexec.Tool for one already-prefixed MCP tool name.
func NewTool(name string, client *Client) toolexec.Tool {
	return &wrappedTool{name: name, client: client}
}

func (t *wrappedTool) Name() string { return t.name }

func (t *wrappedTool) Execute(ctx context.Context, input json.RawMessage, execCtx *toolexec.ExecContext) (*toolexec.Result, error) {
	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("mcp: parse arguments for %s: %w", t.name, err)
		}
	}

	output, err := t.client.Call(ctx, t.name, args)
	if err != nil {
		return nil, err
	}
	return &toolexec.Result{Text: output}, nil
}

// RegisterTools wraps every tool Client currently exposes and registers it
// in registry, so a freshly connected set of MCP servers becomes callable
// in the standard agent loop without the caller hand-wrapping each one.
func RegisterTools(client *Client, registry *toolexec.Registry) {
	if client == nil || registry == nil {
		return
	}
	for _, t := range client.Tools() {
		registry.Register(NewTool(t.Name, client))
	}
}
