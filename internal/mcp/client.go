package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vibeworks/agentcore/internal/llm"
)

// toolNameSeparator joins a server id to a tool's own name, the way
// go-opencode's Client.Tools prefixes every tool it exposes.
const toolNameSeparator = "__"

// pingTimeout bounds the liveness check Client.Call runs before every tool
// invocation.
const pingTimeout = 2 * time.Second

// maxCallAttempts is how many times Call retries a tool invocation (after a
// failed ping or a failed call) before giving up.
const maxCallAttempts = 3

const defaultConnectTimeout = 5 * time.Second

// Client manages a set of MCP server connections and the tools they expose,
// built directly over the official SDK client the way go-opencode's
// Client does (sdkClient.Connect / session.ListTools / session.CallTool).
type Client struct {
	mu        sync.RWMutex
	servers   map[string]*mcpServer
	sdkClient *sdkmcp.Client
}

// mcpServer is one connected (or failed, or disabled) server.
type mcpServer struct {
	name       string
	config     *Config
	session    *sdkmcp.ClientSession
	tools      []Tool
	status     Status
	lastErr    string
	serverInfo *ServerInfo
}

// NewClient builds a Client with no servers attached.
func NewClient() *Client {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "agentcore",
		Version: "1.0.0",
	}, nil)

	return &Client{
		servers:   make(map[string]*mcpServer),
		sdkClient: sdkClient,
	}
}

// AddServer connects to a server and registers its tools. A disabled config
// is recorded without attempting a connection.
func (c *Client) AddServer(ctx context.Context, name string, config *Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.servers[name]; exists {
		return fmt.Errorf("mcp: server already exists: %s", name)
	}

	if !config.Enabled {
		c.servers[name] = &mcpServer{name: name, config: config, status: StatusDisabled}
		return nil
	}

	server, err := c.connectServer(ctx, name, config)
	if err != nil {
		c.servers[name] = &mcpServer{name: name, config: config, status: StatusFailed, lastErr: err.Error()}
		return err
	}
	c.servers[name] = server
	return nil
}

// connectServer dials one server over the transport its config selects.
func (c *Client) connectServer(ctx context.Context, name string, config *Config) (*mcpServer, error) {
	timeout := time.Duration(config.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var transport sdkmcp.Transport
	switch config.Type {
	case TransportTypeRemote:
		transport = &sdkmcp.SSEClientTransport{
			Endpoint:   config.URL,
			HTTPClient: &http.Client{Timeout: timeout},
		}

	case TransportTypeLocal, TransportTypeStdio:
		if len(config.Command) == 0 {
			return nil, fmt.Errorf("mcp: empty command for server %s", name)
		}
		cmd := exec.Command(config.Command[0], config.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range config.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		transport = &sdkmcp.CommandTransport{Command: cmd}

	default:
		return nil, fmt.Errorf("mcp: unknown transport type: %s", config.Type)
	}

	server := &mcpServer{name: name, config: config, status: StatusConnecting}

	session, err := c.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect %s: %w", name, err)
	}
	server.session = session

	if initResult := session.InitializeResult(); initResult != nil {
		server.serverInfo = &ServerInfo{
			Name:    initResult.ServerInfo.Name,
			Version: initResult.ServerInfo.Version,
		}
	}

	if err := server.listTools(ctx); err != nil {
		// Non-fatal: a server that doesn't expose tools still connects.
		server.tools = nil
	}

	server.status = StatusConnected
	return server, nil
}

func (s *mcpServer) listTools(ctx context.Context) error {
	if s.session == nil {
		return fmt.Errorf("mcp: %s not connected", s.name)
	}
	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}
	tools := make([]Tool, len(result.Tools))
	for i, t := range result.Tools {
		tools[i] = fromSDKTool(t)
	}
	s.tools = tools
	return nil
}

// reconnect is the refresher callback Call invokes when a ping or a tool
// call fails: it re-dials the server from scratch right away, with no
// backoff, and swaps the live session in place rather than tearing down
// the whole client.
func (c *Client) reconnect(ctx context.Context, name string) error {
	c.mu.Lock()
	existing, ok := c.servers[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("mcp: server not found: %s", name)
	}
	if existing.session != nil {
		existing.session.Close()
	}

	fresh, err := c.connectServer(ctx, name, existing.config)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.servers[name] = &mcpServer{name: name, config: existing.config, status: StatusFailed, lastErr: err.Error()}
		return err
	}
	c.servers[name] = fresh
	return nil
}

// Tools returns every tool exposed by every connected server, each name
// prefixed "<server>__<tool>" so a multi-server set never collides.
func (c *Client) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []Tool
	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}
		for _, t := range server.tools {
			all = append(all, Tool{
				Name:        sanitizeToolName(name) + toolNameSeparator + sanitizeToolName(t.Name),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return all
}

// ToolDefinitions converts Tools into the llm.ToolDefinition shape the
// standard agent loop sends to a provider.
func (c *Client) ToolDefinitions() []llm.ToolDefinition {
	tools := c.Tools()
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = llm.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}
	}
	return defs
}

// resolve finds the connected server and the original (unprefixed) tool
// name behind a prefixed tool name.
func (c *Client) resolve(toolName string) (serverName, original string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, server := range c.servers {
		if server.status != StatusConnected {
			continue
		}
		prefix := sanitizeToolName(name) + toolNameSeparator
		if !strings.HasPrefix(toolName, prefix) {
			continue
		}
		want := strings.TrimPrefix(toolName, prefix)
		for _, t := range server.tools {
			if sanitizeToolName(t.Name) == want {
				return name, t.Name, true
			}
		}
	}
	return "", "", false
}

// Call executes a tool: a liveness ping against the owning server before
// the call, a reconnect attempt through the refresher callback whenever
// the ping or the call itself fails, and up to maxCallAttempts retries
// after the first try before giving up.
func (c *Client) Call(ctx context.Context, toolName string, args map[string]any) (string, error) {
	serverName, original, ok := c.resolve(toolName)
	if !ok {
		return "", fmt.Errorf("mcp: no server found for tool: %s", toolName)
	}

	var lastErr error
	for attempt := 0; attempt <= maxCallAttempts; attempt++ {
		c.mu.RLock()
		server := c.servers[serverName]
		c.mu.RUnlock()

		if server == nil || server.session == nil {
			lastErr = fmt.Errorf("mcp: server not connected: %s", serverName)
		} else if pingErr := c.ping(ctx, server); pingErr != nil {
			lastErr = fmt.Errorf("mcp: liveness check failed for %s: %w", serverName, pingErr)
		} else if out, callErr := c.callOnce(ctx, server, original, args); callErr != nil {
			lastErr = callErr
		} else {
			return out, nil
		}

		if attempt == maxCallAttempts {
			break
		}
		if err := c.reconnect(ctx, serverName); err != nil {
			lastErr = err
		}
	}
	return "", lastErr
}

func (c *Client) ping(ctx context.Context, server *mcpServer) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return server.session.Ping(pingCtx, nil)
}

func (c *Client) callOnce(ctx context.Context, server *mcpServer, toolName string, args map[string]any) (string, error) {
	params := &sdkmcp.CallToolParams{Name: toolName, Arguments: args}
	result, err := server.session.CallTool(ctx, params)
	if err != nil {
		return "", err
	}

	if result.IsError {
		for _, block := range result.Content {
			if text, ok := block.(*sdkmcp.TextContent); ok {
				return "", fmt.Errorf("mcp: tool error: %s", text.Text)
			}
		}
		return "", fmt.Errorf("mcp: tool execution failed: %s", toolName)
	}

	var out strings.Builder
	for _, block := range result.Content {
		if text, ok := block.(*sdkmcp.TextContent); ok {
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}

// Status returns the current state of every configured server.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(c.servers))
	for name, server := range c.servers {
		s := ServerStatus{Name: name, Status: server.status, ToolCount: len(server.tools)}
		if server.lastErr != "" {
			s.Error = &server.lastErr
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// RemoveServer disconnects and forgets a server.
func (c *Client) RemoveServer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	server, ok := c.servers[name]
	if !ok {
		return fmt.Errorf("mcp: server not found: %s", name)
	}
	if server.session != nil {
		server.session.Close()
	}
	delete(c.servers, name)
	return nil
}

// Close disconnects every server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, server := range c.servers {
		if server.session != nil {
			server.session.Close()
		}
	}
	c.servers = make(map[string]*mcpServer)
	return nil
}

// sanitizeToolName replaces any character outside [A-Za-z0-9] with an
// underscore, so server and tool names combine into one safe identifier.
func sanitizeToolName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
