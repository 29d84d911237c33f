package calculator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculatorServer_MCPClient drives the server through the same
// modelcontextprotocol/go-sdk client internal/mcp.Client uses, over an
// in-process pipe transport instead of stdio.
func TestCalculatorServer_MCPClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mcpServer := NewServer()
	stdioServer := server.NewStdioServer(mcpServer)

	serverReader, clientWriter := io.Pipe()
	clientReader, serverWriter := io.Pipe()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- stdioServer.Listen(ctx, serverReader, serverWriter)
	}()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	transport := &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}

	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err, "failed to connect client to server")
	defer session.Close()

	listResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listResult.Tools, 3)

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "sum",
		Arguments: map[string]any{"numbers": []float64{1, 2, 3}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	textContent, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "6", textContent.Text)

	result, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "divide",
		Arguments: map[string]any{"dividend": 9.0, "divisor": 0.0},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	cancel()
	clientWriter.Close()
	serverWriter.Close()
}
