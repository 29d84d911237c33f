// Command calculator-mcp runs the calculator demo tool server over stdio,
// used by cmd/agentcored and cmd/agentcorectl's --calculator flag to give
// the runtime a real MCP server to exercise end to end.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/vibeworks/agentcore/pkg/mcpserver/calculator"
)

func main() {
	s := calculator.NewServer()
	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}
