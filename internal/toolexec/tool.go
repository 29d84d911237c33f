// Package toolexec implements the tool-execution pipeline: hook
// interception, permission resolution, dispatch, and translation of a
// tool's return value into the wire-level ToolResult content blocks the
// session history and the LLM provider expect.
package toolexec

import (
	"context"
	"encoding/json"

	"github.com/vibeworks/agentcore/pkg/content"
)

// Tool is one callable tool the LLM can invoke by name.
type Tool interface {
	Name() string
	Execute(ctx context.Context, input json.RawMessage, execCtx *ExecContext) (*Result, error)
}

// ExecContext carries the per-call environment a Tool's Execute needs —
// generalized from go-opencode's tool.Context to this module's session
// and working-directory model.
type ExecContext struct {
	SessionID string
	ToolUseID string
	WorkDir   string
	Extra     map[string]any
}

// Result is a tool's successful return value, translated by the executor
// into the ToolResult wire shape: a plain Text block for an ordinary
// result, or Text(description) followed by Image/Document for
// a tool that returns binary content (e.g. a screenshot or a rendered PDF
// page).
type Result struct {
	Text     string
	Image    *content.Image
	Document *content.Document
}
