// Package llm implements the swappable LLM provider capability set: a
// blocking Send and a streaming Stream, both built over the cloudwego/eino
// chat-model abstraction so any eino-backed model (Anthropic Claude,
// OpenAI, Volcengine ARK) can be plugged in without the standard agent
// loop knowing which one it's talking to.
package llm

import (
	"context"
	"encoding/json"

	"github.com/vibeworks/agentcore/pkg/content"
)

// ToolDefinition is one tool the LLM may call, translated to the
// provider's native tool-schema format by each adapter.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema
}

// Request is a provider-agnostic turn request.
type Request struct {
	Model       string
	System      string
	Messages    []content.Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
	// ThinkingBudget, when > 0, requests extended thinking; callers must
	// also set Temperature to 1 and MaxTokens > ThinkingBudget for most
	// providers to accept the request.
	ThinkingBudget int

	// CacheSystem and CacheTools request a cache breakpoint on the system
	// prompt and the last tool definition respectively (the agent loop
	// handles the third breakpoint, on the last history content block,
	// directly on the Messages it builds via content.CacheControl).
	// Neither flag is currently threaded through to the eino adapters: no
	// chunk or config field read anywhere in the reference stack exposes
	// how eino's claude component surfaces cache_control, so wiring it
	// would mean inventing unobserved API surface. The flags are kept on
	// Request so callers can express the intent and adapters can pick it
	// up once that surface is confirmed.
	CacheSystem bool
	CacheTools  bool
}

// Usage reports token consumption for a completed turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is a provider-agnostic completed (non-streamed) turn result.
type Response struct {
	Message    content.Message
	StopReason string
	Usage      Usage
}

// Provider is the trait every model backend implements.
type Provider interface {
	ID() string
	Name() string
	Send(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (*StreamReader, error)
}
