package agentchan

import (
	"context"
	"sync"
)

// Handle is the external control surface for one running agent: the input
// queue, the output broadcast, and the shared state cell, plus the small
// pieces of mutable per-agent metadata a host needs without going through
// the loop (custom metadata map, conversation name).
type Handle struct {
	SessionID string

	input     *InputQueue
	broadcast *Broadcast
	state     *StateCell

	metaMu   sync.RWMutex
	metadata map[string]any
	name     string
}

// NewHandle creates a Handle with default queue/broadcast capacities.
func NewHandle(sessionID string) *Handle {
	return &Handle{
		SessionID: sessionID,
		input:     NewInputQueue(DefaultInputQueueCapacity),
		broadcast: NewBroadcast(DefaultSubscriberBufferSize),
		state:     NewStateCell(),
		metadata:  make(map[string]any),
	}
}

// SendInput enqueues a user message.
func (h *Handle) SendInput(ctx context.Context, text string) error {
	return h.input.Send(ctx, UserInput{Text: text})
}

// SendPermissionResponse enqueues the host's answer to a pending
// PermissionRequest.
func (h *Handle) SendPermissionResponse(ctx context.Context, toolName string, allowed, remember bool) error {
	return h.input.Send(ctx, PermissionResponseMsg{ToolName: toolName, Allowed: allowed, Remember: remember})
}

// SendToolResult enqueues an asynchronous tool's completed result.
func (h *Handle) SendToolResult(ctx context.Context, useID, result string) error {
	return h.input.Send(ctx, ToolResultMsg{UseID: useID, Result: result})
}

// SendUserQuestionResponse enqueues the host's answer to a pending user
// question.
func (h *Handle) SendUserQuestionResponse(ctx context.Context, requestID string, answers []string) error {
	return h.input.Send(ctx, UserQuestionResponseMsg{RequestID: requestID, Answers: answers})
}

// Interrupt requests that the current turn stop as soon as it reaches a
// safe point. Best-effort: the loop observes this between steps, not
// mid-syscall.
func (h *Handle) Interrupt(ctx context.Context) error {
	return h.input.Send(ctx, InterruptMsg{})
}

// Shutdown requests the agent terminate after finishing or abandoning its
// current turn.
func (h *Handle) Shutdown(ctx context.Context) error {
	return h.input.Send(ctx, ShutdownMsg{})
}

// Subscribe registers a new output subscriber. Chunks published before
// this call are never delivered to it.
func (h *Handle) Subscribe() *Receiver {
	return h.broadcast.Subscribe()
}

// State returns the agent's current state.
func (h *Handle) State() AgentState {
	return h.state.Get()
}

// StateCell exposes the underlying cell for the loop goroutine, which is
// the only writer.
func (h *Handle) StateCell() *StateCell {
	return h.state
}

// Broadcast exposes the underlying broadcaster for the loop goroutine to
// publish into.
func (h *Handle) Broadcast() *Broadcast {
	return h.broadcast
}

// InputReceive exposes the consumer side of the input queue for the loop
// goroutine.
func (h *Handle) InputReceive() <-chan InputMessage {
	return h.input.Receive()
}

// SetCustomMetadata stores an arbitrary key/value pair visible to tools
// and the host, separate from AgentContext's per-call metadata.
func (h *Handle) SetCustomMetadata(key string, value any) {
	h.metaMu.Lock()
	h.metadata[key] = value
	h.metaMu.Unlock()
}

// GetCustomMetadata retrieves a previously set value.
func (h *Handle) GetCustomMetadata(key string) (any, bool) {
	h.metaMu.RLock()
	defer h.metaMu.RUnlock()
	v, ok := h.metadata[key]
	return v, ok
}

// SetConversationName records the generated title for this session.
func (h *Handle) SetConversationName(name string) {
	h.metaMu.Lock()
	h.name = name
	h.metaMu.Unlock()
}

// GetConversationName returns the current title, or "" if none has been
// generated yet.
func (h *Handle) GetConversationName() string {
	h.metaMu.RLock()
	defer h.metaMu.RUnlock()
	return h.name
}
