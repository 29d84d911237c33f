package agentchan

import "sync"

// AgentState is the tagged union of states a running agent can be in.
// Exactly one concrete type is active at a time; unexported stateTag keeps
// the set closed the same way content.Block does for message content.
type AgentState interface {
	stateTag()
}

type Idle struct{}

func (Idle) stateTag() {}

type Processing struct{}

func (Processing) stateTag() {}

type WaitingForPermission struct{}

func (WaitingForPermission) stateTag() {}

type ExecutingTool struct {
	Name  string
	UseID string
}

func (ExecutingTool) stateTag() {}

type WaitingForSubAgent struct {
	SessionID string
}

func (WaitingForSubAgent) stateTag() {}

type WaitingForUserInput struct {
	RequestID string
}

func (WaitingForUserInput) stateTag() {}

type Done struct{}

func (Done) stateTag() {}

type ErrorState struct {
	Message string
}

func (ErrorState) stateTag() {}

// StateCell is the shared, lock-guarded AgentState: one writer (the loop
// goroutine), many readers (anyone holding the Handle).
type StateCell struct {
	mu    sync.RWMutex
	state AgentState
}

// NewStateCell creates a cell initialized to Idle.
func NewStateCell() *StateCell {
	return &StateCell{state: Idle{}}
}

// Get returns the current state.
func (c *StateCell) Get() AgentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set replaces the current state. Only the loop goroutine should call this.
func (c *StateCell) Set(s AgentState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
