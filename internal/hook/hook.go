// Package hook implements the ordered, pattern-matched lifecycle
// interception points the tool executor and agent loop fire into:
// PreToolUse, PostToolUse, PostToolUseFailure, and UserPromptSubmit.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

// Event identifies one of the four lifecycle points a hook can attach to.
type Event string

const (
	PreToolUse        Event = "pre_tool_use"
	PostToolUse       Event = "post_tool_use"
	PostToolUseFailure Event = "post_tool_use_failure"
	UserPromptSubmit  Event = "user_prompt_submit"
)

// Payload carries the fields relevant to whichever Event fired; callbacks
// read only the fields that apply to the event they registered for.
type Payload struct {
	ToolName string
	Input    json.RawMessage
	Output   string
	IsError  bool
	Message  string // the user's submitted text, for UserPromptSubmit
}

// Verdict is a hook callback's decision, ranked Deny > Allow > Ask > None.
// Deny stops the lifecycle action that triggered the hook outright. Allow
// and Ask only have meaning for PreToolUse: Allow tells the executor to
// skip the permission evaluator and dispatch the tool directly, Ask defers
// to the permission evaluator as normal. None (the zero value) expresses
// no opinion and defers to whatever runs next.
type Verdict string

const (
	None  Verdict = ""
	Allow Verdict = "allow"
	Ask   Verdict = "ask"
	Deny  Verdict = "deny"
)

func verdictRank(v Verdict) int {
	switch v {
	case Deny:
		return 3
	case Allow:
		return 2
	case Ask:
		return 1
	default:
		return 0
	}
}

// Result is a hook callback's verdict. Message optionally replaces the text
// going forward (e.g. a rewritten user prompt, or a rejection reason
// surfaced to the caller).
type Result struct {
	Verdict Verdict
	Message string
}

// Denied reports whether this result's verdict is Deny — the only verdict
// that stops the lifecycle action that triggered the hook.
func (r Result) Denied() bool {
	return r.Verdict == Deny
}

// Callback is the function a hook registration runs.
type Callback func(ctx context.Context, p Payload) (Result, error)

// Hook is one registration: it fires on Event, and only for tool/prompt
// names matching NameMatcher (nil matches everything).
type Hook struct {
	Event       Event
	NameMatcher *regexp.Regexp
	Name        string // identifies this hook in error messages
	Callback    Callback
}

func (h Hook) matches(name string) bool {
	if h.NameMatcher == nil {
		return true
	}
	return h.NameMatcher.MatchString(name)
}

// Registry holds hooks grouped by event, evaluated in registration order
// within each group — mirroring the ordered pre/post tool-use interception
// an agentic conversation loop runs around each tool call.
type Registry struct {
	mu    sync.RWMutex
	hooks map[Event][]Hook
}

// NewRegistry returns an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Event][]Hook)}
}

// Register adds a hook. Hooks for the same event run in the order they
// were registered.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[h.Event] = append(r.hooks[h.Event], h)
}

// Run executes every hook registered for event whose name matcher accepts
// name, in order, aggregating their verdicts by precedence (Deny > Allow >
// Ask > None) rather than stopping at the first non-default one — two
// PreToolUse hooks returning Allow and Deny must resolve to Deny regardless
// of registration order. Deny itself still short-circuits the remaining
// hooks, since nothing outranks it.
func (r *Registry) Run(ctx context.Context, event Event, name string, p Payload) (Result, error) {
	r.mu.RLock()
	hooks := make([]Hook, len(r.hooks[event]))
	copy(hooks, r.hooks[event])
	r.mu.RUnlock()

	agg := Result{Message: p.Message}
	for _, h := range hooks {
		if !h.matches(name) {
			continue
		}
		res, err := h.Callback(ctx, p)
		if err != nil {
			return Result{}, fmt.Errorf("hook %q: %w", h.Name, err)
		}
		if verdictRank(res.Verdict) > verdictRank(agg.Verdict) {
			agg.Verdict = res.Verdict
		}
		if res.Message != "" {
			p.Message = res.Message
			agg.Message = res.Message
		}
		if agg.Verdict == Deny {
			return agg, nil
		}
	}
	return agg, nil
}
