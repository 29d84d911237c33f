package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

// AskPublisher notifies subscribers that a permission decision is pending —
// the event-broadcast side of an ask. The evaluator itself only owns the
// wait/respond bookkeeping; broadcasting the request onto a session's
// output channel is the caller's concern (internal/agentchan), which keeps
// this package free of a dependency on the channel/handle layer.
type AskPublisher func(Request)

// Evaluator runs the three-tier Check and the interactive ask/remember flow.
// The rule sets for the three tiers are owned by
// their respective layers (the per-agent handle for session rules, the
// spawn call for local rules, the runtime registry for global rules) and
// passed into Check by reference — the evaluator itself is stateless with
// respect to rules, holding only in-flight ask bookkeeping.
type Evaluator struct {
	interactive bool
	publish     AskPublisher

	mu      sync.Mutex
	pending map[string]chan Response
}

// NewEvaluator creates an Evaluator. When interactive is false, an
// unmatched call resolves straight to Denied instead of AskUser.
func NewEvaluator(interactive bool, publish AskPublisher) *Evaluator {
	return &Evaluator{
		interactive: interactive,
		publish:     publish,
		pending:     make(map[string]chan Response),
	}
}

// Check evaluates the three tiers in order — session, then local, then
// global — returning on the first tier whose rule set matches.
func (e *Evaluator) Check(session, local, global *RuleSet, toolName string, input json.RawMessage) Decision {
	for _, rs := range []*RuleSet{session, local, global} {
		if rs != nil && rs.Matches(toolName, input) {
			return Allowed
		}
	}
	if e.interactive {
		return AskUser
	}
	return Denied
}

// Ask publishes an interactive permission request and blocks until the
// host responds or ctx is cancelled. On an "always" response it remembers
// an equivalent rule into sessionRules: AllowTool for ordinary tools, or
// AllowPrefix keyed on the derived command prefix when toolName is the
// shell tool.
func (e *Evaluator) Ask(ctx context.Context, sessionRules *RuleSet, toolName string, input json.RawMessage, title string) error {
	req := Request{
		ID:       ulid.Make().String(),
		ToolName: toolName,
		Input:    input,
		Title:    title,
	}

	respCh := make(chan Response, 1)
	e.mu.Lock()
	e.pending[req.ID] = respCh
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, req.ID)
		e.mu.Unlock()
	}()

	if e.publish != nil {
		e.publish(req)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respCh:
		switch resp.Action {
		case ActionOnce:
			return nil
		case ActionAlways:
			e.remember(sessionRules, toolName, input)
			return nil
		case ActionReject:
			return &RejectedError{ToolName: toolName, Message: "permission rejected by user"}
		default:
			return fmt.Errorf("permission: unknown action %q", resp.Action)
		}
	}
}

// Respond delivers a host decision to the goroutine blocked in Ask for the
// matching request id. A response with no matching pending request is
// dropped — the ask may already have been cancelled.
func (e *Evaluator) Respond(requestID string, action Action) {
	e.mu.Lock()
	ch, ok := e.pending[requestID]
	e.mu.Unlock()
	if !ok {
		return
	}
	ch <- Response{RequestID: requestID, Action: action}
}

func (e *Evaluator) remember(sessionRules *RuleSet, toolName string, input json.RawMessage) {
	Remember(sessionRules, toolName, input)
}

// Remember appends an equivalent rule for a one-off "always allow" decision:
// AllowTool for ordinary tools, or AllowPrefix keyed on the derived command
// prefix when toolName is the shell tool. Exported so callers that receive
// a PermissionResponse directly off an agent's own input queue (rather than
// through Evaluator.Ask's pending-map flow) can apply the same remember
// semantics — the tool executor's wait-for-permission loop is one such
// caller — it routes the response through the input queue rather than
// back through the evaluator.
func Remember(sessionRules *RuleSet, toolName string, input json.RawMessage) {
	if sessionRules == nil {
		return
	}
	if toolName != ShellToolName {
		sessionRules.Append(Rule{Type: AllowTool, ToolName: toolName})
		return
	}
	cmd, ok := commandField(input)
	if !ok {
		sessionRules.Append(Rule{Type: AllowTool, ToolName: toolName})
		return
	}
	sessionRules.Append(Rule{Type: AllowPrefix, ToolName: toolName, Prefix: DerivePrefix(cmd)})
}
