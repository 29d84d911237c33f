package toolexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/hook"
	"github.com/vibeworks/agentcore/internal/metrics"
	"github.com/vibeworks/agentcore/internal/permission"
	"github.com/vibeworks/agentcore/pkg/content"
)

// ErrShutdown is returned by Execute when a Shutdown message arrives on
// the agent's input queue while a tool call is waiting on a permission
// decision — the caller (the standard agent loop) must stop the agent
// entirely rather than treat this as an ordinary tool failure.
var ErrShutdown = errors.New("toolexec: shutdown requested during permission wait")

// RuleTiers bundles the three permission tiers evaluated in order:
// session, local, global.
type RuleTiers struct {
	Session *permission.RuleSet
	Local   *permission.RuleSet
	Global  *permission.RuleSet
}

// Executor runs the full pipeline for one ToolUse block: PreToolUse hook,
// permission resolution, dispatch, PostToolUse/PostToolUseFailure hooks,
// and ToolResult translation.
type Executor struct {
	tools     *Registry
	hooks     *hook.Registry
	evaluator *permission.Evaluator

	// Metrics records tool latency and permission-ask outcomes when set.
	// Left nil by NewExecutor; SetMetrics wires it in after construction so
	// every existing caller keeps working unchanged.
	Metrics *metrics.Metrics
}

// NewExecutor builds an Executor over a tool registry, hook registry, and
// shared permission evaluator.
func NewExecutor(tools *Registry, hooks *hook.Registry, evaluator *permission.Evaluator) *Executor {
	return &Executor{tools: tools, hooks: hooks, evaluator: evaluator}
}

// SetMetrics attaches a Metrics collector for subsequent Execute calls.
func (e *Executor) SetMetrics(m *metrics.Metrics) {
	e.Metrics = m
}

// Execute runs one tool-use block to completion, publishing the ToolStart/
// ToolEnd/PermissionRequest chunks and state transitions, and returns the
// ToolResult block to append to history. A non-nil
// error is only ever ErrShutdown or ctx.Err() — ordinary tool failures are
// represented as an is_error ToolResult, not a Go error, so the caller can
// keep processing the remaining tools in the turn.
func (e *Executor) Execute(ctx context.Context, handle *agentchan.Handle, rules RuleTiers, workDir string, use content.ToolUse) (content.ToolResult, error) {
	preResult, err := e.hooks.Run(ctx, hook.PreToolUse, use.Name, hook.Payload{ToolName: use.Name, Input: use.Input})
	if err != nil {
		return e.fail(handle, use.ID, err.Error()), nil
	}
	if preResult.Denied() {
		msg := preResult.Message
		if msg == "" {
			msg = "blocked by pre-tool-use hook"
		}
		return e.fail(handle, use.ID, msg), nil
	}

	t, ok := e.tools.Get(use.Name)
	if !ok {
		return e.fail(handle, use.ID, fmt.Sprintf("tool not found: %s", use.Name)), nil
	}

	// A PreToolUse hook verdict of Allow skips the permission evaluator
	// entirely and goes straight to dispatch; anything else (Ask or None)
	// falls through to the normal three-tier permission check.
	if preResult.Verdict != hook.Allow {
		decision := e.evaluator.Check(rules.Session, rules.Local, rules.Global, use.Name, use.Input)
		switch decision {
		case permission.Denied:
			return e.fail(handle, use.ID, "permission denied"), nil
		case permission.AskUser:
			outcome, err := e.awaitPermission(ctx, handle, rules.Session, use.Name, use.Input)
			if err != nil {
				return content.ToolResult{}, err
			}
			switch outcome {
			case waitRejected:
				return e.fail(handle, use.ID, "permission rejected by user"), nil
			case waitInterrupted:
				return InterruptedResult(use.ID), nil
			case waitShutdown:
				return content.ToolResult{}, ErrShutdown
			}
		}
	}

	handle.Broadcast().Publish(agentchan.ToolStart{ID: use.ID, Name: use.Name, Input: []byte(use.Input)})
	handle.StateCell().Set(agentchan.ExecutingTool{Name: use.Name, UseID: use.ID})

	execCtx := &ExecContext{SessionID: handle.SessionID, ToolUseID: use.ID, WorkDir: workDir}
	start := time.Now()
	result, execErr := t.Execute(ctx, use.Input, execCtx)
	if execErr != nil {
		e.Metrics.RecordToolExecution(use.Name, "error", time.Since(start))
		e.hooks.Run(ctx, hook.PostToolUseFailure, use.Name, hook.Payload{
			ToolName: use.Name, Input: use.Input, IsError: true, Message: execErr.Error(),
		})
		return e.fail(handle, use.ID, execErr.Error()), nil
	}
	e.Metrics.RecordToolExecution(use.Name, "success", time.Since(start))

	handle.Broadcast().Publish(agentchan.ToolEnd{ID: use.ID, Result: result.Text})
	e.hooks.Run(ctx, hook.PostToolUse, use.Name, hook.Payload{
		ToolName: use.Name, Input: use.Input, Output: result.Text,
	})

	return successResult(use.ID, result), nil
}

func (e *Executor) fail(handle *agentchan.Handle, useID, message string) content.ToolResult {
	handle.Broadcast().Publish(agentchan.ToolEnd{ID: useID, Result: message, IsError: true})
	return errorResult(useID, message)
}

type waitOutcome int

const (
	waitAllowed waitOutcome = iota
	waitRejected
	waitInterrupted
	waitShutdown
)

// awaitPermission emits PermissionRequest, sets state WaitingForPermission,
// then blocks on the agent's own input queue for a matching
// PermissionResponse while also honoring Interrupt and Shutdown. This
// reads handle.InputReceive() directly rather than going through
// Evaluator.Ask's pending-map flow, because the host's answer is routed
// through the same input queue the loop already owns exclusively (there
// is exactly one ask in flight per agent at a time, so no request-id
// correlation is needed here).
func (e *Executor) awaitPermission(ctx context.Context, handle *agentchan.Handle, sessionRules *permission.RuleSet, toolName string, input []byte) (waitOutcome, error) {
	handle.StateCell().Set(agentchan.WaitingForPermission{})
	handle.Broadcast().Publish(agentchan.PermissionRequest{
		RequestID: ulid.Make().String(),
		ToolName:  toolName,
		Input:     input,
	})

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case msg := <-handle.InputReceive():
			switch m := msg.(type) {
			case agentchan.PermissionResponseMsg:
				if m.ToolName != toolName {
					continue
				}
				if !m.Allowed {
					e.Metrics.RecordPermissionAsk(toolName, "deny")
					return waitRejected, nil
				}
				resolution := "allow"
				if m.Remember {
					permission.Remember(sessionRules, toolName, input)
					resolution = "allow_remember"
				}
				e.Metrics.RecordPermissionAsk(toolName, resolution)
				return waitAllowed, nil
			case agentchan.InterruptMsg:
				return waitInterrupted, nil
			case agentchan.ShutdownMsg:
				return waitShutdown, nil
			default:
				continue
			}
		}
	}
}

func errorResult(useID, message string) content.ToolResult {
	return content.ToolResult{
		ToolUseID: useID,
		Content:   []content.Block{content.Text{Text: message}},
		IsError:   true,
	}
}

// InterruptedResult builds the synthetic error ToolResult assigned to a
// tool that never started because the turn was interrupted before its
// dispatch.
func InterruptedResult(useID string) content.ToolResult {
	return errorResult(useID, "Interrupted")
}

func successResult(useID string, r *Result) content.ToolResult {
	var blocks []content.Block
	switch {
	case r.Image != nil:
		blocks = []content.Block{content.Text{Text: r.Text}, *r.Image}
	case r.Document != nil:
		blocks = []content.Block{content.Text{Text: r.Text}, *r.Document}
	default:
		blocks = []content.Block{content.Text{Text: r.Text}}
	}
	return content.ToolResult{ToolUseID: useID, Content: blocks, IsError: false}
}
