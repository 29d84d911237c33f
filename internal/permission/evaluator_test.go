package permission

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFallsThroughTiers(t *testing.T) {
	eval := NewEvaluator(true, nil)
	session := NewRuleSet()
	local := NewRuleSet()
	global := NewRuleSet()
	global.Append(Rule{Type: AllowTool, ToolName: "Read"})

	assert.Equal(t, Allowed, eval.Check(session, local, global, "Read", nil))
	assert.Equal(t, AskUser, eval.Check(session, local, global, "Write", nil))
}

func TestCheckNonInteractiveDefaultsToDenied(t *testing.T) {
	eval := NewEvaluator(false, nil)
	session, local, global := NewRuleSet(), NewRuleSet(), NewRuleSet()
	assert.Equal(t, Denied, eval.Check(session, local, global, "Write", nil))
}

func TestAskOnceDoesNotRemember(t *testing.T) {
	var published []Request
	eval := NewEvaluator(true, func(r Request) { published = append(published, r) })
	session := NewRuleSet()

	go func() {
		for len(published) == 0 {
			time.Sleep(time.Millisecond)
		}
		eval.Respond(published[0].ID, ActionOnce)
	}()

	err := eval.Ask(context.Background(), session, "Read", nil, "read a file")
	require.NoError(t, err)
	assert.Empty(t, session.Rules())
}

func TestAskAlwaysRemembersAllowTool(t *testing.T) {
	var reqID string
	eval := NewEvaluator(true, func(r Request) { reqID = r.ID })
	session := NewRuleSet()

	go func() {
		for reqID == "" {
			time.Sleep(time.Millisecond)
		}
		eval.Respond(reqID, ActionAlways)
	}()

	err := eval.Ask(context.Background(), session, "Write", nil, "write a file")
	require.NoError(t, err)
	rules := session.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, AllowTool, rules[0].Type)
	assert.Equal(t, "Write", rules[0].ToolName)
}

func TestAskAlwaysRemembersAllowPrefixForShell(t *testing.T) {
	var reqID string
	eval := NewEvaluator(true, func(r Request) { reqID = r.ID })
	session := NewRuleSet()

	go func() {
		for reqID == "" {
			time.Sleep(time.Millisecond)
		}
		eval.Respond(reqID, ActionAlways)
	}()

	input := json.RawMessage(`{"command":"git commit -m x"}`)
	err := eval.Ask(context.Background(), session, ShellToolName, input, "run git commit")
	require.NoError(t, err)

	rules := session.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, AllowPrefix, rules[0].Type)
	assert.Equal(t, "git commit", rules[0].Prefix)
}

func TestAskRejectReturnsRejectedError(t *testing.T) {
	var reqID string
	eval := NewEvaluator(true, func(r Request) { reqID = r.ID })
	session := NewRuleSet()

	go func() {
		for reqID == "" {
			time.Sleep(time.Millisecond)
		}
		eval.Respond(reqID, ActionReject)
	}()

	err := eval.Ask(context.Background(), session, "Write", nil, "write a file")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
}

func TestAskCancelledContext(t *testing.T) {
	eval := NewEvaluator(true, func(Request) {})
	session := NewRuleSet()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eval.Ask(ctx, session, "Write", nil, "write a file")
	require.Error(t, err)
}
