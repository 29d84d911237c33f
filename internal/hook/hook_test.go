package hook

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRunsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register(Hook{Event: PreToolUse, Name: "first", Callback: func(ctx context.Context, p Payload) (Result, error) {
		order = append(order, "first")
		return Result{}, nil
	}})
	r.Register(Hook{Event: PreToolUse, Name: "second", Callback: func(ctx context.Context, p Payload) (Result, error) {
		order = append(order, "second")
		return Result{}, nil
	}})

	_, err := r.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRegistryNameMatcherFiltersByName(t *testing.T) {
	r := NewRegistry()
	var ran bool
	r.Register(Hook{
		Event:       PreToolUse,
		NameMatcher: regexp.MustCompile("^Bash$"),
		Callback: func(ctx context.Context, p Payload) (Result, error) {
			ran = true
			return Result{}, nil
		},
	})

	_, err := r.Run(context.Background(), PreToolUse, "Write", Payload{ToolName: "Write"})
	require.NoError(t, err)
	assert.False(t, ran)

	_, err = r.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRegistryBlockShortCircuits(t *testing.T) {
	r := NewRegistry()
	var secondRan bool
	r.Register(Hook{Event: PreToolUse, Name: "blocker", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Deny, Message: "blocked by policy"}, nil
	}})
	r.Register(Hook{Event: PreToolUse, Name: "second", Callback: func(ctx context.Context, p Payload) (Result, error) {
		secondRan = true
		return Result{}, nil
	}})

	res, err := r.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.True(t, res.Denied())
	assert.Equal(t, "blocked by policy", res.Message)
	assert.False(t, secondRan)
}

func TestRegistryDenyOutranksAllowRegardlessOfOrder(t *testing.T) {
	allowThenDeny := NewRegistry()
	allowThenDeny.Register(Hook{Event: PreToolUse, Name: "allower", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Allow}, nil
	}})
	allowThenDeny.Register(Hook{Event: PreToolUse, Name: "denier", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Deny, Message: "no"}, nil
	}})

	res, err := allowThenDeny.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.Equal(t, Deny, res.Verdict)
	assert.True(t, res.Denied())

	denyThenAllow := NewRegistry()
	denyThenAllow.Register(Hook{Event: PreToolUse, Name: "denier", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Deny, Message: "no"}, nil
	}})
	var allowerRan bool
	denyThenAllow.Register(Hook{Event: PreToolUse, Name: "allower", Callback: func(ctx context.Context, p Payload) (Result, error) {
		allowerRan = true
		return Result{Verdict: Allow}, nil
	}})

	res, err = denyThenAllow.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.Equal(t, Deny, res.Verdict)
	assert.False(t, allowerRan)
}

func TestRegistryAllowOutranksAsk(t *testing.T) {
	r := NewRegistry()
	r.Register(Hook{Event: PreToolUse, Name: "asker", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Ask}, nil
	}})
	r.Register(Hook{Event: PreToolUse, Name: "allower", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Verdict: Allow}, nil
	}})

	res, err := r.Run(context.Background(), PreToolUse, "Bash", Payload{ToolName: "Bash"})
	require.NoError(t, err)
	assert.Equal(t, Allow, res.Verdict)
}

func TestRegistryErrorPropagates(t *testing.T) {
	r := NewRegistry()
	r.Register(Hook{Event: PostToolUse, Name: "failing", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{}, errors.New("boom")
	}})

	_, err := r.Run(context.Background(), PostToolUse, "Bash", Payload{ToolName: "Bash"})
	require.Error(t, err)
}

func TestRegistryRewritesMessage(t *testing.T) {
	r := NewRegistry()
	r.Register(Hook{Event: UserPromptSubmit, Name: "rewrite", Callback: func(ctx context.Context, p Payload) (Result, error) {
		return Result{Message: p.Message + " [annotated]"}, nil
	}})

	res, err := r.Run(context.Background(), UserPromptSubmit, "", Payload{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello [annotated]", res.Message)
}
