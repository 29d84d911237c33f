package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/permission"
)

func echoAgent(ctx context.Context, in *Internals) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in.Handle.InputReceive():
			switch m := msg.(type) {
			case agentchan.UserInput:
				in.Handle.Broadcast().Publish(agentchan.TextDelta{Text: "Echo: " + m.Text})
				in.Handle.Broadcast().Publish(agentchan.DoneChunk{})
			case agentchan.ShutdownMsg:
				return
			}
		}
	}
}

func TestSpawnAndEcho(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	handle := reg.Spawn("s1", echoAgent)
	require.True(t, reg.IsRunning("s1"))

	r := handle.Subscribe()
	defer r.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, handle.SendInput(ctx, "hi"))

	first := <-r.Chan()
	assert.Equal(t, agentchan.TextDelta{Text: "Echo: hi"}, first)
	second := <-r.Chan()
	assert.Equal(t, agentchan.DoneChunk{}, second)
}

func TestShutdownRemovesFromRegistry(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	reg.Spawn("s1", echoAgent)
	require.True(t, reg.IsRunning("s1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx, "s1"))
	assert.False(t, reg.IsRunning("s1"))
}

func TestSpawnSubagentNotifiesParent(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	parent := reg.Spawn("parent", echoAgent)
	parentRecv := parent.Subscribe()
	defer parentRecv.Unsubscribe()

	child := reg.SpawnSubagent(parent, "parent", "child", "worker", echoAgent)
	require.NotNil(t, child)

	chunk := <-parentRecv.Chan()
	spawned, ok := chunk.(agentchan.SubAgentSpawned)
	require.True(t, ok)
	assert.Equal(t, "child", spawned.SessionID)
	assert.Equal(t, "worker", spawned.AgentType)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx, "child"))
	require.NoError(t, reg.Shutdown(ctx, "parent"))
}

func TestInterruptAndWaitFor(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	reg.Spawn("s1", echoAgent)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Interrupt(ctx, "s1"))

	// echoAgent ignores Interrupt; shut it down explicitly then confirm
	// WaitFor returns once it has actually exited.
	require.NoError(t, reg.Shutdown(ctx, "s1"))
	require.NoError(t, reg.WaitFor(ctx, "s1"))
}

func TestWaitAll(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	reg.Spawn("s1", echoAgent)
	reg.Spawn("s2", echoAgent)
	reg.Spawn("s3", echoAgent)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, reg.Shutdown(ctx, "s1"))
	require.NoError(t, reg.Shutdown(ctx, "s2"))
	require.NoError(t, reg.Shutdown(ctx, "s3"))

	require.NoError(t, reg.WaitAll(ctx))
	assert.Empty(t, reg.ListRunning())
}

func TestOperationsOnUnknownSessionError(t *testing.T) {
	reg := NewRegistry(permission.NewEvaluator(true, nil))
	ctx := context.Background()

	err := reg.Shutdown(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotRunning)

	err = reg.Interrupt(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotRunning)

	// WaitFor on an unknown (never-ran) session is a no-op, not an error.
	assert.NoError(t, reg.WaitFor(ctx, "nope"))
}
