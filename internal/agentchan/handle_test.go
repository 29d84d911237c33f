package agentchan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSendInputOrderingRule(t *testing.T) {
	h := NewHandle("s1")
	r := h.Subscribe()
	defer r.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.SendInput(ctx, "hi"))

	msg := <-h.InputReceive()
	ui, ok := msg.(UserInput)
	require.True(t, ok)
	assert.Equal(t, "hi", ui.Text)

	// Simulate the loop publishing in response.
	h.Broadcast().Publish(TextDelta{Text: "Echo: hi"})
	h.Broadcast().Publish(DoneChunk{})

	assert.Equal(t, TextDelta{Text: "Echo: hi"}, <-r.Chan())
	assert.Equal(t, DoneChunk{}, <-r.Chan())
}

func TestHandleStateTransitions(t *testing.T) {
	h := NewHandle("s1")
	assert.Equal(t, Idle{}, h.State())

	h.StateCell().Set(Processing{})
	assert.Equal(t, Processing{}, h.State())

	h.StateCell().Set(ExecutingTool{Name: "Bash", UseID: "t1"})
	tool, ok := h.State().(ExecutingTool)
	require.True(t, ok)
	assert.Equal(t, "Bash", tool.Name)
}

func TestHandleCustomMetadataAndConversationName(t *testing.T) {
	h := NewHandle("s1")
	_, ok := h.GetCustomMetadata("key")
	assert.False(t, ok)

	h.SetCustomMetadata("key", 42)
	v, ok := h.GetCustomMetadata("key")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	assert.Equal(t, "", h.GetConversationName())
	h.SetConversationName("a title")
	assert.Equal(t, "a title", h.GetConversationName())
}

func TestHandleInputQueueBackpressure(t *testing.T) {
	h := NewHandle("s1")
	// Don't drain the queue; fill it past capacity and confirm Send blocks
	// until ctx is cancelled rather than silently dropping or erroring.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < DefaultInputQueueCapacity; i++ {
		require.NoError(t, h.input.Send(context.Background(), UserInput{Text: "x"}))
	}

	err := h.SendInput(ctx, "overflow")
	assert.Error(t, err)
}
