package llm

import (
	"io"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeStream feeds a fixed sequence of chunks (and a final io.EOF) through a
// schema.StreamReader built from schema.StreamReaderFromArray, the same
// construction eino's own test helpers use for a closed, in-memory stream.
func newFakeStream(chunks []*schema.Message) *schema.StreamReader[*schema.Message] {
	return schema.StreamReaderFromArray(chunks)
}

func indexPtr(i int) *int { return &i }

func TestStreamReaderTextDeltaMode(t *testing.T) {
	chunks := []*schema.Message{
		{Content: "Hel"},
		{Content: "lo"},
		{ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"}},
	}
	r := newStreamReader(newFakeStream(chunks))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, MessageStart{}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	start, ok := ev.(ContentBlockStart)
	require.True(t, ok)
	assert.Equal(t, BlockText, start.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TextDelta{Index: start.Index, Text: "Hel"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TextDelta{Index: start.Index, Text: "lo"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	delta, ok := ev.(MessageDelta)
	require.True(t, ok)
	assert.Equal(t, "stop", delta.StopReason)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, ContentBlockStop{Index: start.Index}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, MessageStop{}, ev)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestStreamReaderTextAccumulatedMode(t *testing.T) {
	chunks := []*schema.Message{
		{Content: "Hel"},
		{Content: "Hello"},
	}
	r := newStreamReader(newFakeStream(chunks))

	_, _ = r.Next() // MessageStart
	_, _ = r.Next() // ContentBlockStart

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hel", ev.(TextDelta).Text)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "lo", ev.(TextDelta).Text)
}

func TestStreamReaderToolCallAccumulationByIndex(t *testing.T) {
	chunks := []*schema.Message{
		{ToolCalls: []schema.ToolCall{{
			Index:    indexPtr(0),
			ID:       "tu_1",
			Function: schema.FunctionCall{Name: "Read"},
		}}},
		{ToolCalls: []schema.ToolCall{{
			Index:    indexPtr(0),
			Function: schema.FunctionCall{Arguments: `{"path":`},
		}}},
		{ToolCalls: []schema.ToolCall{{
			Index:    indexPtr(0),
			Function: schema.FunctionCall{Arguments: `"a.txt"}`},
		}}},
	}
	r := newStreamReader(newFakeStream(chunks))

	_, _ = r.Next() // MessageStart

	ev, err := r.Next()
	require.NoError(t, err)
	start := ev.(ContentBlockStart)
	assert.Equal(t, BlockToolUse, start.Kind)
	assert.Equal(t, "tu_1", start.ToolUseID)
	assert.Equal(t, "Read", start.ToolName)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"path":`, ev.(InputJSONDelta).PartialJSON)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `"a.txt"}`, ev.(InputJSONDelta).PartialJSON)
}

func TestStreamReaderReasoningContent(t *testing.T) {
	chunks := []*schema.Message{
		{ReasoningContent: "thinking about it"},
	}
	r := newStreamReader(newFakeStream(chunks))
	_, _ = r.Next() // MessageStart

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, BlockThinking, ev.(ContentBlockStart).Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "thinking about it", ev.(ThinkingDelta).Text)
}

func TestStreamReaderNormalizesToolUseFinishReason(t *testing.T) {
	chunks := []*schema.Message{
		{ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_use"}},
	}
	r := newStreamReader(newFakeStream(chunks))
	_, _ = r.Next() // MessageStart

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tool-calls", ev.(MessageDelta).StopReason)
}
