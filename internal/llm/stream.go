package llm

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// StreamEvent is the tagged union every Stream implementation emits:
// message start, content-block start/delta/stop
// (text, thinking, input-json), message delta (stop reason and usage),
// message stop, ping, and error. It mirrors the provider wire protocol
// go-opencode's processMessageChunk consumes from eino's raw chunks, lifted
// one level so callers never see eino types.
type StreamEvent interface {
	streamEvent()
}

// BlockKind distinguishes the content a ContentBlockStart opens.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockThinking
	BlockToolUse
)

// MessageStart opens the turn.
type MessageStart struct{}

func (MessageStart) streamEvent() {}

// ContentBlockStart opens a new indexed content block.
type ContentBlockStart struct {
	Index int
	Kind  BlockKind
	// ToolUseID and ToolName are populated only when Kind is BlockToolUse,
	// carried on the start event the way Anthropic's tool_use block start
	// and go-opencode's ToolCallStartEvent both do.
	ToolUseID string
	ToolName  string
}

func (ContentBlockStart) streamEvent() {}

// TextDelta carries an incremental chunk of a BlockText block.
type TextDelta struct {
	Index int
	Text  string
}

func (TextDelta) streamEvent() {}

// ThinkingDelta carries an incremental chunk of a BlockThinking block.
type ThinkingDelta struct {
	Index int
	Text  string
}

func (ThinkingDelta) streamEvent() {}

// InputJSONDelta carries an incremental chunk of a tool call's input JSON.
type InputJSONDelta struct {
	Index       int
	PartialJSON string
}

func (InputJSONDelta) streamEvent() {}

// SignatureDelta carries the opaque signature closing a thinking block.
// Providers that never surface a signature through eino's schema.Message
// (none of the chunks go-opencode's stream.go reads expose one) simply
// never emit this event; callers must not assume every thinking block gets
// one.
type SignatureDelta struct {
	Index     int
	Signature string
}

func (SignatureDelta) streamEvent() {}

// ContentBlockStop closes an indexed content block.
type ContentBlockStop struct {
	Index int
}

func (ContentBlockStop) streamEvent() {}

// MessageDelta reports the stop reason and running token usage, mirroring
// the ResponseMeta handling in go-opencode's processMessageChunk.
type MessageDelta struct {
	StopReason string
	Usage      Usage
}

func (MessageDelta) streamEvent() {}

// MessageStop closes the turn; Next returns io.EOF on the call after this.
type MessageStop struct{}

func (MessageStop) streamEvent() {}

// Ping is a keepalive with no semantic content.
type Ping struct{}

func (Ping) streamEvent() {}

// StreamError wraps a terminal stream error.
type StreamError struct {
	Err error
}

func (StreamError) streamEvent() {}

// StreamReader drains an eino *schema.StreamReader[*schema.Message],
// translating its chunk-accumulation quirks into the StreamEvent sequence
// above. One eino Recv() can fan out into several events (a new tool call
// starting, a delta on another, and a finish-reason update all in the same
// chunk), so events are buffered and drained before the next Recv().
//
// Grounded on go-opencode's processStream/processMessageChunk: text content
// arrives in either delta or accumulated mode (distinguished by a
// strings.HasPrefix check against what's been seen so far), tool calls are
// tracked by Index (falling back to ID when Index is nil), and the first
// chunk for a given index carries ID+Name with empty Arguments while later
// chunks carry only incremental Arguments to concatenate.
type StreamReader struct {
	inner *schema.StreamReader[*schema.Message]

	started bool
	done    bool
	pending []StreamEvent

	nextIndex int

	textIndex        int
	textOpen         bool
	accumulatedText  string

	reasoningIndex int
	reasoningOpen  bool

	toolIndexByKey map[string]int
	toolOpen       map[int]bool
	toolArgs       map[int]string
}

func newStreamReader(inner *schema.StreamReader[*schema.Message]) *StreamReader {
	return &StreamReader{
		inner:          inner,
		toolIndexByKey: make(map[string]int),
		toolOpen:       make(map[int]bool),
		toolArgs:       make(map[int]string),
	}
}

// Close releases the underlying eino stream, if any (a StreamReader built
// by NewStreamReaderFromEvents has none).
func (s *StreamReader) Close() {
	if s.inner != nil {
		s.inner.Close()
	}
}

// NewStreamReaderFromEvents builds a StreamReader that replays a fixed
// event sequence with no live eino stream underneath — a test fixture for
// exercising callers of Next() (e.g. the standard agent loop) without a
// real provider. The caller supplies the full sequence, including
// MessageStart and the terminal MessageStop.
func NewStreamReaderFromEvents(events []StreamEvent) *StreamReader {
	return &StreamReader{
		started: true,
		done:    true,
		pending: append([]StreamEvent(nil), events...),
	}
}

// Next returns the next StreamEvent, or io.EOF once MessageStop has been
// delivered and drained.
func (s *StreamReader) Next() (StreamEvent, error) {
	if !s.started {
		s.started = true
		return MessageStart{}, nil
	}

	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return nil, io.EOF
		}

		msg, err := s.inner.Recv()
		if err == io.EOF {
			s.done = true
			s.closeOpenBlocks()
			s.pending = append(s.pending, MessageStop{})
			continue
		}
		if err != nil {
			s.done = true
			return StreamError{Err: err}, nil
		}
		s.absorb(msg)
	}
}

func (s *StreamReader) closeOpenBlocks() {
	if s.textOpen {
		s.pending = append(s.pending, ContentBlockStop{Index: s.textIndex})
		s.textOpen = false
	}
	if s.reasoningOpen {
		s.pending = append(s.pending, ContentBlockStop{Index: s.reasoningIndex})
		s.reasoningOpen = false
	}
	for idx, open := range s.toolOpen {
		if open {
			s.pending = append(s.pending, ContentBlockStop{Index: idx})
			s.toolOpen[idx] = false
		}
	}
}

func (s *StreamReader) absorb(msg *schema.Message) {
	if msg.Content != "" {
		s.absorbText(msg.Content)
	}
	if msg.ReasoningContent != "" {
		s.absorbReasoning(msg.ReasoningContent)
	}
	for _, tc := range msg.ToolCalls {
		s.absorbToolCall(tc)
	}
	if msg.ResponseMeta != nil {
		var usage Usage
		if msg.ResponseMeta.Usage != nil {
			usage = Usage{
				InputTokens:  msg.ResponseMeta.Usage.PromptTokens,
				OutputTokens: msg.ResponseMeta.Usage.CompletionTokens,
			}
		}
		if msg.ResponseMeta.FinishReason != "" || msg.ResponseMeta.Usage != nil {
			reason := normalizeFinishReason(msg.ResponseMeta.FinishReason)
			s.pending = append(s.pending, MessageDelta{StopReason: reason, Usage: usage})
		}
	}
}

func normalizeFinishReason(reason string) string {
	if reason == "tool_use" {
		return "tool-calls"
	}
	return reason
}

func (s *StreamReader) absorbText(chunk string) {
	if !s.textOpen {
		s.textIndex = s.nextIndex
		s.nextIndex++
		s.textOpen = true
		s.accumulatedText = chunk
		s.pending = append(s.pending, ContentBlockStart{Index: s.textIndex, Kind: BlockText})
		s.pending = append(s.pending, TextDelta{Index: s.textIndex, Text: chunk})
		return
	}

	var delta string
	if strings.HasPrefix(chunk, s.accumulatedText) {
		delta = chunk[len(s.accumulatedText):]
		s.accumulatedText = chunk
	} else {
		delta = chunk
		s.accumulatedText += chunk
	}
	if delta != "" {
		s.pending = append(s.pending, TextDelta{Index: s.textIndex, Text: delta})
	}
}

func (s *StreamReader) absorbReasoning(chunk string) {
	if !s.reasoningOpen {
		s.reasoningIndex = s.nextIndex
		s.nextIndex++
		s.reasoningOpen = true
		s.pending = append(s.pending, ContentBlockStart{Index: s.reasoningIndex, Kind: BlockThinking})
	}
	s.pending = append(s.pending, ThinkingDelta{Index: s.reasoningIndex, Text: chunk})
}

func (s *StreamReader) absorbToolCall(tc schema.ToolCall) {
	var key string
	switch {
	case tc.Index != nil:
		key = fmt.Sprintf("idx:%d", *tc.Index)
	case tc.ID != "":
		key = "id:" + tc.ID
	default:
		return
	}

	idx, exists := s.toolIndexByKey[key]
	if !exists && tc.ID != "" && tc.Function.Name != "" {
		idx = s.nextIndex
		s.nextIndex++
		s.toolIndexByKey[key] = idx
		s.toolOpen[idx] = true
		s.toolArgs[idx] = ""
		s.pending = append(s.pending, ContentBlockStart{
			Index: idx, Kind: BlockToolUse, ToolUseID: tc.ID, ToolName: tc.Function.Name,
		})
	} else if !exists {
		return
	}

	if tc.Function.Arguments != "" {
		s.toolArgs[idx] += tc.Function.Arguments
		s.pending = append(s.pending, InputJSONDelta{Index: idx, PartialJSON: tc.Function.Arguments})
	}
}
