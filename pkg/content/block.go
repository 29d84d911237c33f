// Package content defines the typed message and content-block model shared by
// every component of the agent runtime: the session store persists it, the
// agent loop builds it from provider streams, the tool executor appends to
// it, and the LLM provider adapters translate it to and from wire formats.
package content

import (
	"encoding/json"
	"fmt"
)

// MediaType enumerates the image encodings a Block may carry.
type MediaType string

const (
	MediaPNG  MediaType = "image/png"
	MediaJPEG MediaType = "image/jpeg"
	MediaGIF  MediaType = "image/gif"
	MediaWebP MediaType = "image/webp"
	MediaPDF  MediaType = "application/pdf"
)

// CacheControl marks a cache breakpoint on a block: the provider treats
// everything up to and including this block as a reusable cached prefix.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral" — the only kind providers currently support
}

// EphemeralCache is the conventional CacheControl value. The agent loop sets
// it on the last content block of the last history message; the system-prompt
// and tool-list breakpoints are flags on llm.Request instead.
var EphemeralCache = &CacheControl{Type: "ephemeral"}

// Block is the tagged-union content element of a Message. Each concrete type
// below is a disjoint variant; blockTag is unexported so no type outside this
// package can implement Block, giving Go's interface+switch the same closed-set
// guarantee a sum type would have in another language.
type Block interface {
	blockTag()
}

// Block wire-type discriminators. These match the "type" field Anthropic's
// own Messages API puts on each content block, since the provider adapters
// already speak that wire shape.
const (
	blockTypeText             = "text"
	blockTypeThinking         = "thinking"
	blockTypeRedactedThinking = "redacted_thinking"
	blockTypeToolUse          = "tool_use"
	blockTypeToolResult       = "tool_result"
	blockTypeImage            = "image"
	blockTypeDocument         = "document"
)

// unmarshalBlock decodes one block, peeking its "type" tag to pick the
// concrete struct to decode into — the same peek-then-dispatch shape
// go-opencode's pkg/types.UnmarshalPart uses for its own Part union.
func unmarshalBlock(data json.RawMessage) (Block, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("content: decode block type: %w", err)
	}

	switch disc.Type {
	case blockTypeText:
		var b Text
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeThinking:
		var b Thinking
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeRedactedThinking:
		var b RedactedThinking
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeToolUse:
		var b ToolUse
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeToolResult:
		var b ToolResult
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeImage:
		var b Image
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	case blockTypeDocument:
		var b Document
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("content: unknown block type %q", disc.Type)
	}
}

// unmarshalBlocks decodes a JSON array of tagged blocks into a Block slice.
// A null or empty array decodes to a nil slice, matching encoding/json's
// usual treatment of an absent or empty list.
func unmarshalBlocks(data json.RawMessage) ([]Block, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("content: decode block list: %w", err)
	}
	blocks := make([]Block, len(raws))
	for i, raw := range raws {
		b, err := unmarshalBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}
	return blocks, nil
}

// Text carries plain prose, optionally marking a cache breakpoint.
type Text struct {
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

func (Text) blockTag() {}

// MarshalJSON wraps Text with the "type" discriminator other blocks in the
// same list need to tell it apart on decode.
func (t Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeText, alias: alias(t)})
}

// Thinking carries extended-thinking output. Signature is opaque and must be
// echoed back verbatim on the next turn, or omitted entirely — never altered.
type Thinking struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature"`
}

func (Thinking) blockTag() {}

// MarshalJSON wraps Thinking with its "type" discriminator.
func (t Thinking) MarshalJSON() ([]byte, error) {
	type alias Thinking
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeThinking, alias: alias(t)})
}

// RedactedThinking carries thinking content the provider redacted; Data is an
// opaque blob that must be preserved byte-for-byte if echoed back.
type RedactedThinking struct {
	Data string `json:"data"`
}

func (RedactedThinking) blockTag() {}

// MarshalJSON wraps RedactedThinking with its "type" discriminator.
func (r RedactedThinking) MarshalJSON() ([]byte, error) {
	type alias RedactedThinking
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeRedactedThinking, alias: alias(r)})
}

// ToolUse is an assistant-issued tool invocation request.
type ToolUse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Input        json.RawMessage `json:"input"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

func (ToolUse) blockTag() {}

// MarshalJSON wraps ToolUse with its "type" discriminator.
func (tu ToolUse) MarshalJSON() ([]byte, error) {
	type alias ToolUse
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeToolUse, alias: alias(tu)})
}

// ToolResult is the outcome of executing a ToolUse, addressed back to it by ID.
// Content is itself a block list so a result can carry text plus an image or
// document alongside the plain-text summary.
type ToolResult struct {
	ToolUseID    string        `json:"tool_use_id"`
	Content      []Block       `json:"content"`
	IsError      bool          `json:"is_error"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

func (ToolResult) blockTag() {}

// MarshalJSON wraps ToolResult with its "type" discriminator. Content's own
// elements carry their own discriminators too, so the nested list round-trips
// the same way a top-level Message's does.
func (tr ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeToolResult, alias: alias(tr)})
}

// UnmarshalJSON decodes ToolResult, dispatching its Content list through
// unmarshalBlocks since Content's interface element type can't be decoded by
// encoding/json on its own.
func (tr *ToolResult) UnmarshalJSON(data []byte) error {
	var shadow struct {
		ToolUseID    string          `json:"tool_use_id"`
		Content      json.RawMessage `json:"content"`
		IsError      bool            `json:"is_error"`
		CacheControl *CacheControl   `json:"cache_control,omitempty"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	blocks, err := unmarshalBlocks(shadow.Content)
	if err != nil {
		return err
	}
	tr.ToolUseID = shadow.ToolUseID
	tr.Content = blocks
	tr.IsError = shadow.IsError
	tr.CacheControl = shadow.CacheControl
	return nil
}

// Image carries inline base64 image bytes.
type Image struct {
	MediaType  MediaType `json:"media_type"`
	Base64Data string    `json:"base64_data"`
}

func (Image) blockTag() {}

// MarshalJSON wraps Image with its "type" discriminator.
func (i Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeImage, alias: alias(i)})
}

// Document carries inline base64 document bytes (PDF only, per spec).
type Document struct {
	MediaType  MediaType `json:"media_type"`
	Base64Data string    `json:"base64_data"`
}

func (Document) blockTag() {}

// MarshalJSON wraps Document with its "type" discriminator.
func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: blockTypeDocument, alias: alias(d)})
}

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn-element of a session's history. Content is always a
// block list; a plain-text message is represented as a single Text block,
// which collapses a Text(string)|Blocks(list) variant into one
// representation without altering wire-observable semantics.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// UnmarshalJSON decodes Message, dispatching Content through unmarshalBlocks
// since a []Block field can't be decoded by encoding/json on its own —
// without this, json.Unmarshal on any Message whose Content is non-empty
// fails with "cannot unmarshal object into Go struct field ... of type
// content.Block", which made every session-history line with at least one
// block unreadable.
func (m *Message) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	blocks, err := unmarshalBlocks(shadow.Content)
	if err != nil {
		return err
	}
	m.Role = shadow.Role
	m.Content = blocks
	return nil
}

// NewTextMessage builds a Message with a single Text block — the common case
// for user input and simple assistant replies.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Block{Text{Text: text}}}
}

// PlainText concatenates every Text block's contents, ignoring other block
// kinds. Used by callers (e.g. the conversation namer) that want a rough
// text summary of a message rather than its full structured content.
func (m Message) PlainText() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(Text); ok {
			out += t.Text
		}
	}
	return out
}

// ToolUses returns every ToolUse block in the message, in order.
func (m Message) ToolUses() []ToolUse {
	var out []ToolUse
	for _, b := range m.Content {
		if tu, ok := b.(ToolUse); ok {
			out = append(out, tu)
		}
	}
	return out
}

// ToolResults returns every ToolResult block in the message, in order.
func (m Message) ToolResults() []ToolResult {
	var out []ToolResult
	for _, b := range m.Content {
		if tr, ok := b.(ToolResult); ok {
			out = append(out, tr)
		}
	}
	return out
}

// IsOnlyToolUse reports whether every block in the message is a ToolUse —
// the shape required of the assistant half of a canonical tool-use/tool-result
// pair.
func (m Message) IsOnlyToolUse() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		if _, ok := b.(ToolUse); !ok {
			return false
		}
	}
	return true
}

// IsOnlyToolResult reports whether every block in the message is a ToolResult.
func (m Message) IsOnlyToolResult() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		if _, ok := b.(ToolResult); !ok {
			return false
		}
	}
	return true
}

// InterruptMarkerText is the literal block appended to terminate a turn
// after user cancellation.
const InterruptMarkerText = "<system>User interrupted this message</system>"

// IsInterruptMarker reports whether a block is the literal interrupt marker.
func IsInterruptMarker(b Block) bool {
	t, ok := b.(Text)
	return ok && t.Text == InterruptMarkerText
}
