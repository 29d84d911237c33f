package llm

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/vibeworks/agentcore/pkg/content"
)

// toEinoTools translates ToolDefinition into eino's schema.ToolInfo, reusing
// the same JSON-Schema-to-ParameterInfo shape go-opencode's provider package
// builds in ConvertToEinoTools/parseJSONSchemaToParams.
func toEinoTools(defs []ToolDefinition) []*schema.ToolInfo {
	if len(defs) == 0 {
		return nil
	}
	out := make([]*schema.ToolInfo, len(defs))
	for i, d := range defs {
		var params map[string]*schema.ParameterInfo
		if len(d.Parameters) > 0 {
			params = parseJSONSchemaParams(d.Parameters)
		}
		out[i] = &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return out
}

func parseJSONSchemaParams(raw json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &jsonSchema); err != nil {
		return nil
	}

	required := make(map[string]bool, len(jsonSchema.Required))
	for _, r := range jsonSchema.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(jsonSchema.Properties))
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}

// toEinoMessages flattens a system prompt and the turn's Message history
// into eino's []*schema.Message, splitting ToolUse/ToolResult blocks out
// into their own schema.Message entries the way Anthropic/OpenAI's wire
// formats expect: an assistant message carrying tool_calls, followed by
// one tool-role message per result, keyed by ToolCallID.
//
// Image and Document blocks are folded into the surrounding text as a
// bracketed placeholder rather than translated into eino multimodal parts:
// go-opencode's own ConvertToEinoMessages never handles non-text, non-tool
// parts either, so this mirrors that same scope rather than inventing an
// eino multimodal shape nothing in the reference stack demonstrates.
func toEinoMessages(system string, messages []content.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, &schema.Message{Role: schema.System, Content: system})
	}

	for _, m := range messages {
		role := schema.Assistant
		if m.Role == content.RoleUser {
			role = schema.User
		}

		var text string
		var toolCalls []schema.ToolCall
		var toolResults []*schema.Message

		for _, b := range m.Content {
			switch v := b.(type) {
			case content.Text:
				text += v.Text
			case content.Thinking:
				// Extended thinking is not replayed as input content; providers
				// that require it attach it via their own request option, not
				// as a conversation-history block.
			case content.ToolUse:
				argsJSON, _ := json.Marshal(rawOrEmpty(v.Input))
				toolCalls = append(toolCalls, schema.ToolCall{
					ID: v.ID,
					Function: schema.FunctionCall{
						Name:      v.Name,
						Arguments: string(argsJSON),
					},
				})
			case content.ToolResult:
				toolResults = append(toolResults, &schema.Message{
					Role:       schema.Tool,
					Content:    toolResultText(v),
					ToolCallID: v.ToolUseID,
				})
			case content.Image:
				text += fmt.Sprintf("[image attached: %s]", v.MediaType)
			case content.Document:
				text += fmt.Sprintf("[document attached: %s]", v.MediaType)
			}
		}

		if text != "" || len(toolCalls) > 0 {
			out = append(out, &schema.Message{Role: role, Content: text, ToolCalls: toolCalls})
		}
		out = append(out, toolResults...)
	}

	return out
}

// buildMessage assembles a content.Message from the text, thinking, and
// tool-use pieces Send accumulates while draining a StreamReader.
func buildMessage(text, thinking string, toolUses []pendingToolUse) content.Message {
	var blocks []content.Block
	if text != "" {
		blocks = append(blocks, content.Text{Text: text})
	}
	if thinking != "" {
		blocks = append(blocks, content.Thinking{Thinking: thinking})
	}
	for _, tu := range toolUses {
		args := tu.args
		if args == "" {
			args = "{}"
		}
		blocks = append(blocks, content.ToolUse{ID: tu.id, Name: tu.name, Input: json.RawMessage(args)})
	}
	return content.Message{Role: content.RoleAssistant, Content: blocks}
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func toolResultText(r content.ToolResult) string {
	var out string
	for _, b := range r.Content {
		switch v := b.(type) {
		case content.Text:
			out += v.Text
		case content.Image:
			out += fmt.Sprintf("[image: %s]", v.MediaType)
		case content.Document:
			out += fmt.Sprintf("[document: %s]", v.MediaType)
		}
	}
	return out
}

// fromEinoMessage converts a fully-accumulated eino message (the result of
// draining a Stream, or a provider's own non-streaming reply) into a
// content.Message, splitting any ToolCalls into ToolUse blocks the way
// go-opencode's stream processor builds ToolPart entries from msg.ToolCalls.
func fromEinoMessage(msg *schema.Message) content.Message {
	var blocks []content.Block
	if msg.Content != "" {
		blocks = append(blocks, content.Text{Text: msg.Content})
	}
	if msg.ReasoningContent != "" {
		blocks = append(blocks, content.Thinking{Thinking: msg.ReasoningContent})
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, content.ToolUse{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	return content.Message{Role: content.RoleAssistant, Content: blocks}
}
