package llm

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeworks/agentcore/pkg/content"
)

func TestToEinoMessagesSplitsToolUseAndResult(t *testing.T) {
	history := []content.Message{
		content.NewTextMessage(content.RoleUser, "list the files"),
		{
			Role: content.RoleAssistant,
			Content: []content.Block{
				content.ToolUse{ID: "tu1", Name: "ls", Input: json.RawMessage(`{"path":"."}`)},
			},
		},
		{
			Role: content.RoleUser,
			Content: []content.Block{
				content.ToolResult{ToolUseID: "tu1", Content: []content.Block{content.Text{Text: "a.txt\nb.txt"}}},
			},
		},
	}

	msgs := toEinoMessages("be concise", history)
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "be concise", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "ls", msgs[2].ToolCalls[0].Function.Name)
	assert.Equal(t, schema.Tool, msgs[3].Role)
	assert.Equal(t, "tu1", msgs[3].ToolCallID)
	assert.Equal(t, "a.txt\nb.txt", msgs[3].Content)
}

func TestToEinoToolsParsesJSONSchema(t *testing.T) {
	defs := []ToolDefinition{{
		Name:        "read_file",
		Description: "reads a file",
		Parameters: json.RawMessage(`{
			"properties": {"path": {"type": "string", "description": "file path"}},
			"required": ["path"]
		}`),
	}}

	tools := toEinoTools(defs)
	require.Len(t, tools, 1)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.Equal(t, "reads a file", tools[0].Desc)
}

func TestFromEinoMessageSplitsToolCallsIntoBlocks(t *testing.T) {
	msg := &schema.Message{
		Content:          "let me check",
		ReasoningContent: "I should look first",
		ToolCalls: []schema.ToolCall{
			{ID: "tu1", Function: schema.FunctionCall{Name: "ls", Arguments: `{"path":"."}`}},
		},
	}

	out := fromEinoMessage(msg)
	assert.Equal(t, content.RoleAssistant, out.Role)
	require.Len(t, out.Content, 3)
	assert.Equal(t, content.Text{Text: "let me check"}, out.Content[0])
	assert.Equal(t, content.Thinking{Thinking: "I should look first"}, out.Content[1])
	uses := out.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "ls", uses[0].Name)
}

func TestBuildMessageDefaultsEmptyToolArgsToEmptyObject(t *testing.T) {
	msg := buildMessage("", "", []pendingToolUse{{index: 0, id: "tu1", name: "noop"}})
	uses := msg.ToolUses()
	require.Len(t, uses, 1)
	assert.JSONEq(t, `{}`, string(uses[0].Input))
}
