package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibeworks/agentcore/internal/llm"
	"github.com/vibeworks/agentcore/pkg/content"
)

// minMessagesToKeep, summaryMaxTokens, contextThreshold and maxContextTokens
// are go-opencode's CompactionConfig/MaxContextTokens defaults (loop.go,
// compact.go), carried over unchanged.
const (
	minMessagesToKeep = 4
	summaryMaxTokens  = 2000
	contextThreshold  = 0.75
	maxContextTokens  = 150000
)

// compactionSystemPrompt is go-opencode's summarizer system prompt.
const compactionSystemPrompt = `You are a conversation summarizer. Create a concise summary of the conversation that preserves key context for continuing the discussion.

Focus on:
1. What was accomplished
2. Current work in progress
3. Files involved
4. Next steps
5. Any key user requests or constraints`

// estimateTokens is go-opencode's rough ~4-characters-per-token estimate —
// no real tokenizer is available to either of us, so neither pretends to
// have one.
func estimateTokens(text string) int {
	return len(text) / 4
}

// shouldCompact reports whether history's estimated token count has
// crossed contextThreshold of maxContextTokens. go-opencode's shouldCompact
// compares the raw sum against MaxContextTokens directly and never actually
// multiplies in ContextThreshold despite defining it — here the threshold
// is applied, since carrying a config field with no effect on its own
// check would just be dead weight.
func shouldCompact(history []content.Message) bool {
	if len(history) <= minMessagesToKeep {
		return false
	}
	total := 0
	for _, msg := range history {
		total += estimateTokens(msg.PlainText())
		for _, tr := range msg.ToolResults() {
			for _, b := range tr.Content {
				if t, ok := b.(content.Text); ok {
					total += estimateTokens(t.Text)
				}
			}
		}
	}
	return float64(total) > float64(maxContextTokens)*contextThreshold
}

// compactMessages replaces the oldest messages of history (everything but
// the last minMessagesToKeep) with a single summarizing message generated
// by provider/model, the way go-opencode's compactMessages does before
// reloading the trimmed history for the next completion request.
func compactMessages(ctx context.Context, provider llm.Provider, model string, history []content.Message) ([]content.Message, error) {
	if len(history) <= minMessagesToKeep {
		return history, nil
	}

	compactEnd := len(history) - minMessagesToKeep
	toCompact := history[:compactEnd]
	kept := history[compactEnd:]

	resp, err := provider.Send(ctx, llm.Request{
		Model:     model,
		System:    compactionSystemPrompt,
		MaxTokens: summaryMaxTokens,
		Messages: []content.Message{
			content.NewTextMessage(content.RoleUser, buildSummaryPrompt(toCompact)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agentloop: compact messages: %w", err)
	}

	summary := content.NewTextMessage(content.RoleAssistant, "Conversation summary:\n\n"+resp.Message.PlainText())
	out := make([]content.Message, 0, len(kept)+1)
	out = append(out, summary)
	out = append(out, kept...)
	return out, nil
}

// buildSummaryPrompt renders the messages being compacted as a flat
// USER:/ASSISTANT: transcript, truncating individual tool results the same
// way go-opencode's buildSummaryPrompt truncates long tool output.
func buildSummaryPrompt(messages []content.Message) string {
	var b strings.Builder
	b.WriteString("Please summarize the following conversation, focusing on:\n")
	b.WriteString("1. Key decisions and outcomes\n")
	b.WriteString("2. Files that were modified\n")
	b.WriteString("3. Important context for continuing the work\n\n")
	b.WriteString("---\n\n")

	for _, msg := range messages {
		if msg.Role == content.RoleUser {
			b.WriteString("USER:\n")
		} else {
			b.WriteString("ASSISTANT:\n")
		}

		for _, block := range msg.Content {
			switch bl := block.(type) {
			case content.Text:
				b.WriteString(bl.Text)
				b.WriteString("\n")
			case content.ToolUse:
				fmt.Fprintf(&b, "[Tool: %s]\n", bl.Name)
			case content.ToolResult:
				output := toolResultPlainText(bl)
				if len(output) > 500 {
					output = output[:500] + "..."
				}
				if output != "" {
					b.WriteString(output)
					b.WriteString("\n")
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func toolResultPlainText(r content.ToolResult) string {
	var out string
	for _, b := range r.Content {
		if t, ok := b.(content.Text); ok {
			out += t.Text
		}
	}
	return out
}
