// Package naming generates a short conversation title from a session's
// first user message, the way go-opencode's session.ensureTitle does: one
// single-shot LLM call, run out-of-band after the turn that produced the
// title-worthy content has already been delivered to the caller.
package naming

import (
	"context"
	"strings"

	"github.com/vibeworks/agentcore/internal/llm"
	"github.com/vibeworks/agentcore/pkg/content"
)

// DefaultTitle is the placeholder title a host may give a session
// (session.Store.Create itself leaves the title empty). A title is only
// (re)generated while the session's title is empty or equals this —
// go-opencode's isDefaultTitle check, generalized from a prefix match to
// an exact one since this module never appends a disambiguating suffix.
const DefaultTitle = "New Session"

const systemPrompt = `You are a title generator. You output ONLY a thread title. Nothing else.

Generate a brief title that would help the user find this conversation later.

Rules:
- A single line, <=50 characters
- No explanations
- Use -ing verbs for actions (Debugging, Implementing, Analyzing)
- Keep exact: technical terms, numbers, filenames
- Remove: the, this, my, a, an
- Always output something meaningful

Examples:
"debug 500 errors in production" -> Debugging production 500 errors
"refactor user service" -> Refactoring user service
"implement rate limiting" -> Implementing rate limiting`

const maxTitleLength = 100

// maxTokens caps the title-generation call the same way go-opencode's
// ensureTitle does — a title never needs more than a handful of tokens.
const maxTokens = 50

// Namer generates conversation titles via a configured provider/model.
type Namer struct {
	provider llm.Provider
	model    string
}

// New builds a Namer over a provider and the model id to use for title
// generation — conventionally the process's default model, not whatever
// model the triggering turn used, since title generation is cheap and
// doesn't need the user's chosen model's capabilities.
func New(provider llm.Provider, model string) *Namer {
	return &Namer{provider: provider, model: model}
}

// Generate produces a title for userContent, or "" if the provider call
// fails — naming is best-effort and must never fail the turn it runs
// alongside.
func (n *Namer) Generate(ctx context.Context, userContent string) string {
	if n == nil || n.provider == nil {
		return ""
	}

	resp, err := n.provider.Send(ctx, llm.Request{
		Model:     n.model,
		System:    systemPrompt,
		MaxTokens: maxTokens,
		Messages: []content.Message{
			content.NewTextMessage(content.RoleUser, "Generate a title for this conversation:\n\n"+userContent),
		},
	})
	if err != nil {
		return ""
	}

	return clean(resp.Message.PlainText())
}

// ShouldGenerate reports whether title generation should run: only once,
// on the first user message of a top-level session still carrying the
// default title.
func ShouldGenerate(currentTitle string, isSubsession bool) bool {
	if isSubsession {
		return false
	}
	return currentTitle == "" || currentTitle == DefaultTitle
}

func clean(raw string) string {
	title := strings.TrimSpace(raw)
	for _, line := range strings.Split(title, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = line
			break
		}
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength-3] + "..."
	}
	return title
}
