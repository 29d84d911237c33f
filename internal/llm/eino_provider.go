package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// einoProvider implements Provider over any eino model.ToolCallingChatModel,
// the same binding point go-opencode's AnthropicProvider/OpenAIProvider/
// ArkProvider all wrap. Send and Stream share this one implementation;
// only construction (NewAnthropicProvider, NewOpenAIProvider, NewArkProvider
// in anthropic.go, openai.go and ark.go) differs per backend.
type einoProvider struct {
	id        string
	name      string
	chatModel model.ToolCallingChatModel
	buildOpts func(Request) []model.Option
}

func (p *einoProvider) ID() string   { return p.id }
func (p *einoProvider) Name() string { return p.name }

func (p *einoProvider) bind(req Request) (model.ToolCallingChatModel, error) {
	cm := p.chatModel
	if len(req.Tools) == 0 {
		return cm, nil
	}
	bound, err := cm.WithTools(toEinoTools(req.Tools))
	if err != nil {
		return nil, fmt.Errorf("llm: bind tools: %w", err)
	}
	return bound, nil
}

// Stream opens a streaming turn and returns a StreamReader translating the
// raw eino chunk sequence into this package's StreamEvent union.
func (p *einoProvider) Stream(ctx context.Context, req Request) (*StreamReader, error) {
	cm, err := p.bind(req)
	if err != nil {
		return nil, err
	}
	msgs := toEinoMessages(req.System, req.Messages)
	reader, err := cm.Stream(ctx, msgs, p.buildOpts(req)...)
	if err != nil {
		return nil, fmt.Errorf("llm: stream: %w", err)
	}
	return newStreamReader(reader), nil
}

// Send runs a turn to completion by draining Stream and accumulating its
// events into one Response. go-opencode never calls a non-streaming
// Generate anywhere in the pack — every provider's CreateCompletion always
// returns a stream — so Send is built the same way here rather than
// inventing an unobserved synchronous entry point on the chat model.
func (p *einoProvider) Send(ctx context.Context, req Request) (Response, error) {
	reader, err := p.Stream(ctx, req)
	if err != nil {
		return Response{}, err
	}
	defer reader.Close()

	var text, thinking string
	var toolUses []pendingToolUse
	var stopReason string
	var usage Usage

	for {
		ev, err := reader.Next()
		if err != nil {
			break
		}
		switch e := ev.(type) {
		case TextDelta:
			text += e.Text
		case ThinkingDelta:
			thinking += e.Text
		case ContentBlockStart:
			if e.Kind == BlockToolUse {
				toolUses = append(toolUses, pendingToolUse{index: e.Index, id: e.ToolUseID, name: e.ToolName})
			}
		case InputJSONDelta:
			for i := range toolUses {
				if toolUses[i].index == e.Index {
					toolUses[i].args += e.PartialJSON
					break
				}
			}
		case MessageDelta:
			stopReason = e.StopReason
			usage = e.Usage
		case StreamError:
			return Response{}, e.Err
		}
	}

	return Response{Message: buildMessage(text, thinking, toolUses), StopReason: stopReason, Usage: usage}, nil
}

type pendingToolUse struct {
	index int
	id    string
	name  string
	args  string
}
