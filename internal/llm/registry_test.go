package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ id, name string }

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Send(ctx context.Context, req Request) (Response, error) {
	return Response{}, nil
}
func (s *stubProvider) Stream(ctx context.Context, req Request) (*StreamReader, error) {
	return nil, nil
}

func TestRegistryGetAndIDs(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubProvider{id: "anthropic", name: "Anthropic"})
	reg.Register(&stubProvider{id: "openai", name: "OpenAI"})

	p, err := reg.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "Anthropic", p.Name())

	_, err = reg.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"anthropic", "openai"}, reg.IDs())
}

func TestParseModelString(t *testing.T) {
	provider, model := ParseModelString("anthropic/claude-sonnet-4-20250514")
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "claude-sonnet-4-20250514", model)

	provider, model = ParseModelString("gpt-4o")
	assert.Equal(t, "", provider)
	assert.Equal(t, "gpt-4o", model)
}
