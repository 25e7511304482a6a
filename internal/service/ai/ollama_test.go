package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/zhouzirui/jr-studio/backend/internal/config"
)

type fakeLLM struct {
	messages []llms.MessageContent
	response *llms.ContentResponse
	opts     llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.response, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestOllamaGeneratorMapsRoles(t *testing.T) {
	llm := &fakeLLM{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Dạ Mr V"}}}}
	maxTokens := 512
	gen := newOllamaGenerator(llm, config.AIConfig{MaxTokens: &maxTokens})

	text, err := gen.Generate(context.Background(), Request{
		SystemInstruction: "instruction",
		SourceContext:     EmptySourcesPlaceholder,
		History: []HistoryEntry{
			{Role: HistoryModel, Text: "Chào Mr V"},
			{Role: HistoryUser, Text: "Xin chào"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dạ Mr V", text)

	require.Len(t, llm.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, llm.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[2].Role)
	assert.InDelta(t, config.DefaultTemperature, llm.opts.Temperature, 1e-9)
	assert.Equal(t, 512, llm.opts.MaxTokens)
}

func TestOllamaGeneratorEmptyChoices(t *testing.T) {
	gen := newOllamaGenerator(&fakeLLM{response: &llms.ContentResponse{}}, config.AIConfig{})
	_, err := gen.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
