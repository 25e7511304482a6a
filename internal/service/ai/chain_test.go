package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

func TestChainGeneratorSendsSystemAndHistory(t *testing.T) {
	chatModel := &fakeChatModel{reply: "GIẤY ĐỀ NGHỊ"}
	gen, err := NewChainGenerator(context.Background(), "fake-ark", chatModel)
	require.NoError(t, err)

	req := Request{
		SystemInstruction: "instruction {not a placeholder}",
		SourceContext:     EmptySourcesPlaceholder,
		History: []HistoryEntry{
			{Role: HistoryModel, Text: "Chào Mr V"},
			{Role: HistoryUser, Text: "Lập hồ sơ {chi nhánh}"},
		},
	}

	text, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "GIẤY ĐỀ NGHỊ", text)
	assert.Equal(t, "fake-ark", gen.Name())

	require.Len(t, chatModel.input, 3)
	assert.Equal(t, schema.System, chatModel.input[0].Role)
	assert.Equal(t, req.SystemPrompt(), chatModel.input[0].Content)
	assert.Equal(t, schema.Assistant, chatModel.input[1].Role)
	assert.Equal(t, schema.User, chatModel.input[2].Role)
	assert.Equal(t, "Lập hồ sơ {chi nhánh}", chatModel.input[2].Content)
}

func TestChainGeneratorPropagatesModelError(t *testing.T) {
	gen, err := NewChainGenerator(context.Background(), "fake-ark", &fakeChatModel{err: errors.New("429")})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{History: []HistoryEntry{{Role: HistoryUser, Text: "hi"}}})
	assert.Error(t, err)
}

func TestChainGeneratorEmptyHistory(t *testing.T) {
	chatModel := &fakeChatModel{reply: "Chào Mr V"}
	gen, err := NewChainGenerator(context.Background(), "fake-ark", chatModel)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Request{SystemInstruction: "instruction"})
	require.NoError(t, err)
	assert.Equal(t, "Chào Mr V", text)

	require.Len(t, chatModel.input, 1)
	assert.Equal(t, schema.System, chatModel.input[0].Role)
}
