package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ChainGenerator runs requests through an eino prompt + chat model chain.
type ChainGenerator struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainGenerator compiles the chain around chatModel.
func NewChainGenerator(ctx context.Context, name string, chatModel model.BaseChatModel) (*ChainGenerator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainGenerator{name: name, chain: runnable}, nil
}

// Name reports the backend name used in logs and errors.
func (g *ChainGenerator) Name() string {
	return g.name
}

// Generate invokes the chain once.
func (g *ChainGenerator) Generate(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system": req.SystemPrompt(),
	}
	// history 占位符是可选的，空历史时不传
	if len(req.History) > 0 {
		input["history"] = historyMessages(req.History)
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}
	return response.Content, nil
}

func historyMessages(entries []HistoryEntry) []*schema.Message {
	history := make([]*schema.Message, 0, len(entries))
	for _, entry := range entries {
		switch entry.Role {
		case HistoryModel:
			history = append(history, schema.AssistantMessage(entry.Text, nil))
		default:
			history = append(history, schema.UserMessage(entry.Text))
		}
	}
	return history
}
