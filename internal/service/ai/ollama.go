package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/zhouzirui/jr-studio/backend/internal/config"
)

// OllamaGenerator talks to a local Ollama server through langchaingo.
type OllamaGenerator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

// NewOllamaGenerator connects to the server named in cfg.
func NewOllamaGenerator(cfg config.AIConfig) (*OllamaGenerator, error) {
	llm, err := ollama.New(
		ollama.WithModel(cfg.OllamaModel),
		ollama.WithServerURL(cfg.OllamaBaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	return newOllamaGenerator(llm, cfg), nil
}

func newOllamaGenerator(llm llms.Model, cfg config.AIConfig) *OllamaGenerator {
	g := &OllamaGenerator{llm: llm, temperature: config.DefaultTemperature}
	if cfg.Temperature != nil {
		g.temperature = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		g.maxTokens = *cfg.MaxTokens
	}
	return g
}

// Name reports the backend name used in logs and errors.
func (g *OllamaGenerator) Name() string {
	return "ollama"
}

// Generate sends the system prompt and history as one chat request.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	content := make([]llms.MessageContent, 0, len(req.History)+1)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt()))
	for _, entry := range req.History {
		role := llms.ChatMessageTypeHuman
		if entry.Role == HistoryModel {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, entry.Text))
	}

	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	response, err := g.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}
