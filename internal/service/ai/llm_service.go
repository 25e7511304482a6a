package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhouzirui/jr-studio/backend/internal/config"
)

// ErrEmptyResponse reports a model call that returned no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ModelCallError wraps every failure of the remote model call.
type ModelCallError struct {
	Provider string
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call via %s failed: %v", e.Provider, e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}

// Generator is the remote language model. One Generate call is one request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tune how the Service calls its Generator.
type Options struct {
	// RateLimit is the number of model calls allowed per second; 0 disables.
	RateLimit float64
	RateBurst int
	Timeout   time.Duration
}

// Service makes single-attempt model calls and normalises their failures.
type Service struct {
	generator Generator
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewService wraps a Generator.
func NewService(generator Generator, opts Options) *Service {
	svc := &Service{generator: generator, timeout: opts.Timeout}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		svc.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return svc
}

// NewServiceFromConfig builds the configured Generator and wraps it.
func NewServiceFromConfig(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	generator, err := NewGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewService(generator, Options{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Timeout:   cfg.Timeout,
	}), nil
}

// NewGenerator picks the backend named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaGenerator(cfg)
	case config.ProviderArk, "":
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChainGenerator(ctx, "ark", chatModel)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// Provider names the backend in use.
func (s *Service) Provider() string {
	return s.generator.Name()
}

// Generate issues exactly one model call. Any failure, including an empty
// answer, comes back as a *ModelCallError.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	provider := s.generator.Name()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", &ModelCallError{Provider: provider, Err: err}
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", &ModelCallError{Provider: provider, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ModelCallError{Provider: provider, Err: ErrEmptyResponse}
	}

	log.Printf("[ai] generated response via %s, history=%d, length=%d, took=%s", provider, len(req.History), len(text), time.Since(started).Round(time.Millisecond))
	return text, nil
}
