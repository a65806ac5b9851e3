package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/maildigest/internal/providers"
)

// Invoker performs one logical generation call. The header carries the
// instruction prompt; input is the document text. Implementations return
// the raw model output.
type Invoker interface {
	Invoke(ctx context.Context, header, input string) (string, error)
}

// LLMInvokerConfig configures the base invoker.
type LLMInvokerConfig struct {
	Client      providers.LLMClient
	RateLimiter *providers.RateLimiter
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// LLMInvoker is the base Invoker: waits on the shared rate limiter, then
// makes a single backend call. Retry policy lives in the decorators.
type LLMInvoker struct {
	client      providers.LLMClient
	rateLimiter *providers.RateLimiter
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewLLMInvoker creates the base invoker.
func NewLLMInvoker(cfg LLMInvokerConfig) (*LLMInvoker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("LLMInvoker requires a client")
	}
	if cfg.RateLimiter == nil {
		return nil, fmt.Errorf("LLMInvoker requires a rate limiter")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMInvoker{
		client:      cfg.Client,
		rateLimiter: cfg.RateLimiter,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With("component", "invoker"),
	}, nil
}

// Invoke waits for rate-limit clearance and performs one backend call.
func (v *LLMInvoker) Invoke(ctx context.Context, header, input string) (string, error) {
	if err := v.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	requestID := uuid.New().String()
	start := time.Now()

	result, err := v.client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: header},
			{Role: "user", Content: input},
		},
		Model:       v.model,
		MaxTokens:   v.maxTokens,
		Temperature: v.temperature,
		RequestID:   requestID,
	})
	if err != nil {
		v.logger.Warn("backend call failed",
			"request_id", requestID,
			"input_chars", len(input),
			"elapsed", time.Since(start),
			"error", err)
		return "", err
	}

	v.logger.Debug("backend call completed",
		"request_id", requestID,
		"input_chars", len(input),
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"elapsed", time.Since(start))

	return result.Content, nil
}

var _ Invoker = (*LLMInvoker)(nil)
