// Package embedding turns text into fixed-length vectors via a remote
// embedding model.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/smartapply/internal/config"
	"go.uber.org/zap"
)

// ErrDisabled is returned by every call on a provider that was not
// configured.
var ErrDisabled = errors.New("embedding provider disabled")

// Provider produces embedding vectors of a fixed dimensionality.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
	Close() error
}

// Error is an embedding failure. Callers skip the affected job or user.
type Error struct {
	Provider   string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("embedding error (%s): %s", e.Provider, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds the configured provider wrapped in a circuit breaker. A
// missing credential yields a Disabled provider and a single warning,
// so the rest of the pipeline keeps running.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		reason := fmt.Sprintf("no API key configured for provider %q", cfg.Provider)
		logger.Warn("embedding provider disabled; no matches will be produced",
			zap.String("provider", cfg.Provider),
			zap.String("reason", reason),
		)
		return NewDisabled(reason, cfg.Dims()), nil
	}

	var (
		inner Provider
		err   error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		inner, err = NewGeminiProvider(ctx, apiKey, cfg.ModelName(), cfg.Dims())
	case config.ProviderOpenAI, "":
		inner, err = NewOpenAIProvider(OpenAIOptions{
			APIKey:     apiKey,
			Model:      cfg.ModelName(),
			Dimensions: cfg.Dimensions,
			Endpoint:   cfg.Endpoint,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, &config.Error{Field: "embedding.provider", Message: "unsupported provider " + cfg.Provider}
	}
	if err != nil {
		return nil, err
	}

	return NewBreaker(inner, BreakerOptions{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
	}, logger), nil
}

// checkDimensions validates a vector returned by a provider.
func checkDimensions(provider string, vec []float32, want int) error {
	if len(vec) == 0 {
		return &Error{Provider: provider, Message: "empty embedding returned"}
	}
	if want > 0 && len(vec) != want {
		return &Error{Provider: provider, Message: fmt.Sprintf("expected %d dimensions, got %d", want, len(vec))}
	}
	return nil
}
