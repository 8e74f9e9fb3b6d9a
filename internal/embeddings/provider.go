// Package embeddings provides the embedding providers used to turn chunk and
// query text into vectors.
package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
)

// Provider embeds batches of text.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of the vectors produced.
	Dimensions() int

	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small".
	Name() string
}

// EmbedSingle embeds one text with p.
func EmbedSingle(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("provider %s returned %d vectors for 1 input", p.Name(), len(vecs))
	}
	return vecs[0], nil
}

// NewProvider builds the provider named in cfg. The network provider is
// wrapped in a circuit breaker. It fails with apperr.ErrMissingCredentials
// when the provider needs an API key and none is configured.
func NewProvider(cfg config.EmbeddingConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case config.ProviderLocal:
		return NewLocalProvider(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		if !cfg.HasCredentials() {
			return nil, fmt.Errorf("provider %s: %w", cfg.Provider, apperr.ErrMissingCredentials)
		}
		return NewBreakerProvider(NewOpenAIProvider(cfg), logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: %w", cfg.Provider, apperr.ErrInvalidInput)
	}
}
