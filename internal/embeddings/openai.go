package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/notegraph/internal/config"
)

// maxParallelBatches bounds concurrent embedding requests.
const maxParallelBatches = 4

// OpenAIProvider embeds text through an OpenAI-compatible embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dims      int
	batchSize int
	baseURL   string
}

// NewOpenAIProvider creates a provider from cfg. A custom BaseURL without
// an API path gets "/v1" appended.
func NewOpenAIProvider(cfg config.EmbeddingConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		base := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		clientConfig.BaseURL = base
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: batch,
		baseURL:   clientConfig.BaseURL,
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return "openai/" + p.model
}

// Dimensions implements Provider.
func (p *OpenAIProvider) Dimensions() int {
	return p.dims
}

// Embed implements Provider. Inputs are sent in batches, a few at a time.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		g.Go(func() error {
			return p.embedBatch(ctx, texts[start:end], out[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, batch []string, dst [][]float32) error {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      batch,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dims,
	})
	if err != nil {
		return fmt.Errorf("creating embeddings via %s: %w", p.baseURL, err)
	}
	if len(resp.Data) != len(batch) {
		return fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(batch))
	}
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(dst) {
			idx = i
		}
		dst[idx] = d.Embedding
	}
	return nil
}
