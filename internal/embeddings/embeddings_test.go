package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"hotel", "booking", "in", "rome", "2025"}, Tokenize("Hotel-Booking in Rome (2025)! a"))
	assert.Empty(t, Tokenize("a b c"))
}

func TestLocalProvider(t *testing.T) {
	t.Parallel()

	p := NewLocalProvider(256)
	assert.Equal(t, 256, p.Dimensions())
	assert.Equal(t, "local/hashing", p.Name())

	vecs, err := p.Embed(t.Context(), []string{
		"hotel booking in rome",
		"hotel booking in rome",
		"quarterly budget review meeting",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, vecs[0], vecs[1])
	})

	t.Run("UnitLength", func(t *testing.T) {
		assert.InDelta(t, 1.0, math.Sqrt(dot(vecs[0], vecs[0])), 1e-5)
	})

	t.Run("SimilarTextScoresHigher", func(t *testing.T) {
		query, err := EmbedSingle(t.Context(), p, "rome hotel")
		require.NoError(t, err)
		assert.Greater(t, dot(query, vecs[0]), dot(query, vecs[2]))
	})

	t.Run("EmptyTextIsZeroVector", func(t *testing.T) {
		assert.Equal(t, make([]float32, 256), vecs[3])
	})

	t.Run("DefaultDimensions", func(t *testing.T) {
		assert.Equal(t, DefaultLocalDimensions, NewLocalProvider(0).Dimensions())
	})
}

func TestLocalProvider_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := NewLocalProvider(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

// embeddingServer answers OpenAI embedding requests with vectors whose first
// component is the input index.
func embeddingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len(in)), 1, 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIProvider_Embed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := embeddingServer(t, &calls)
	defer srv.Close()

	p := NewOpenAIProvider(config.EmbeddingConfig{
		Provider:   config.ProviderOpenAI,
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "test-model",
		Dimensions: 3,
		BatchSize:  2,
		Timeout:    5 * time.Second,
	})
	assert.Equal(t, "openai/test-model", p.Name())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := p.Embed(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.InDelta(t, float32(len(texts[i])), v[0], 1e-6)
	}
	assert.Equal(t, int32(3), calls.Load())

	empty, err := p.Embed(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.EmbeddingConfig{
		APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "m", Dimensions: 3, BatchSize: 8, Timeout: time.Second,
	})
	_, err := p.Embed(t.Context(), []string{"x"})
	assert.Error(t, err)
}

type failingProvider struct {
	calls atomic.Int32
}

func (f *failingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	return nil, errors.New("unavailable")
}
func (f *failingProvider) Dimensions() int { return 3 }
func (f *failingProvider) Name() string    { return "failing" }

func TestBreakerProvider(t *testing.T) {
	t.Parallel()

	t.Run("PassesThrough", func(t *testing.T) {
		t.Parallel()
		b := NewBreakerProvider(NewLocalProvider(16), slog.Default())
		vecs, err := b.Embed(t.Context(), []string{"hello world"})
		require.NoError(t, err)
		assert.Len(t, vecs, 1)
		assert.Equal(t, 16, b.Dimensions())
		assert.Equal(t, "local/hashing", b.Name())
	})

	t.Run("OpensAfterRepeatedFailures", func(t *testing.T) {
		t.Parallel()
		inner := &failingProvider{}
		b := NewBreakerProvider(inner, slog.Default())
		for range 5 {
			_, err := b.Embed(t.Context(), []string{"x"})
			assert.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())
		assert.Equal(t, int32(3), inner.calls.Load())
	})
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	t.Run("Local", func(t *testing.T) {
		cfg := config.NewDefaultConfig("/kb").Embedding
		cfg.Provider = config.ProviderLocal
		cfg.Dimensions = 32
		p, err := NewProvider(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, 32, p.Dimensions())
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		cfg := config.NewDefaultConfig("/kb").Embedding
		_, err := NewProvider(cfg, nil)
		assert.ErrorIs(t, err, apperr.ErrMissingCredentials)
	})

	t.Run("OpenAIWrappedInBreaker", func(t *testing.T) {
		cfg := config.NewDefaultConfig("/kb").Embedding
		cfg.APIKey = "sk-test"
		p, err := NewProvider(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &BreakerProvider{}, p)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := config.NewDefaultConfig("/kb").Embedding
		cfg.Provider = "magic"
		_, err := NewProvider(cfg, nil)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestGenerateEmbeddingText(t *testing.T) {
	t.Parallel()

	section := graph.Chunk{Kind: graph.ChunkHeading, Text: "Book the hotel.", HeadingPath: []string{"Trip", "Lodging"}}
	assert.Equal(t, "Rome\nTrip > Lodging\nBook the hotel.", GenerateEmbeddingText("Rome", section))

	title := graph.Chunk{Kind: graph.ChunkTitle, Text: "Rome\n\nIntro"}
	assert.Equal(t, "Rome\n\nIntro", GenerateEmbeddingText("Rome", title))
}
