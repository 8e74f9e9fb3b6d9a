// Package search implements semantic search over the vector store with
// query expansion, result merging and diversification, plus keyword and glob
// search over the knowledge graph.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/storage"
)

// Searcher runs one embed-and-scan lookup. *storage.VectorStore implements it.
type Searcher interface {
	Search(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.SearchResult, error)
}

// Options controls EnhancedSearch and Research. Zero values fall back to the
// engine configuration.
type Options struct {
	Limit     int
	Threshold float64

	// MultiPhrase enables query variations in EnhancedSearch.
	MultiPhrase bool
}

// Engine runs searches against a Searcher.
type Engine struct {
	store  Searcher
	cfg    config.SearchConfig
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used to report skipped variations.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the clock used by temporal expansions.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a search engine.
func NewEngine(store Searcher, cfg config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultOptions returns the configured limit, threshold and multi-phrase
// setting.
func (e *Engine) DefaultOptions() Options {
	return Options{
		Limit:       e.cfg.Limit,
		Threshold:   e.cfg.Threshold,
		MultiPhrase: e.cfg.MultiPhrase,
	}
}

// Search performs a single embed-and-scan lookup for query.
func (e *Engine) Search(ctx context.Context, query string, limit int, threshold float64) ([]storage.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalidInput)
	}
	return e.store.Search(ctx, query, storage.SearchOptions{Limit: limit, Threshold: threshold})
}

// EnhancedSearch searches every query variation concurrently and merges the
// results by chunk id keeping the highest similarity. With MultiPhrase
// disabled it is a single lookup.
func (e *Engine) EnhancedSearch(ctx context.Context, query string, opts Options) ([]storage.SearchResult, error) {
	opts = e.withDefaults(opts)
	if !opts.MultiPhrase {
		return e.Search(ctx, query, opts.Limit, opts.Threshold)
	}

	texts := Variations(query, e.now())
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalidInput)
	}
	variations := make([]Variation, len(texts))
	for i, t := range texts {
		variations[i] = Variation{Text: t, Weight: WeightOriginal}
	}

	sets, err := e.fanOut(ctx, variations, opts.Limit, opts.Threshold)
	if err != nil {
		return nil, err
	}
	merged := MergeMax(sets...)
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// Research runs the broader research query set concurrently, each variation
// with its own threshold, merges with frequency weighting and diversifies the
// result across documents.
func (e *Engine) Research(ctx context.Context, query string, opts Options) ([]storage.SearchResult, error) {
	opts = e.withDefaults(opts)

	variations := ResearchVariations(query, e.now())
	if len(variations) == 0 {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalidInput)
	}

	sets, err := e.fanOut(ctx, variations, opts.Limit*2, opts.Threshold)
	if err != nil {
		return nil, err
	}
	return Diversify(MergeWeighted(sets...), opts.Limit, e.cfg.DiversityRatio), nil
}

// fanOut searches every variation concurrently. A variation that fails or
// times out is logged and skipped. Missing credentials and dimension
// mismatches abort the search, as does every variation failing.
func (e *Engine) fanOut(ctx context.Context, variations []Variation, limit int, threshold float64) ([][]storage.SearchResult, error) {
	sets := make([][]storage.SearchResult, len(variations))
	errs := make([]error, len(variations))

	var g errgroup.Group
	for i, v := range variations {
		g.Go(func() error {
			vctx := ctx
			if e.cfg.VariationTimeout > 0 {
				var cancel context.CancelFunc
				vctx, cancel = context.WithTimeout(ctx, e.cfg.VariationTimeout)
				defer cancel()
			}
			sets[i], errs[i] = e.store.Search(vctx, v.Text, storage.SearchOptions{
				Limit:     limit,
				Threshold: threshold * v.Weight,
			})
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, apperr.ErrMissingCredentials) || errors.Is(err, apperr.ErrDimensionMismatch) {
			return nil, err
		}
		e.logger.Warn("skipping query variation",
			slog.String("variation", variations[i].Text),
			slog.Any("error", err),
		)
		failed++
		if firstErr == nil {
			firstErr = err
		}
		sets[i] = nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(variations) {
		return nil, fmt.Errorf("all %d query variations failed: %w", failed, firstErr)
	}
	return sets, nil
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.Limit
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Threshold <= 0 {
		opts.Threshold = e.cfg.Threshold
	}
	return opts
}
