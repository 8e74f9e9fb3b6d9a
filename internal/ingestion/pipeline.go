package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/cache"
	"github.com/Benny93/notegraph/internal/chunking"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/parsers"
	"github.com/Benny93/notegraph/internal/resolver"
	"github.com/Benny93/notegraph/internal/storage"
)

// DefaultWorkers is the number of documents embedded concurrently.
const DefaultWorkers = 4

// BuildResult summarizes a graph build.
type BuildResult struct {
	Graph     *graph.KnowledgeGraph
	Files     int
	FromCache bool
	Duration  time.Duration
}

// IndexResult summarizes a vector-store indexing run.
type IndexResult struct {
	Indexed  int
	Skipped  int
	Removed  int
	Chunks   int
	Duration time.Duration
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Pipeline turns the files of a knowledge base into a KnowledgeGraph and
// keeps the vector store in step with it.
type Pipeline struct {
	cfg      *config.Config
	registry *parsers.Registry
	resolver *resolver.Resolver
	builder  *graph.Builder
	chunker  *chunking.Chunker
	cache    *cache.Manager
	store    *storage.VectorStore
	logger   *slog.Logger
	progress ProgressCallback
	workers  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithProgress sets a callback reporting phase progress.
func WithProgress(cb ProgressCallback) Option {
	return func(p *Pipeline) {
		p.progress = cb
	}
}

// WithStore attaches the vector store kept in step by Index and Apply.
func WithStore(s *storage.VectorStore) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithWorkers sets how many documents are embedded concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline creates a Pipeline for cfg.Root.
func NewPipeline(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		logger:  slog.Default(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.registry = parsers.NewRegistry(cfg.Root)
	p.resolver = resolver.New(cfg.Root, nil)
	p.builder = graph.NewBuilder(cfg.Root, p.registry, p.resolver,
		graph.WithHubCount(cfg.Graph.HubCount),
		graph.WithLogger(p.logger),
	)
	p.chunker = chunking.New(cfg.Chunking)
	p.cache = cache.NewManager(cfg, cache.WithLogger(p.logger))
	return p
}

// Cache returns the pipeline's cache manager.
func (p *Pipeline) Cache() *cache.Manager {
	return p.cache
}

// Store returns the attached vector store, or nil.
func (p *Pipeline) Store() *storage.VectorStore {
	return p.store
}

// Supports reports whether path has a registered extractor.
func (p *Pipeline) Supports(path string) bool {
	return p.registry.Supports(path)
}

// Files walks the knowledge base and returns every supported document file.
func (p *Pipeline) Files() ([]FileEntry, error) {
	entries, err := Walk(p.cfg.Root, p.registry.Supports, p.logger)
	if err != nil {
		return nil, fmt.Errorf("walking knowledge base: %w", err)
	}
	return entries, nil
}

// BuildGraph returns the knowledge graph, loading it from the cache when the
// cached snapshot matches the files on disk and rebuilding it otherwise. A
// cache that cannot be written is logged and ignored.
func (p *Pipeline) BuildGraph(ctx context.Context, force bool) (*BuildResult, error) {
	start := time.Now()

	p.report("Walking files", 0.0)
	entries, err := p.Files()
	if err != nil {
		return nil, err
	}
	paths := Paths(entries)
	snap := snapshot(entries)
	p.report("Walking files", 1.0)

	if !force {
		g, err := p.cache.Load(snap)
		if err == nil {
			p.resolver.Index(paths)
			if g.MetricsStale {
				p.builder.Recompute(g)
				p.saveCache(g, snap)
			}
			p.logger.Info("graph loaded from cache", slog.Int("documents", g.NodeCount()))
			return &BuildResult{Graph: g, Files: len(entries), FromCache: true, Duration: time.Since(start)}, nil
		}
		p.logger.Debug("rebuilding graph", slog.Any("reason", err))
	}

	p.report("Building graph", 0.0)
	g, err := p.builder.Build(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	p.report("Building graph", 1.0)

	p.saveCache(g, snap)
	return &BuildResult{Graph: g, Files: len(entries), Duration: time.Since(start)}, nil
}

// Index brings the vector store up to date with g: documents modified since
// they were embedded are re-chunked and re-embedded wholesale, and records of
// documents no longer in g are pruned. With force every document is
// re-embedded.
func (p *Pipeline) Index(ctx context.Context, g *graph.KnowledgeGraph, force bool) (*IndexResult, error) {
	if p.store == nil {
		return nil, fmt.Errorf("indexing without a vector store: %w", apperr.ErrInvalidInput)
	}
	start := time.Now()
	docs := g.Documents()
	res := &IndexResult{}

	var (
		mu   sync.Mutex
		done int
	)
	p.report("Embedding documents", 0.0)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for _, doc := range docs {
		if !force && !p.store.NeedsReindex(doc) {
			res.Skipped++
			continue
		}
		eg.Go(func() error {
			n, ok, err := p.indexDocument(egCtx, doc)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				res.Indexed++
				res.Chunks += n
			}
			done++
			p.report("Embedding documents", float64(done)/float64(len(docs)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	keep := make([]string, len(docs))
	for i, doc := range docs {
		keep[i] = doc.RelPath
	}
	removed, err := p.store.Prune(ctx, keep)
	if err != nil {
		return nil, err
	}
	res.Removed = removed

	if err := p.store.Save(ctx); err != nil {
		return nil, err
	}
	p.report("Embedding documents", 1.0)

	res.Duration = time.Since(start)
	p.logger.Info("vector store indexed",
		slog.Int("indexed", res.Indexed),
		slog.Int("skipped", res.Skipped),
		slog.Int("removed", res.Removed),
		slog.Int("chunks", res.Chunks),
	)
	return res, nil
}

// Apply updates g in place for changed and removed absolute paths, refreshes
// the cache and re-embeds the changed documents that are stale in the vector
// store. Graph metrics other than links and degrees stay stale until
// Recompute or the next full build.
func (p *Pipeline) Apply(ctx context.Context, g *graph.KnowledgeGraph, changed, removed []string) (*IndexResult, error) {
	start := time.Now()

	supported := make([]string, 0, len(changed))
	for _, path := range changed {
		if p.registry.Supports(path) {
			supported = append(supported, filepath.Clean(path))
		}
	}
	gone := make([]string, 0, len(removed))
	for _, path := range removed {
		if p.registry.Supports(path) {
			gone = append(gone, filepath.Clean(path))
		}
	}

	if err := p.builder.Update(ctx, g, supported, gone); err != nil {
		return nil, fmt.Errorf("updating graph: %w", err)
	}
	p.refreshCache(g)

	res := &IndexResult{}
	if p.store == nil {
		res.Duration = time.Since(start)
		return res, nil
	}

	for _, path := range gone {
		if err := p.store.RemoveDocument(ctx, p.relPath(path)); err != nil {
			return nil, err
		}
		res.Removed++
	}
	for _, path := range supported {
		node := g.Node(path)
		if node == nil || !p.store.NeedsReindex(node.Document) {
			res.Skipped++
			continue
		}
		n, ok, err := p.indexDocument(ctx, node.Document)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Indexed++
			res.Chunks += n
		}
	}
	if err := p.store.Save(ctx); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

// Recompute refreshes clusters, hubs, orphans and centrality after a series
// of incremental updates and rewrites the cache.
func (p *Pipeline) Recompute(g *graph.KnowledgeGraph) {
	p.builder.Recompute(g)
	p.refreshCache(g)
}

// indexDocument chunks and embeds one document. Documents restored from the
// cache carry no body and are re-read first; a document that can no longer be
// read is logged and skipped.
func (p *Pipeline) indexDocument(ctx context.Context, doc *graph.Document) (int, bool, error) {
	src := doc
	if src.Body == "" {
		fresh, err := p.registry.Extract(doc.Path)
		if err != nil {
			p.logger.Warn("skipping document",
				slog.String("path", doc.Path),
				slog.Any("error", err),
			)
			return 0, false, nil
		}
		src = fresh
	}

	chunks := p.chunker.Chunk(src)
	if err := p.store.ReplaceDocument(ctx, src, chunks); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("indexing %s: %w", doc.RelPath, err)
	}
	return len(chunks), true, nil
}

func (p *Pipeline) refreshCache(g *graph.KnowledgeGraph) {
	snap, err := cache.Scan(p.cfg.Root, g.Paths())
	if err != nil {
		p.logger.Warn("scanning files for cache", slog.Any("error", err))
		return
	}
	p.saveCache(g, snap)
}

func (p *Pipeline) saveCache(g *graph.KnowledgeGraph, snap cache.Snapshot) {
	if err := p.cache.Save(g, snap, Overview(g)); err != nil {
		p.logger.Warn("saving graph cache", slog.Any("error", err))
	}
}

func (p *Pipeline) relPath(path string) string {
	rel, err := filepath.Rel(p.cfg.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (p *Pipeline) report(phase string, progress float64) {
	if p.progress != nil {
		p.progress(phase, progress)
	}
}

// snapshot converts walked entries into a cache snapshot.
func snapshot(entries []FileEntry) cache.Snapshot {
	snap := make(cache.Snapshot, len(entries))
	for _, e := range entries {
		snap[e.RelPath] = e.Modified
	}
	return snap
}
