package graph

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// DefaultHubCount is the number of hub candidates considered.
const DefaultHubCount = 10

// Extractor turns a file into a Document.
type Extractor interface {
	Extract(path string) (*Document, error)
}

// LinkResolver resolves raw links to document paths and keeps its path
// index in step with the knowledge base.
type LinkResolver interface {
	Index(paths []string)
	Add(paths []string)
	Remove(paths []string)
	Resolve(link *Link)
}

// Builder assembles a KnowledgeGraph from documents on disk.
type Builder struct {
	root     string
	hubCount int
	extract  Extractor
	resolver LinkResolver
	logger   *slog.Logger
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithHubCount sets how many top-ranked nodes are considered for hubs.
func WithHubCount(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.hubCount = n
		}
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder for the knowledge base at root.
func NewBuilder(root string, extract Extractor, resolver LinkResolver, opts ...BuilderOption) *Builder {
	b := &Builder{
		root:     root,
		hubCount: DefaultHubCount,
		extract:  extract,
		resolver: resolver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build parses every path, resolves links and computes all graph metrics.
// A document that fails to parse is logged and skipped.
func (b *Builder) Build(ctx context.Context, paths []string) (*KnowledgeGraph, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	b.resolver.Index(sorted)

	g := NewKnowledgeGraph(b.root)
	for _, p := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := b.parse(p)
		if !ok {
			continue
		}
		g.Nodes[doc.Path] = &GraphNode{Document: doc, ClusterID: NoCluster}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	recomputeLinks(g)
	computeMetrics(g, b.hubCount)
	g.BuiltAt = b.now()
	g.UpdatedAt = g.BuiltAt
	g.MetricsStale = false

	b.logger.Info("graph built",
		slog.Int("documents", len(g.Nodes)),
		slog.Int("clusters", len(g.Clusters)),
		slog.Int("broken_links", len(g.BrokenLinks)),
	)
	return g, nil
}

// Update applies changed and removed paths to g in place. Only the changed
// documents are reparsed; incoming links and degrees are rebuilt for the
// whole graph. Clusters, hubs, orphans and centrality are left as they were
// and g.MetricsStale is set.
func (b *Builder) Update(ctx context.Context, g *KnowledgeGraph, changed, removed []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(removed) > 0 {
		for _, p := range removed {
			delete(g.Nodes, p)
		}
		b.resolver.Remove(removed)
	}
	if len(changed) > 0 {
		b.resolver.Add(changed)
	}

	for _, p := range changed {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, ok := b.parse(p)
		if !ok {
			delete(g.Nodes, p)
			continue
		}
		clusterID, centrality := NoCluster, 0.0
		if old, exists := g.Nodes[doc.Path]; exists {
			clusterID, centrality = old.ClusterID, old.Centrality
		}
		g.Nodes[doc.Path] = &GraphNode{Document: doc, ClusterID: clusterID, Centrality: centrality}
	}

	recomputeLinks(g)
	g.UpdatedAt = b.now()
	g.MetricsStale = true

	b.logger.Info("graph updated",
		slog.Int("changed", len(changed)),
		slog.Int("removed", len(removed)),
	)
	return nil
}

// Recompute refreshes clusters, hubs, orphans and centrality and clears
// MetricsStale.
func (b *Builder) Recompute(g *KnowledgeGraph) {
	g.mu.Lock()
	defer g.mu.Unlock()

	computeMetrics(g, b.hubCount)
	g.MetricsStale = false
}

func (b *Builder) parse(path string) (*Document, bool) {
	doc, err := b.extract.Extract(path)
	if err != nil {
		b.logger.Warn("skipping document",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	for i := range doc.Links {
		b.resolver.Resolve(&doc.Links[i])
	}
	return doc, true
}
