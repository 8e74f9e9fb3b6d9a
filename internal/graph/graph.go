package graph

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// KnowledgeGraph is the directed link graph of a knowledge base.
//
// Nodes are keyed by absolute document path. Clusters, hubs, orphans and
// centrality are computed by a full build; an incremental update refreshes
// only links and degrees and sets MetricsStale until the next full build.
type KnowledgeGraph struct {
	mu sync.RWMutex

	// Root is the knowledge-base root directory.
	Root string `json:"root"`

	Nodes map[string]*GraphNode `json:"nodes"`

	// Clusters holds connected components of two or more members, each sorted.
	Clusters [][]string `json:"clusters"`

	// Hubs lists the most connected documents, best first.
	Hubs []string `json:"hubs"`

	Orphans     []string `json:"orphans"`
	BrokenLinks []Link   `json:"broken_links"`

	// BuiltAt is the time of the last full build.
	BuiltAt time.Time `json:"built_at"`

	// UpdatedAt is the time of the last full build or incremental update.
	UpdatedAt time.Time `json:"updated_at"`

	// MetricsStale is set by an incremental update: clusters, hubs, orphans
	// and centrality still reflect the last full build.
	MetricsStale bool `json:"metrics_stale"`
}

// NewKnowledgeGraph creates an empty graph for the given root.
func NewKnowledgeGraph(root string) *KnowledgeGraph {
	return &KnowledgeGraph{
		Root:  root,
		Nodes: make(map[string]*GraphNode),
	}
}

// NodeCount returns the number of documents in the graph.
func (g *KnowledgeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.Nodes)
}

// Node returns the node for path, or nil if it does not exist.
func (g *KnowledgeGraph) Node(path string) *GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Nodes[path]
}

// Paths returns every document path in lexicographic order.
func (g *KnowledgeGraph) Paths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedPaths()
}

// Documents returns every document ordered by path.
func (g *KnowledgeGraph) Documents() []*Document {
	g.mu.RLock()
	defer g.mu.RUnlock()

	docs := make([]*Document, 0, len(g.Nodes))
	for _, p := range g.sortedPaths() {
		docs = append(docs, g.Nodes[p].Document)
	}
	return docs
}

// IsHub reports whether path is among the hub nodes.
func (g *KnowledgeGraph) IsHub(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, h := range g.Hubs {
		if h == path {
			return true
		}
	}
	return false
}

// ByRelPath finds a node by its root-relative path.
func (g *KnowledgeGraph) ByRelPath(rel string) *GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.Nodes {
		if n.Document.RelPath == rel {
			return n
		}
	}
	return nil
}

// Find resolves a user-supplied note reference: an absolute path, a
// root-relative path with or without extension, or a case-insensitive title
// or file stem. It returns nil when nothing matches.
func (g *KnowledgeGraph) Find(ref string) *GraphNode {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if n, ok := g.Nodes[filepath.Clean(ref)]; ok {
		return n
	}
	rel := strings.TrimPrefix(filepath.ToSlash(ref), "./")
	paths := g.sortedPaths()
	for _, p := range paths {
		doc := g.Nodes[p].Document
		if doc.RelPath == rel || strings.TrimSuffix(doc.RelPath, path.Ext(doc.RelPath)) == rel {
			return g.Nodes[p]
		}
	}
	for _, p := range paths {
		doc := g.Nodes[p].Document
		stem := strings.TrimSuffix(path.Base(doc.RelPath), path.Ext(doc.RelPath))
		if strings.EqualFold(stem, rel) || strings.EqualFold(doc.Title, ref) {
			return g.Nodes[p]
		}
	}
	return nil
}

func (g *KnowledgeGraph) sortedPaths() []string {
	paths := make([]string, 0, len(g.Nodes))
	for p := range g.Nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
