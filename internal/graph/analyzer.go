package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Relation describes why a document is related to another.
type Relation string

const (
	RelationDirect  Relation = "direct"
	RelationCluster Relation = "cluster"
	RelationShared  Relation = "similar"
	RelationTags    Relation = "tags"
)

// Related is one entry of a related-notes listing.
type Related struct {
	Path     string
	Relation Relation
	Reason   string
	Score    float64
}

// Stats summarizes the shape of the graph.
type Stats struct {
	Nodes       int     `json:"total_nodes"`
	Edges       int     `json:"total_edges"`
	AvgDegree   float64 `json:"avg_degree"`
	Density     float64 `json:"density"`
	Clusters    int     `json:"num_clusters"`
	Hubs        int     `json:"num_hubs"`
	Orphans     int     `json:"num_orphans"`
	BrokenLinks int     `json:"num_broken_links"`
}

// Analyzer answers structural questions about a KnowledgeGraph.
type Analyzer struct {
	g *KnowledgeGraph
}

// NewAnalyzer creates an Analyzer over g.
func NewAnalyzer(g *KnowledgeGraph) *Analyzer {
	return &Analyzer{g: g}
}

// Stats returns aggregate graph statistics. Edges counts every declared link.
func (a *Analyzer) Stats() Stats {
	a.g.mu.RLock()
	defer a.g.mu.RUnlock()

	s := Stats{
		Nodes:       len(a.g.Nodes),
		Clusters:    len(a.g.Clusters),
		Hubs:        len(a.g.Hubs),
		Orphans:     len(a.g.Orphans),
		BrokenLinks: len(a.g.BrokenLinks),
	}
	for _, n := range a.g.Nodes {
		s.Edges += len(n.Document.Links)
	}
	if s.Nodes > 0 {
		s.AvgDegree = float64(s.Edges) / float64(s.Nodes)
	}
	if s.Nodes > 1 {
		s.Density = float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}
	return s
}

// ShortestPaths returns up to limit shortest directed paths from src to dst,
// following resolved links. Paths are ordered lexicographically.
func (a *Analyzer) ShortestPaths(src, dst string, limit int) [][]string {
	a.g.mu.RLock()
	defer a.g.mu.RUnlock()

	ar := newArena(a.g.Nodes)
	from, ok := ar.index[src]
	if !ok {
		return nil
	}
	to, ok := ar.index[dst]
	if !ok {
		return nil
	}
	if from == to {
		return [][]string{{src}}
	}

	dist := make([]int, len(ar.paths))
	for i := range dist {
		dist[i] = -1
	}
	preds := make([][]int, len(ar.paths))
	dist[from] = 0
	queue := []int{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == to {
			continue
		}
		for _, m := range ar.out[n] {
			switch {
			case dist[m] == -1:
				dist[m] = dist[n] + 1
				preds[m] = append(preds[m], n)
				queue = append(queue, m)
			case dist[m] == dist[n]+1:
				preds[m] = append(preds[m], n)
			}
		}
	}
	if dist[to] == -1 {
		return nil
	}

	var paths [][]string
	var walk func(n int, suffix []string)
	walk = func(n int, suffix []string) {
		if limit > 0 && len(paths) >= limit {
			return
		}
		suffix = append([]string{ar.paths[n]}, suffix...)
		if n == from {
			paths = append(paths, suffix)
			return
		}
		ps := append([]int(nil), preds[n]...)
		sort.Ints(ps)
		for _, p := range ps {
			walk(p, suffix)
		}
	}
	walk(to, nil)

	sort.Slice(paths, func(i, j int) bool {
		return strings.Join(paths[i], "\x00") < strings.Join(paths[j], "\x00")
	})
	return paths
}

// Bridges returns the articulation points of the undirected link graph:
// notes whose removal splits their component. Graphs with fewer than three
// notes have none. Paths are sorted.
func (a *Analyzer) Bridges() []string {
	a.g.mu.RLock()
	defer a.g.mu.RUnlock()

	if len(a.g.Nodes) < 3 {
		return nil
	}

	ar := newArena(a.g.Nodes)
	disc := make([]int, len(ar.paths))
	low := make([]int, len(ar.paths))
	cut := make([]bool, len(ar.paths))
	clock := 0

	var visit func(u, parent int)
	visit = func(u, parent int) {
		clock++
		disc[u], low[u] = clock, clock
		children := 0
		for _, v := range ar.undirected[u] {
			switch {
			case v == u:
			case disc[v] == 0:
				children++
				visit(v, u)
				low[u] = min(low[u], low[v])
				if parent != -1 && low[v] >= disc[u] {
					cut[u] = true
				}
			case v != parent:
				low[u] = min(low[u], disc[v])
			}
		}
		if parent == -1 && children > 1 {
			cut[u] = true
		}
	}
	for u := range ar.paths {
		if disc[u] == 0 {
			visit(u, -1)
		}
	}

	var bridges []string
	for i, isCut := range cut {
		if isCut {
			bridges = append(bridges, ar.paths[i])
		}
	}
	return bridges
}

// RelatedNotes ranks documents related to path through direct links,
// shared clusters, overlapping link targets and shared tags.
func (a *Analyzer) RelatedNotes(path string, limit int) []Related {
	a.g.mu.RLock()
	defer a.g.mu.RUnlock()

	node, ok := a.g.Nodes[path]
	if !ok {
		return nil
	}

	var candidates []Related
	candidates = append(candidates, a.direct(node)...)
	candidates = append(candidates, a.clusterMembers(node)...)
	candidates = append(candidates, a.structurallySimilar(node)...)
	candidates = append(candidates, a.tagSimilar(node)...)

	seen := map[string]bool{path: true}
	related := make([]Related, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		other, ok := a.g.Nodes[c.Path]
		if !ok {
			continue
		}
		for _, h := range a.g.Hubs {
			if h == c.Path {
				c.Score *= 1.3
				break
			}
		}
		if other.Degree() > 5 {
			c.Score *= 1.2
		}
		if filepath.Dir(c.Path) == node.Document.Dir() {
			c.Score *= 1.1
		}
		related = append(related, c)
	}

	sort.SliceStable(related, func(i, j int) bool {
		if related[i].Score != related[j].Score {
			return related[i].Score > related[j].Score
		}
		return related[i].Path < related[j].Path
	})
	if limit > 0 && len(related) > limit {
		related = related[:limit]
	}
	return related
}

func (a *Analyzer) direct(node *GraphNode) []Related {
	var out []Related
	for _, link := range node.Document.Links {
		if link.Broken {
			continue
		}
		if _, ok := a.g.Nodes[link.Target]; ok {
			out = append(out, Related{Path: link.Target, Relation: RelationDirect, Reason: "this links to", Score: 5.0})
		}
	}
	for _, link := range node.Incoming {
		out = append(out, Related{Path: link.Source, Relation: RelationDirect, Reason: "links to this", Score: 5.0})
	}
	return out
}

func (a *Analyzer) clusterMembers(node *GraphNode) []Related {
	if node.ClusterID == NoCluster || node.ClusterID >= len(a.g.Clusters) {
		return nil
	}
	var out []Related
	for _, member := range a.g.Clusters[node.ClusterID] {
		if member == node.Path() {
			continue
		}
		out = append(out, Related{
			Path:     member,
			Relation: RelationCluster,
			Reason:   fmt.Sprintf("same cluster #%d", node.ClusterID),
			Score:    3.0,
		})
	}
	return out
}

func linkTargets(doc *Document) map[string]bool {
	targets := make(map[string]bool)
	for _, link := range doc.Links {
		if !link.Broken && link.Target != "" {
			targets[link.Target] = true
		}
	}
	return targets
}

func (a *Analyzer) structurallySimilar(node *GraphNode) []Related {
	mine := linkTargets(node.Document)
	if len(mine) == 0 {
		return nil
	}

	var out []Related
	for _, p := range a.g.sortedPaths() {
		if p == node.Path() {
			continue
		}
		theirs := linkTargets(a.g.Nodes[p].Document)
		if len(theirs) == 0 {
			continue
		}
		shared := 0
		for t := range mine {
			if theirs[t] {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		union := len(mine) + len(theirs) - shared
		similarity := float64(shared) / float64(union)
		if similarity < 0.2 {
			continue
		}
		out = append(out, Related{
			Path:     p,
			Relation: RelationShared,
			Reason:   fmt.Sprintf("%d shared links", shared),
			Score:    similarity * 2.0,
		})
	}
	return out
}

func (a *Analyzer) tagSimilar(node *GraphNode) []Related {
	if len(node.Document.Tags) == 0 {
		return nil
	}

	var out []Related
	for _, p := range a.g.sortedPaths() {
		if p == node.Path() {
			continue
		}
		other := a.g.Nodes[p].Document
		var shared []string
		for _, t := range node.Document.Tags {
			if other.HasTag(t) {
				shared = append(shared, t)
			}
		}
		if len(shared) == 0 {
			continue
		}
		out = append(out, Related{
			Path:     p,
			Relation: RelationTags,
			Reason:   "shared tags: " + strings.Join(shared, ", "),
			Score:    float64(len(shared)) * 1.5,
		})
	}
	return out
}
