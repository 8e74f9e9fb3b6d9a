package graph

import (
	"sort"
)

// arena indexes the graph's nodes by integer so traversals run over plain
// adjacency lists instead of string-keyed maps.
type arena struct {
	paths []string
	index map[string]int

	// out holds deduplicated directed edges along resolved links.
	out [][]int

	// undirected holds out and reversed edges, deduplicated.
	undirected [][]int
}

func newArena(nodes map[string]*GraphNode) *arena {
	paths := make([]string, 0, len(nodes))
	for p := range nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	a := &arena{
		paths:      paths,
		index:      make(map[string]int, len(paths)),
		out:        make([][]int, len(paths)),
		undirected: make([][]int, len(paths)),
	}
	for i, p := range paths {
		a.index[p] = i
	}

	outSeen := make(map[[2]int]bool)
	undSeen := make(map[[2]int]bool)
	addUndirected := func(i, j int) {
		if undSeen[[2]int{i, j}] {
			return
		}
		undSeen[[2]int{i, j}] = true
		a.undirected[i] = append(a.undirected[i], j)
	}

	for i, p := range paths {
		for _, link := range nodes[p].Document.Links {
			if link.Broken {
				continue
			}
			j, ok := a.index[link.Target]
			if !ok {
				continue
			}
			if !outSeen[[2]int{i, j}] {
				outSeen[[2]int{i, j}] = true
				a.out[i] = append(a.out[i], j)
			}
			addUndirected(i, j)
			addUndirected(j, i)
		}
	}
	return a
}

// components returns the connected components of the undirected graph.
// Components are discovered in index order and members are sorted.
func (a *arena) components() [][]int {
	visited := make([]bool, len(a.paths))
	var comps [][]int

	for start := range a.paths {
		if visited[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, n)
			for _, m := range a.undirected[n] {
				if !visited[m] {
					visited[m] = true
					stack = append(stack, m)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// computeMetrics assigns clusters, centrality, hubs and orphans.
// The caller must hold the write lock.
func computeMetrics(g *KnowledgeGraph, hubCount int) {
	a := newArena(g.Nodes)

	g.Clusters = nil
	for _, n := range g.Nodes {
		n.ClusterID = NoCluster
	}
	for _, comp := range a.components() {
		if len(comp) < 2 {
			continue
		}
		id := len(g.Clusters)
		members := make([]string, len(comp))
		for k, idx := range comp {
			members[k] = a.paths[idx]
			g.Nodes[a.paths[idx]].ClusterID = id
		}
		g.Clusters = append(g.Clusters, members)
	}

	maxDegree := 0
	for _, n := range g.Nodes {
		if d := n.Degree(); d > maxDegree {
			maxDegree = d
		}
	}
	for _, n := range g.Nodes {
		if maxDegree == 0 {
			n.Centrality = 0
			continue
		}
		n.Centrality = float64(n.Degree()) / float64(maxDegree)
	}

	g.Hubs = selectHubs(g.Nodes, a.paths, hubCount)

	g.Orphans = nil
	for _, p := range a.paths {
		n := g.Nodes[p]
		if n.InDegree == 0 && n.OutDegree == 0 {
			g.Orphans = append(g.Orphans, p)
		}
	}
}

// selectHubs ranks nodes by degree plus centrality, keeps the top n and drops
// those with fewer than two connections. Ties are broken by path.
func selectHubs(nodes map[string]*GraphNode, sortedPaths []string, n int) []string {
	ranked := make([]string, len(sortedPaths))
	copy(ranked, sortedPaths)
	score := func(p string) float64 {
		node := nodes[p]
		return float64(node.Degree()) + node.Centrality
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	hubs := make([]string, 0, len(ranked))
	for _, p := range ranked {
		if nodes[p].Degree() >= 2 {
			hubs = append(hubs, p)
		}
	}
	return hubs
}

// recomputeLinks rebuilds incoming lists, degrees and the broken-link list
// from the current document set. The caller must hold the write lock.
func recomputeLinks(g *KnowledgeGraph) {
	for _, n := range g.Nodes {
		n.Incoming = nil
	}
	g.BrokenLinks = nil

	for _, p := range g.sortedPaths() {
		doc := g.Nodes[p].Document
		for _, link := range doc.Links {
			target, ok := g.Nodes[link.Target]
			if link.Broken || link.Target == "" || !ok {
				if !link.Broken {
					link.Broken = true
				}
				g.BrokenLinks = append(g.BrokenLinks, link)
				continue
			}
			target.Incoming = append(target.Incoming, link)
		}
	}

	for _, n := range g.Nodes {
		n.InDegree = len(n.Incoming)
		n.OutDegree = len(n.Document.Links)
	}
}
