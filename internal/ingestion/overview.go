package ingestion

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Benny93/notegraph/internal/graph"
)

const (
	// overviewListSize caps the hub, orphan and bridge lists of an overview.
	overviewListSize = 10

	// listingSampleSize is how many notes a listing shows per subdirectory.
	listingSampleSize = 3

	// noteLinkLimit caps each link list of a note report.
	noteLinkLimit = 10

	// noteContextRunes truncates link context in a note report.
	noteContextRunes = 50
)

// Overview renders a plain-text summary of g: totals, hubs, clusters and
// orphans, with documents named by relative path.
func Overview(g *graph.KnowledgeGraph) string {
	stats := graph.NewAnalyzer(g).Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Knowledge base: %s\n", g.Root)
	fmt.Fprintf(&b, "Documents: %d\n", stats.Nodes)
	fmt.Fprintf(&b, "Links: %d (%d broken)\n", stats.Edges, stats.BrokenLinks)
	fmt.Fprintf(&b, "Average degree: %.2f\n", stats.AvgDegree)
	fmt.Fprintf(&b, "Clusters: %d\n", stats.Clusters)
	if g.MetricsStale {
		b.WriteString("Metrics: stale since last incremental update\n")
	}

	if hubs := g.Hubs; len(hubs) > 0 {
		b.WriteString("\nHubs:\n")
		for _, p := range hubs[:min(len(hubs), overviewListSize)] {
			n := g.Node(p)
			if n == nil {
				continue
			}
			fmt.Fprintf(&b, "  %s (in %d, out %d)\n", n.Document.RelPath, n.InDegree, n.OutDegree)
		}
	}

	if orphans := g.Orphans; len(orphans) > 0 {
		fmt.Fprintf(&b, "\nOrphans (%d):\n", len(orphans))
		for _, p := range orphans[:min(len(orphans), overviewListSize)] {
			if n := g.Node(p); n != nil {
				fmt.Fprintf(&b, "  %s\n", n.Document.RelPath)
			}
		}
	}

	if bridges := graph.NewAnalyzer(g).Bridges(); len(bridges) > 0 {
		fmt.Fprintf(&b, "\nBridges (%d):\n", len(bridges))
		for _, p := range bridges[:min(len(bridges), overviewListSize)] {
			if n := g.Node(p); n != nil {
				fmt.Fprintf(&b, "  %s\n", n.Document.RelPath)
			}
		}
	}
	return b.String()
}

// Listing renders a directory-style tree of the notes under dir, a
// slash-separated path relative to the root. Notes directly in dir are
// listed with their link counts; subdirectories show a note count and the
// first few notes by title.
func Listing(g *graph.KnowledgeGraph, dir string) string {
	dir = strings.Trim(path.Clean("/"+dir), "/")

	files := make(map[string]*graph.GraphNode)
	subdirs := make(map[string][]*graph.GraphNode)
	for _, p := range g.Paths() {
		n := g.Node(p)
		if n == nil {
			continue
		}
		rel := n.Document.RelPath
		if dir != "" {
			if !strings.HasPrefix(rel, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(rel, dir+"/")
		}
		if sub, _, nested := strings.Cut(rel, "/"); nested {
			subdirs[sub] = append(subdirs[sub], n)
			continue
		}
		files[rel] = n
	}

	var b strings.Builder
	fmt.Fprintf(&b, "/%s\n", dir)

	names := make([]string, 0, len(subdirs))
	for name := range subdirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nodes := subdirs[name]
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].Document.Title != nodes[j].Document.Title {
				return nodes[i].Document.Title < nodes[j].Document.Title
			}
			return nodes[i].Document.RelPath < nodes[j].Document.RelPath
		})
		fmt.Fprintf(&b, "├── %s/ (%d notes)\n", name, len(nodes))
		for _, n := range nodes[:min(len(nodes), listingSampleSize)] {
			fmt.Fprintf(&b, "│   ├── %s %s\n", path.Base(n.Document.RelPath), linkCounts(n))
		}
		if len(nodes) > listingSampleSize {
			fmt.Fprintf(&b, "│   └── ... and %d more\n", len(nodes)-listingSampleSize)
		}
	}

	fileNames := make([]string, 0, len(files))
	for name := range files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)
	for _, name := range fileNames {
		fmt.Fprintf(&b, "└── %s %s\n", name, linkCounts(files[name]))
	}

	if len(names) == 0 && len(fileNames) == 0 {
		b.WriteString("(empty)\n")
	}
	return b.String()
}

func linkCounts(n *graph.GraphNode) string {
	return fmt.Sprintf("[→%d ←%d]", n.OutDegree, n.InDegree)
}

// NoteReport renders one note with its metadata and its incoming and
// resolved outgoing links. The file content is read from disk and appended
// when withContent is set.
func NoteReport(g *graph.KnowledgeGraph, n *graph.GraphNode, withContent bool) string {
	doc := n.Document

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", doc.RelPath)
	fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	fmt.Fprintf(&b, "Location: %s\n", doc.Path)
	if !doc.Modified.IsZero() {
		fmt.Fprintf(&b, "Modified: %s\n", doc.Modified.Format("2006-01-02 15:04:05"))
	}
	if len(doc.Tags) > 0 {
		tags := append([]string(nil), doc.Tags...)
		sort.Strings(tags)
		for i, t := range tags {
			tags[i] = "#" + t
		}
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tags, " "))
	}
	fmt.Fprintf(&b, "Words: %d\n", doc.WordCount)
	if g.IsHub(doc.Path) {
		b.WriteString("Hub: yes\n")
	}

	if len(n.Incoming) > 0 {
		fmt.Fprintf(&b, "\nINCOMING LINKS (%d):\n", len(n.Incoming))
		for _, link := range n.Incoming[:min(len(n.Incoming), noteLinkLimit)] {
			fmt.Fprintf(&b, "← %q (%q)\n", relPathOf(g, link.Source), truncateRunes(link.Context, noteContextRunes))
		}
		if len(n.Incoming) > noteLinkLimit {
			fmt.Fprintf(&b, "   ... and %d more\n", len(n.Incoming)-noteLinkLimit)
		}
	}

	var outgoing []graph.Link
	for _, link := range doc.Links {
		if !link.Broken && link.Target != "" {
			outgoing = append(outgoing, link)
		}
	}
	if len(outgoing) > 0 {
		fmt.Fprintf(&b, "\nOUTGOING LINKS (%d):\n", len(outgoing))
		for _, link := range outgoing[:min(len(outgoing), noteLinkLimit)] {
			fmt.Fprintf(&b, "→ %q (%q)\n", relPathOf(g, link.Target), truncateRunes(link.Context, noteContextRunes))
		}
		if len(outgoing) > noteLinkLimit {
			fmt.Fprintf(&b, "   ... and %d more\n", len(outgoing)-noteLinkLimit)
		}
	}

	if withContent {
		content := "[Content could not be read]"
		if data, err := os.ReadFile(doc.Path); err == nil && utf8.Valid(data) {
			content = string(data)
		}
		b.WriteString("\nCONTENT:\n")
		b.WriteString(strings.Repeat("-", 40))
		b.WriteString("\n")
		b.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func relPathOf(g *graph.KnowledgeGraph, p string) string {
	if n := g.Node(p); n != nil {
		return n.Document.RelPath
	}
	return p
}

func truncateRunes(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
