// Package graph provides the document link graph for notegraph.
//
// It defines the normalized Document record produced by the format
// extractors, the links between documents, the chunks a document is split
// into, and the KnowledgeGraph assembled from them.
package graph

import (
	"path/filepath"
	"time"
)

// LinkKind distinguishes the syntax a link was declared with.
type LinkKind string

const (
	LinkWiki   LinkKind = "wiki"
	LinkInline LinkKind = "inline"
)

// ChunkKind classifies a chunk by where it came from in the document.
type ChunkKind string

const (
	ChunkTitle     ChunkKind = "title"
	ChunkHeading   ChunkKind = "heading_section"
	ChunkParagraph ChunkKind = "paragraph"
)

// NoCluster marks a node that belongs to no cluster of two or more members.
const NoCluster = -1

// Heading is a heading line inside a document.
type Heading struct {
	// Level is 1-6.
	Level int `json:"level"`

	Text string `json:"text"`

	// Line is the 1-based line number in the document body.
	Line int `json:"line"`

	// Slug is the normalized anchor form of Text.
	Slug string `json:"slug"`
}

// Link is a reference from one document to another.
type Link struct {
	// Source is the absolute path of the declaring document.
	Source string `json:"source"`

	// Target is the absolute path of the resolved document, empty when unresolved.
	Target string `json:"target,omitempty"`

	Kind LinkKind `json:"kind"`

	// Text is the raw link reference as written.
	Text string `json:"text"`

	// Context is the surrounding text window.
	Context string `json:"context,omitempty"`

	// Line is the 1-based line number of the link.
	Line int `json:"line"`

	// Broken is set when the target could not be resolved or does not exist.
	Broken bool `json:"broken"`
}

// Chunk is a retrieval-sized slice of a document.
type Chunk struct {
	// ID is derived from the document path and the heading slug or paragraph index.
	ID string `json:"id"`

	// DocPath is the absolute path of the owning document.
	DocPath string `json:"doc_path"`

	Text      string `json:"text"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`

	// HeadingPath lists enclosing headings from outermost to innermost.
	HeadingPath []string `json:"heading_path,omitempty"`

	Kind ChunkKind `json:"kind"`
}

// Document is one ingested source file in normalized form.
type Document struct {
	// Path is the absolute file path.
	Path string `json:"path"`

	// RelPath is the path relative to the knowledge-base root.
	RelPath string `json:"rel_path"`

	Title    string         `json:"title"`
	Headings []Heading      `json:"headings,omitempty"`
	Links    []Link         `json:"links,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Modified time.Time      `json:"modified"`

	// WordCount is an approximate word count of the body.
	WordCount int `json:"word_count"`

	// Body is the document text with any frontmatter removed. It is not
	// persisted with the graph.
	Body string `json:"-"`

	// Chunks is filled in once the document has been chunked.
	Chunks []Chunk `json:"-"`
}

// Dir returns the directory containing the document.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// HasTag reports whether the document carries the given tag.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GraphNode wraps a Document with its computed connectivity.
type GraphNode struct {
	Document *Document `json:"document"`

	// Incoming holds resolved, non-broken links pointing at this document.
	Incoming []Link `json:"incoming,omitempty"`

	// InDegree counts resolved, non-broken incoming links.
	InDegree int `json:"in_degree"`

	// OutDegree counts every declared outgoing link, broken ones included.
	OutDegree int `json:"out_degree"`

	// ClusterID indexes KnowledgeGraph.Clusters, or is NoCluster.
	ClusterID int `json:"cluster_id"`

	// Centrality is normalized degree centrality in [0,1].
	Centrality float64 `json:"centrality"`
}

// Path returns the absolute path of the wrapped document.
func (n *GraphNode) Path() string {
	return n.Document.Path
}

// Degree returns InDegree + OutDegree.
func (n *GraphNode) Degree() int {
	return n.InDegree + n.OutDegree
}
