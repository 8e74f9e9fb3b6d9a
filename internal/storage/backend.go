// Package storage provides the vector store and its persistence backends.
//
// The VectorStore keeps every chunk embedding in memory and answers queries
// with a brute-force cosine scan. A Backend persists the records, either as a
// single versioned JSON document, as per-document partitions in BadgerDB, or
// not at all.
package storage

import (
	"context"
	"time"

	"github.com/Benny93/notegraph/internal/graph"
)

// SchemaVersion is the version written with persisted vector records.
// Stores carrying another version are treated as absent.
const SchemaVersion = 1

// VectorRecord is one persisted chunk embedding.
type VectorRecord struct {
	// ID is the chunk id.
	ID string `json:"id" msgpack:"id"`

	// DocID is the owning document's path relative to the knowledge-base root.
	DocID string `json:"doc_id" msgpack:"doc_id"`

	// Title is the owning document's title.
	Title string `json:"title,omitempty" msgpack:"title,omitempty"`

	// Text is the chunk text.
	Text string `json:"text" msgpack:"text"`

	// Embedding is the chunk vector.
	Embedding []float32 `json:"embedding" msgpack:"embedding"`

	Kind        graph.ChunkKind `json:"kind" msgpack:"kind"`
	HeadingPath []string        `json:"heading_path,omitempty" msgpack:"heading_path,omitempty"`
	StartLine   int             `json:"start_line" msgpack:"start_line"`
	EndLine     int             `json:"end_line" msgpack:"end_line"`

	// Modified is the owning document's modification time when it was embedded.
	Modified time.Time `json:"modified" msgpack:"modified"`
}

// SearchResult is one hit of a vector search.
type SearchResult struct {
	// DocID is the matching document's relative path.
	DocID string `json:"doc_id"`

	// Title is the matching document's title.
	Title string `json:"title"`

	// ChunkID identifies the matching chunk.
	ChunkID string `json:"chunk_id"`

	// Score is the boosted cosine similarity (higher is better).
	Score float64 `json:"score"`

	// Snippet is an excerpt around the first query word.
	Snippet string `json:"snippet"`

	HeadingPath []string        `json:"heading_path,omitempty"`
	Kind        graph.ChunkKind `json:"kind"`
	StartLine   int             `json:"start_line"`
	EndLine     int             `json:"end_line"`
}

// Backend persists vector records grouped by document.
//
// Implementations must be safe for concurrent use. Put and Delete may be
// buffered until Sync.
type Backend interface {
	// Load returns every stored record. A missing store yields no records and
	// no error; a corrupt or version-mismatched store yields an error wrapping
	// apperr.ErrCacheMiss.
	Load(ctx context.Context) ([]VectorRecord, error)

	// Put replaces all records of a document.
	Put(ctx context.Context, docID string, records []VectorRecord) error

	// Delete removes all records of a document.
	Delete(ctx context.Context, docID string) error

	// Reset discards every stored record.
	Reset(ctx context.Context) error

	// Sync makes buffered writes durable.
	Sync(ctx context.Context) error

	// Size returns the on-disk size in bytes.
	Size() int64

	// Close releases all resources held by the backend.
	Close() error
}
