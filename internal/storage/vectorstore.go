package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/embeddings"
	"github.com/Benny93/notegraph/internal/graph"
)

// Stats describes the contents of a VectorStore.
type Stats struct {
	Records    int    `json:"records"`
	Documents  int    `json:"documents"`
	Dimensions int    `json:"dimensions"`
	SizeBytes  int64  `json:"size_bytes"`
	Provider   string `json:"provider,omitempty"`
}

// SearchOptions controls a vector search.
type SearchOptions struct {
	// Limit caps the number of results; zero or less means no cap.
	Limit int

	// Threshold drops results whose boosted score is below it.
	Threshold float64
}

// VectorStore holds chunk embeddings in memory and persists them through a
// Backend. Writers are serialized; searches only take a read lock.
type VectorStore struct {
	mu       sync.RWMutex
	backend  Backend
	provider embeddings.Provider
	logger   *slog.Logger
	docs     map[string][]VectorRecord
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// NewVectorStore creates an empty store. provider may be nil for stores that
// are only inspected; embedding operations then fail with
// apperr.ErrMissingCredentials.
func NewVectorStore(backend Backend, provider embeddings.Provider, opts ...Option) *VectorStore {
	s := &VectorStore{
		backend:  backend,
		provider: provider,
		logger:   slog.Default(),
		docs:     make(map[string][]VectorRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads all records from the backend. A corrupt or version-mismatched
// store is logged, reset and treated as empty.
func (s *VectorStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string][]VectorRecord)

	records, err := s.backend.Load(ctx)
	if errors.Is(err, apperr.ErrCacheMiss) {
		s.logger.Warn("discarding unreadable vector store", slog.Any("error", err))
		return s.backend.Reset(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading vector store: %w", err)
	}

	for _, rec := range records {
		s.docs[rec.DocID] = append(s.docs[rec.DocID], rec)
	}
	for _, recs := range s.docs {
		sortRecords(recs)
	}
	return nil
}

// NeedsReindex reports whether doc has no stored chunks or was modified after
// its first stored chunk was embedded.
func (s *VectorStore) NeedsReindex(doc *graph.Document) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.docs[doc.RelPath]
	if !ok || len(recs) == 0 {
		return true
	}
	return doc.Modified.After(recs[0].Modified)
}

// ReplaceDocument embeds chunks and replaces every stored record of doc with
// them. No per-chunk diffing is done.
func (s *VectorStore) ReplaceDocument(ctx context.Context, doc *graph.Document, chunks []graph.Chunk) error {
	if s.provider == nil {
		return fmt.Errorf("embedding %s: %w", doc.RelPath, apperr.ErrMissingCredentials)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = embeddings.GenerateEmbeddingText(doc.Title, c)
	}

	var vecs [][]float32
	if len(texts) > 0 {
		var err error
		vecs, err = s.provider.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", doc.RelPath, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding %s: got %d vectors for %d chunks", doc.RelPath, len(vecs), len(texts))
		}
	}

	records := make([]VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = VectorRecord{
			ID:          c.ID,
			DocID:       doc.RelPath,
			Title:       doc.Title,
			Text:        c.Text,
			Embedding:   vecs[i],
			Kind:        c.Kind,
			HeadingPath: c.HeadingPath,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Modified:    doc.Modified,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Put(ctx, doc.RelPath, records); err != nil {
		return fmt.Errorf("storing %s: %w", doc.RelPath, err)
	}
	s.docs[doc.RelPath] = records
	return nil
}

// RemoveDocument drops every record of a document.
func (s *VectorStore) RemoveDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[docID]; !ok {
		return nil
	}
	if err := s.backend.Delete(ctx, docID); err != nil {
		return fmt.Errorf("removing %s: %w", docID, err)
	}
	delete(s.docs, docID)
	return nil
}

// Prune removes the records of every document not in keep and returns the
// number of documents removed.
func (s *VectorStore) Prune(ctx context.Context, keep []string) (int, error) {
	live := make(map[string]bool, len(keep))
	for _, id := range keep {
		live[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range s.sortedDocIDs() {
		if live[id] {
			continue
		}
		if err := s.backend.Delete(ctx, id); err != nil {
			return removed, fmt.Errorf("pruning %s: %w", id, err)
		}
		delete(s.docs, id)
		removed++
	}
	return removed, nil
}

// Search embeds query once and scans every stored vector.
func (s *VectorStore) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("searching: %w", apperr.ErrMissingCredentials)
	}
	vec, err := embeddings.EmbedSingle(ctx, s.provider, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.SearchVector(query, vec, opts)
}

// SearchVector scans every stored vector against vec. Scores are cosine
// similarities multiplied by the chunk kind boost; results below the
// threshold are dropped and the rest sorted by score descending. query is
// only used to build snippets.
func (s *VectorStore) SearchVector(query string, vec []float32, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, id := range s.sortedDocIDs() {
		for _, rec := range s.docs[id] {
			sim, err := CosineSimilarity(vec, rec.Embedding)
			if err != nil {
				return nil, fmt.Errorf("scoring chunk %s of %s: %w", rec.ID, rec.DocID, err)
			}
			score := sim * KindBoost(rec.Kind)
			if score < opts.Threshold {
				continue
			}
			results = append(results, SearchResult{
				DocID:       rec.DocID,
				Title:       rec.Title,
				ChunkID:     rec.ID,
				Score:       score,
				Snippet:     ExtractSnippet(rec.Text, query, rec.HeadingPath),
				HeadingPath: rec.HeadingPath,
				Kind:        rec.Kind,
				StartLine:   rec.StartLine,
				EndLine:     rec.EndLine,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Records returns the stored records of a document.
func (s *VectorStore) Records(docID string) []VectorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]VectorRecord(nil), s.docs[docID]...)
}

// Documents returns the ids of all documents with stored records, sorted.
func (s *VectorStore) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedDocIDs()
}

// Stats reports record and document counts and the on-disk size.
func (s *VectorStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Documents: len(s.docs),
		SizeBytes: s.backend.Size(),
	}
	for _, recs := range s.docs {
		st.Records += len(recs)
		if st.Dimensions == 0 && len(recs) > 0 {
			st.Dimensions = len(recs[0].Embedding)
		}
	}
	if s.provider != nil {
		st.Provider = s.provider.Name()
	}
	return st
}

// Save persists all changes made since the last Save.
func (s *VectorStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Sync(ctx); err != nil {
		return fmt.Errorf("saving vector store: %w", err)
	}
	return nil
}

// Close closes the backend.
func (s *VectorStore) Close() error {
	return s.backend.Close()
}

func (s *VectorStore) sortedDocIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortRecords orders a document's records by position, title chunk first.
func sortRecords(recs []VectorRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, tj := recs[i].Kind == graph.ChunkTitle, recs[j].Kind == graph.ChunkTitle
		if ti != tj {
			return ti
		}
		if recs[i].StartLine != recs[j].StartLine {
			return recs[i].StartLine < recs[j].StartLine
		}
		return recs[i].ID < recs[j].ID
	})
}
