package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Benny93/notegraph/internal/apperr"
)

// jsonDocument is the on-disk layout of a JSONBackend.
type jsonDocument struct {
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
	Records   []VectorRecord `json:"records"`
}

// JSONBackend stores all records in one JSON file that is rewritten entirely
// on every Sync.
type JSONBackend struct {
	mu    sync.Mutex
	path  string
	docs  map[string][]VectorRecord
	dirty bool
	now   func() time.Time
}

// NewJSONBackend creates a backend persisting to path.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{
		path: path,
		docs: make(map[string][]VectorRecord),
		now:  time.Now,
	}
}

// Path returns the file the backend writes.
func (b *JSONBackend) Path() string {
	return b.path
}

// Load implements Backend.
func (b *JSONBackend) Load(ctx context.Context) ([]VectorRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs = make(map[string][]VectorRecord)
	b.dirty = false

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, apperr.ErrCacheMiss)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %v: %w", b.path, err, apperr.ErrCacheMiss)
	}
	if doc.Version != SchemaVersion {
		return nil, fmt.Errorf("%s has version %d, want %d: %w", b.path, doc.Version, SchemaVersion, apperr.ErrCacheMiss)
	}

	for _, rec := range doc.Records {
		b.docs[rec.DocID] = append(b.docs[rec.DocID], rec)
	}
	return doc.Records, nil
}

// Put implements Backend.
func (b *JSONBackend) Put(ctx context.Context, docID string, records []VectorRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs[docID] = slices.Clone(records)
	b.dirty = true
	return nil
}

// Delete implements Backend.
func (b *JSONBackend) Delete(ctx context.Context, docID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.docs[docID]; ok {
		delete(b.docs, docID)
		b.dirty = true
	}
	return nil
}

// Reset implements Backend.
func (b *JSONBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs = make(map[string][]VectorRecord)
	b.dirty = true
	return nil
}

// Sync implements Backend. Nothing is written when no record changed since
// the last Load or Sync.
func (b *JSONBackend) Sync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil
	}

	ids := make([]string, 0, len(b.docs))
	for id := range b.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := jsonDocument{
		Version:   SchemaVersion,
		UpdatedAt: b.now().UTC(),
		Records:   make([]VectorRecord, 0, len(ids)),
	}
	for _, id := range ids {
		doc.Records = append(doc.Records, b.docs[id]...)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding vector store: %w", err)
	}
	if err := WriteFileAtomic(b.path, data); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

// Size implements Backend.
func (b *JSONBackend) Size() int64 {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close implements Backend.
func (b *JSONBackend) Close() error {
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path, so a failed write never truncates an existing file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
