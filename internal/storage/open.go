package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/embeddings"
)

// File names of the persisted vector stores inside the state directory.
const (
	JSONFileName  = "vectors.json"
	BadgerDirName = "vectors.badger"
)

// NewBackend creates the backend selected by cfg.Storage.Backend.
func NewBackend(cfg *config.Config, readOnly bool) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendJSON, "":
		return NewJSONBackend(filepath.Join(cfg.StateDir(), JSONFileName)), nil
	case config.BackendBadger:
		b := NewBadgerBackend()
		if err := b.Initialize(filepath.Join(cfg.StateDir(), BadgerDirName), readOnly); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Open creates the configured backend and loads the vector store from it.
func Open(ctx context.Context, cfg *config.Config, provider embeddings.Provider, opts ...Option) (*VectorStore, error) {
	backend, err := NewBackend(cfg, false)
	if err != nil {
		return nil, err
	}
	store := NewVectorStore(backend, provider, opts...)
	if err := store.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}
