package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Benny93/notegraph/internal/apperr"
)

// Key layout
const (
	prefixDoc  = "doc/"         // doc/<docID>/<chunkID> -> msgpack VectorRecord
	keyVersion = "meta/version" // schema version
)

// BadgerBackend stores vector records in BadgerDB, partitioned per document
// so that replacing one document only rewrites that document's keys.
type BadgerBackend struct {
	mu          sync.RWMutex
	db          *badger.DB
	path        string
	initialized bool
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.path = path
	b.initialized = true
	return nil
}

// Load implements Backend.
func (b *BadgerBackend) Load(ctx context.Context) ([]VectorRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var records []VectorRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyVersion))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// Fresh database.
		case err != nil:
			return err
		default:
			var version int
			if err := item.Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &version)
			}); err != nil {
				return fmt.Errorf("decoding schema version: %v: %w", err, apperr.ErrCacheMiss)
			}
			if version != SchemaVersion {
				return fmt.Errorf("badger store has version %d, want %d: %w", version, SchemaVersion, apperr.ErrCacheMiss)
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixDoc)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec VectorRecord
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding %s: %v: %w", it.Item().Key(), err, apperr.ErrCacheMiss)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Put implements Backend.
func (b *BadgerBackend) Put(ctx context.Context, docID string, records []VectorRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		if err := b.writeVersion(txn); err != nil {
			return err
		}
		if err := deletePrefix(txn, docPrefix(docID)); err != nil {
			return err
		}
		for _, rec := range records {
			data, err := msgpack.Marshal(&rec)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", rec.ID, err)
			}
			if err := txn.Set(recordKey(docID, rec.ID), data); err != nil {
				return fmt.Errorf("setting record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Delete implements Backend.
func (b *BadgerBackend) Delete(ctx context.Context, docID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		return deletePrefix(txn, docPrefix(docID))
	})
}

// Reset implements Backend.
func (b *BadgerBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DropPrefix([]byte(prefixDoc)); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	return b.db.Update(b.writeVersion)
}

// Sync implements Backend.
func (b *BadgerBackend) Sync(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db.Opts().ReadOnly {
		return nil
	}
	return b.db.Sync()
}

// Size implements Backend.
func (b *BadgerBackend) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return 0
	}
	lsm, vlog := b.db.Size()
	return lsm + vlog
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

func (b *BadgerBackend) writeVersion(txn *badger.Txn) error {
	data, err := msgpack.Marshal(SchemaVersion)
	if err != nil {
		return err
	}
	return txn.Set([]byte(keyVersion), data)
}

// deletePrefix removes every key starting with prefix inside txn.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

func docPrefix(docID string) []byte {
	return []byte(prefixDoc + docID + "/")
}

func recordKey(docID, chunkID string) []byte {
	return []byte(prefixDoc + docID + "/" + chunkID)
}
