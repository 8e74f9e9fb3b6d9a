// Package cache persists built knowledge graphs together with a snapshot of
// file modification times, and decides whether a cached graph can be reused.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/storage"
)

// Version is the cache schema version. Records with another version are
// treated as absent.
const Version = 1

// Snapshot maps root-relative file paths to modification times.
type Snapshot map[string]time.Time

// Record is the cache metadata written next to the serialized graph.
type Record struct {
	Version       int              `json:"version"`
	Root          string           `json:"root"`
	Created       time.Time        `json:"created"`
	DocumentCount int              `json:"document_count"`
	Files         map[string]int64 `json:"files"`
	Overview      string           `json:"overview,omitempty"`
}

// Stats describes the cache on disk.
type Stats struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	LastBuild time.Time `json:"last_build"`
	Documents int       `json:"documents"`
	Version   int       `json:"version"`
}

// Changes lists files that differ from the cached snapshot.
type Changes struct {
	Modified []string `json:"modified"`
	Added    []string `json:"added"`
	Deleted  []string `json:"deleted"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Modified) == 0 && len(c.Added) == 0 && len(c.Deleted) == 0
}

// Manager reads and writes the cache of one knowledge base.
type Manager struct {
	root     string
	metaPath string
	dataPath string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report unreadable caches.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock sets the clock used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Key returns the stable cache key of a knowledge-base root: its base name
// and a hash of the full path.
func Key(root string) string {
	return fmt.Sprintf("%s_%016x", filepath.Base(root), xxhash.Sum64String(filepath.Clean(root)))
}

// NewManager creates a manager storing its files under the configured state
// directory.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	dir := filepath.Join(cfg.StateDir(), "cache")
	key := Key(cfg.Root)
	m := &Manager{
		root:     cfg.Root,
		metaPath: filepath.Join(dir, key+".meta.json"),
		dataPath: filepath.Join(dir, key+".graph.json"),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Scan stats the given absolute paths and returns their snapshot keyed by
// slash-separated path relative to root. Files that vanished are left out.
func Scan(root string, paths []string) (Snapshot, error) {
	snap := make(Snapshot, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("relative path of %s: %w", p, err)
		}
		snap[filepath.ToSlash(rel)] = info.ModTime()
	}
	return snap, nil
}

// Load returns the cached graph when the cache is valid for current. Any
// missing, unreadable, version-mismatched or outdated cache yields an error
// wrapping apperr.ErrCacheMiss.
func (m *Manager) Load(current Snapshot) (*graph.KnowledgeGraph, error) {
	rec, err := m.readRecord()
	if err != nil {
		return nil, err
	}
	if !rec.matches(current) {
		return nil, fmt.Errorf("files changed since last build: %w", apperr.ErrCacheMiss)
	}

	data, err := os.ReadFile(m.dataPath)
	if err != nil {
		return nil, fmt.Errorf("reading cached graph: %w", apperr.ErrCacheMiss)
	}
	g := graph.NewKnowledgeGraph(m.root)
	if err := json.Unmarshal(data, g); err != nil {
		m.logger.Warn("discarding unreadable graph cache",
			slog.String("path", m.dataPath),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("decoding cached graph: %w", apperr.ErrCacheMiss)
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*graph.GraphNode)
	}
	return g, nil
}

// IsValid reports whether the cached snapshot equals current exactly: the
// same set of files with the same modification times.
func (m *Manager) IsValid(current Snapshot) bool {
	rec, err := m.readRecord()
	if err != nil {
		return false
	}
	return rec.matches(current)
}

// Save writes g and the snapshot it was built from. The graph is written
// before the record so a partial save never validates.
func (m *Manager) Save(g *graph.KnowledgeGraph, current Snapshot, overview string) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}

	rec := Record{
		Version:       Version,
		Root:          m.root,
		Created:       m.now().UTC(),
		DocumentCount: g.NodeCount(),
		Files:         make(map[string]int64, len(current)),
		Overview:      overview,
	}
	for rel, mod := range current {
		rec.Files[rel] = mod.UnixNano()
	}
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache record: %w", err)
	}

	if err := os.Remove(m.metaPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalidating cache record: %w", err)
	}
	if err := storage.WriteFileAtomic(m.dataPath, data); err != nil {
		return err
	}
	return storage.WriteFileAtomic(m.metaPath, meta)
}

// ChangedFiles compares current with the cached snapshot.
func (m *Manager) ChangedFiles(current Snapshot) (Changes, error) {
	rec, err := m.readRecord()
	if err != nil {
		return Changes{}, err
	}

	var ch Changes
	for rel, mod := range current {
		cached, ok := rec.Files[rel]
		switch {
		case !ok:
			ch.Added = append(ch.Added, rel)
		case cached != mod.UnixNano():
			ch.Modified = append(ch.Modified, rel)
		}
	}
	for rel := range rec.Files {
		if _, ok := current[rel]; !ok {
			ch.Deleted = append(ch.Deleted, rel)
		}
	}
	sort.Strings(ch.Modified)
	sort.Strings(ch.Added)
	sort.Strings(ch.Deleted)
	return ch, nil
}

// Overview returns the overview text stored with the cache.
func (m *Manager) Overview() (string, error) {
	rec, err := m.readRecord()
	if err != nil {
		return "", err
	}
	return rec.Overview, nil
}

// Stats describes the cache files.
func (m *Manager) Stats() (Stats, error) {
	rec, err := m.readRecord()
	if err != nil {
		return Stats{}, err
	}
	info, err := os.Stat(m.dataPath)
	if err != nil {
		return Stats{}, fmt.Errorf("stat cached graph: %w", apperr.ErrCacheMiss)
	}
	return Stats{
		Path:      m.dataPath,
		SizeBytes: info.Size(),
		LastBuild: rec.Created,
		Documents: rec.DocumentCount,
		Version:   rec.Version,
	}, nil
}

// Clear removes the cache files.
func (m *Manager) Clear() error {
	for _, p := range []string{m.metaPath, m.dataPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func (m *Manager) readRecord() (*Record, error) {
	data, err := os.ReadFile(m.metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no cache for %s: %w", m.root, apperr.ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache record: %w", apperr.ErrCacheMiss)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("discarding unreadable cache record",
			slog.String("path", m.metaPath),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("decoding cache record: %w", apperr.ErrCacheMiss)
	}
	if rec.Version != Version {
		return nil, fmt.Errorf("cache version %d, want %d: %w", rec.Version, Version, apperr.ErrCacheMiss)
	}
	return &rec, nil
}

func (r *Record) matches(current Snapshot) bool {
	if len(r.Files) != len(current) {
		return false
	}
	for rel, mod := range current {
		cached, ok := r.Files[rel]
		if !ok || cached != mod.UnixNano() {
			return false
		}
	}
	return true
}
