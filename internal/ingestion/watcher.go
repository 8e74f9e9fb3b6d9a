package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/notegraph/internal/graph"
)

// DefaultDebounce is how long the watcher waits for events to settle before
// applying a batch.
const DefaultDebounce = 2 * time.Second

// RecomputeInterval is the minimum time between full metric recomputations
// while watching.
const RecomputeInterval = 30 * time.Second

// Batch is a settled set of file changes, as absolute paths.
type Batch struct {
	Changed []string
	Removed []string
}

// ApplyFunc receives each settled batch.
type ApplyFunc func(ctx context.Context, batch Batch) error

// Watcher monitors a knowledge base and reports batched changes.
type Watcher struct {
	root     string
	accept   func(path string) bool
	apply    ApplyFunc
	debounce time.Duration
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a Watcher for root reporting files accepted by accept.
func NewWatcher(root string, accept func(path string) bool, apply ApplyFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		accept:   accept,
		apply:    apply,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the tree until ctx is cancelled. Directories created while
// running are watched too and their files reported as changed. A batch that
// fails to apply is logged and dropped.
func (w *Watcher) Run(ctx context.Context) error {
	patterns, err := loadGitignore(w.root)
	if err != nil {
		w.logger.Warn("ignoring unreadable .gitignore", slog.Any("error", err))
	}
	matcher := newMatcher(patterns)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root, matcher, nil); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	pending := make(map[string]bool)
	batchTimer := time.NewTimer(w.debounce)
	batchTimer.Stop()

	w.logger.Info("watching knowledge base", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !shouldSkipDir(info.Name(), event.Name, w.root, matcher) {
						if err := w.addTree(fw, event.Name, matcher, pending); err != nil {
							w.logger.Warn("watching new directory",
								slog.String("path", event.Name),
								slog.Any("error", err),
							)
						}
						batchTimer.Reset(w.debounce)
					}
					continue
				}
			}

			if isIgnored(event.Name, w.root, matcher) || !w.accept(event.Name) {
				continue
			}
			pending[event.Name] = true
			batchTimer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))

		case <-batchTimer.C:
			if len(pending) == 0 {
				continue
			}
			batch := classify(pending)
			pending = make(map[string]bool)

			w.logger.Info("applying changes",
				slog.Int("changed", len(batch.Changed)),
				slog.Int("removed", len(batch.Removed)),
			)
			if err := w.apply(ctx, batch); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				w.logger.Warn("applying changes", slog.Any("error", err))
			}
		}
	}
}

// addTree watches dir and every directory below it that is not skipped. When
// pending is non-nil, accepted files found on the way are added to it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string, matcher gitignore.Matcher, pending map[string]bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && shouldSkipDir(d.Name(), path, w.root, matcher) {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		if pending != nil && !isIgnored(path, w.root, matcher) && w.accept(path) {
			pending[path] = true
		}
		return nil
	})
}

// classify splits pending paths into files that exist and files that are gone.
func classify(pending map[string]bool) Batch {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b Batch
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
			b.Removed = append(b.Removed, p)
		case err != nil, info.IsDir():
			continue
		default:
			b.Changed = append(b.Changed, p)
		}
	}
	return b
}

// Watch keeps g and the vector store in step with the knowledge base until
// ctx is cancelled. Full graph metrics are recomputed at most once per
// RecomputeInterval.
func (p *Pipeline) Watch(ctx context.Context, g *graph.KnowledgeGraph, opts ...WatcherOption) error {
	lastRecompute := time.Now()
	apply := func(ctx context.Context, b Batch) error {
		res, err := p.Apply(ctx, g, b.Changed, b.Removed)
		if err != nil {
			return err
		}
		p.logger.Info("changes applied",
			slog.Int("reindexed", res.Indexed),
			slog.Int("removed", res.Removed),
		)
		if time.Since(lastRecompute) >= RecomputeInterval {
			p.Recompute(g)
			lastRecompute = time.Now()
		}
		return nil
	}

	opts = append([]WatcherOption{WithWatcherLogger(p.logger)}, opts...)
	return NewWatcher(p.cfg.Root, p.registry.Supports, apply, opts...).Run(ctx)
}
