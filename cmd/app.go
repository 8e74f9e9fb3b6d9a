package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/embeddings"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/ingestion"
	"github.com/Benny93/notegraph/internal/search"
	"github.com/Benny93/notegraph/internal/storage"
)

// ConfigFileName is the optional per-knowledge-base config file, read from
// the root unless --config names another.
const ConfigFileName = ".notegraph.yaml"

// Globals are the flags shared by every command.
type Globals struct {
	Root     string `short:"r" default:"." type:"path" help:"Knowledge base root directory"`
	Config   string `short:"c" type:"path" help:"Config file (default <root>/.notegraph.yaml)"`
	Backend  string `help:"Vector store backend (json or badger)"`
	Provider string `help:"Embedding provider (openai or local)"`
	APIKey   string `name:"api-key" env:"OPENAI_API_KEY" help:"Embedding API key"`
	Verbose  bool   `short:"v" help:"Enable verbose output"`
	Quiet    bool   `short:"q" help:"Suppress non-essential output"`

	Stdin  io.Reader `kong:"-"`
	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin != nil {
		return g.Stdin
	}
	return os.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr != nil {
		return g.Stderr
	}
	return os.Stderr
}

// loadConfig resolves the root, reads the optional config file and applies
// the flag overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	root, err := filepath.Abs(g.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", root, apperr.ErrInvalidInput)
	}

	cfg := config.NewDefaultConfig(root)
	path := g.Config
	if path == "" {
		path = filepath.Join(root, ConfigFileName)
	}
	if err := config.LoadOptional(path, cfg); err != nil {
		return nil, err
	}
	cfg.Root = root

	if g.Backend != "" {
		cfg.Storage.Backend = g.Backend
	}
	if g.Provider != "" {
		cfg.Embedding.Provider = g.Provider
	}
	if g.APIKey != "" {
		cfg.Embedding.APIKey = g.APIKey
	}
	switch {
	case g.Verbose:
		cfg.Log.Level = slog.LevelDebug
	case g.Quiet:
		cfg.Log.Level = slog.LevelWarn
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (g *Globals) newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(g.stderr(), &slog.HandlerOptions{Level: cfg.Log.Level}))
}

// app is the wired set of components a command works with.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider embeddings.Provider
	store    *storage.VectorStore
	pipeline *ingestion.Pipeline
}

// open wires config, provider, vector store and pipeline. Missing embedding
// credentials leave the provider nil: graph commands still work and semantic
// search reports the missing key.
func (g *Globals) open(ctx context.Context) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := g.newLogger(cfg)

	provider, err := embeddings.NewProvider(cfg.Embedding, logger)
	if errors.Is(err, apperr.ErrMissingCredentials) {
		logger.Warn("semantic search disabled", slog.Any("error", err))
		provider = nil
	} else if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg, provider, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	opts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithStore(store),
	}
	if !g.Quiet {
		w := g.stderr()
		opts = append(opts, ingestion.WithProgress(func(phase string, pct float64) {
			fmt.Fprintf(w, "\r\033[K%s (%.0f%%)", phase, pct*100)
			if pct >= 1 {
				fmt.Fprintln(w)
			}
		}))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		store:    store,
		pipeline: ingestion.NewPipeline(cfg, opts...),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadGraph loads the knowledge graph, from the cache when it is current.
func (a *app) loadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	res, err := a.pipeline.BuildGraph(ctx, false)
	if err != nil {
		return nil, err
	}
	return res.Graph, nil
}

// engine returns the search engine, or nil without embedding credentials.
func (a *app) engine() *search.Engine {
	if a.provider == nil {
		return nil
	}
	return search.NewEngine(a.store, a.cfg.Search, search.WithLogger(a.logger))
}

// requireEngine is engine for commands that cannot run without one.
func (a *app) requireEngine() (*search.Engine, error) {
	e := a.engine()
	if e == nil {
		return nil, fmt.Errorf("set OPENAI_API_KEY or use --provider local: %w", apperr.ErrMissingCredentials)
	}
	return e, nil
}

// index brings the vector store up to date, skipping with a warning when
// there is no provider.
func (a *app) index(ctx context.Context, g *graph.KnowledgeGraph, force bool) (*ingestion.IndexResult, error) {
	if a.provider == nil {
		a.logger.Warn("skipping embedding: no credentials for provider",
			slog.String("provider", a.cfg.Embedding.Provider))
		return nil, nil
	}
	return a.pipeline.Index(ctx, g, force)
}

// findNote resolves a note reference against g.
func findNote(g *graph.KnowledgeGraph, ref string) (*graph.GraphNode, error) {
	node := g.Find(ref)
	if node == nil {
		return nil, fmt.Errorf("note %q: %w", ref, apperr.ErrNotFound)
	}
	return node, nil
}

// relPath maps an absolute node path to its relative path.
func relPath(g *graph.KnowledgeGraph, path string) string {
	if n := g.Node(path); n != nil {
		return n.Document.RelPath
	}
	return path
}
