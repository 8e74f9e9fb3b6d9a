// Package cmd provides CLI command implementations for notegraph.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/cache"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/ingestion"
	"github.com/Benny93/notegraph/internal/search"
	"github.com/Benny93/notegraph/internal/storage"
	"github.com/Benny93/notegraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	green = color.New(color.FgGreen)
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

// BuildCmd builds the knowledge graph and indexes it into the vector store.
type BuildCmd struct {
	Force   bool `short:"f" help:"Ignore the cache and rebuild everything"`
	NoIndex bool `help:"Skip vector embedding generation"`
}

// Run executes the build command.
func (c *BuildCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.pipeline.BuildGraph(ctx, c.Force)
	if err != nil {
		return err
	}

	out := g.stdout()
	source := "built"
	if res.FromCache {
		source = "loaded from cache"
	}
	stats := graph.NewAnalyzer(res.Graph).Stats()
	green.Fprintf(out, "✓ Graph %s\n", source)
	fmt.Fprintf(out, "  Documents:      %d\n", stats.Nodes)
	fmt.Fprintf(out, "  Links:          %d\n", stats.Edges)
	fmt.Fprintf(out, "  Broken links:   %d\n", stats.BrokenLinks)
	fmt.Fprintf(out, "  Clusters:       %d\n", stats.Clusters)
	fmt.Fprintf(out, "  Duration:       %.2fs\n", res.Duration.Seconds())

	if c.NoIndex {
		return nil
	}
	idx, err := a.index(ctx, res.Graph, c.Force)
	if err != nil {
		return err
	}
	if idx != nil {
		printIndexResult(out, idx)
	}
	return nil
}

// IndexCmd embeds stale documents into the vector store.
type IndexCmd struct {
	Force bool `short:"f" help:"Re-embed every document"`
}

// Run executes the index command.
func (c *IndexCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if _, err := a.requireEngine(); err != nil {
		return err
	}
	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	res, err := a.pipeline.Index(ctx, kg, c.Force)
	if err != nil {
		return err
	}
	printIndexResult(g.stdout(), res)
	return nil
}

func printIndexResult(out io.Writer, res *ingestion.IndexResult) {
	green.Fprintln(out, "✓ Vector store up to date")
	fmt.Fprintf(out, "  Embedded:       %d (%d chunks)\n", res.Indexed, res.Chunks)
	fmt.Fprintf(out, "  Unchanged:      %d\n", res.Skipped)
	fmt.Fprintf(out, "  Removed:        %d\n", res.Removed)
	fmt.Fprintf(out, "  Duration:       %.2fs\n", res.Duration.Seconds())
}

// SearchCmd runs a semantic search.
type SearchCmd struct {
	Query     string  `arg:"" help:"Search query"`
	Limit     int     `short:"n" help:"Maximum results (default from config)"`
	Threshold float64 `short:"t" help:"Minimum similarity (default from config)"`
	Single    bool    `help:"Search the query as given, without variations"`
	JSON      bool    `name:"json" help:"Print results as JSON"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	engine, err := a.requireEngine()
	if err != nil {
		return err
	}
	results, err := engine.EnhancedSearch(ctx, c.Query, search.Options{
		Limit:       c.Limit,
		Threshold:   c.Threshold,
		MultiPhrase: a.cfg.Search.MultiPhrase && !c.Single,
	})
	if err != nil {
		return err
	}
	return printSearchResults(g.stdout(), results, c.JSON)
}

// ResearchCmd runs a broad research search.
type ResearchCmd struct {
	Query string `arg:"" help:"Research question or topic"`
	Limit int    `short:"n" help:"Maximum results (default from config)"`
	JSON  bool   `name:"json" help:"Print results as JSON"`
}

// Run executes the research command.
func (c *ResearchCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	engine, err := a.requireEngine()
	if err != nil {
		return err
	}
	results, err := engine.Research(ctx, c.Query, search.Options{Limit: c.Limit})
	if err != nil {
		return err
	}
	return printSearchResults(g.stdout(), results, c.JSON)
}

func printSearchResults(out io.Writer, results []storage.SearchResult, asJSON bool) error {
	if asJSON {
		if results == nil {
			results = []storage.SearchResult{}
		}
		return writeJSON(out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "\n%d. %s (%s)\n", i+1, bold.Sprint(r.Title), r.DocID)
		if len(r.HeadingPath) > 0 {
			fmt.Fprintf(out, "   %s\n", faint.Sprint(strings.Join(r.HeadingPath, " > ")))
		}
		fmt.Fprintf(out, "   Score: %.3f, lines %d-%d\n", r.Score, r.StartLine, r.EndLine)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
	}
	return nil
}

// OverviewCmd summarizes the knowledge base.
type OverviewCmd struct {
	JSON bool `name:"json" help:"Print statistics as JSON"`
}

// Run executes the overview command.
func (c *OverviewCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	out := g.stdout()
	if !c.JSON {
		fmt.Fprint(out, ingestion.Overview(kg))
		return nil
	}

	hubs := make([]string, len(kg.Hubs))
	for i, h := range kg.Hubs {
		hubs[i] = relPath(kg, h)
	}
	orphans := make([]string, len(kg.Orphans))
	for i, o := range kg.Orphans {
		orphans[i] = relPath(kg, o)
	}
	analyzer := graph.NewAnalyzer(kg)
	bridges := []string{}
	for _, b := range analyzer.Bridges() {
		bridges = append(bridges, relPath(kg, b))
	}
	return writeJSON(out, map[string]any{
		"root":          kg.Root,
		"stats":         analyzer.Stats(),
		"hubs":          hubs,
		"orphans":       orphans,
		"bridges":       bridges,
		"metrics_stale": kg.MetricsStale,
		"vectors":       a.store.Stats(),
	})
}

// ReadCmd shows one note with its metadata and links.
type ReadCmd struct {
	Note      string `arg:"" help:"Note path, relative path or title"`
	NoContent bool   `help:"Show metadata and links only"`
}

// Run executes the read command.
func (c *ReadCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	node, err := findNote(kg, c.Note)
	if err != nil {
		return err
	}
	fmt.Fprint(g.stdout(), ingestion.NoteReport(kg, node, !c.NoContent))
	return nil
}

// LsCmd lists notes in a directory-style tree.
type LsCmd struct {
	Path string `arg:"" optional:"" help:"Directory relative to the root"`
}

// Run executes the ls command.
func (c *LsCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(g.stdout(), ingestion.Listing(kg, c.Path))
	return nil
}

// RelatedCmd lists notes related to a note.
type RelatedCmd struct {
	Note  string `arg:"" help:"Note path, relative path or title"`
	Limit int    `short:"n" default:"10" help:"Maximum results"`
}

// Run executes the related command.
func (c *RelatedCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	node, err := findNote(kg, c.Note)
	if err != nil {
		return err
	}

	out := g.stdout()
	related := graph.NewAnalyzer(kg).RelatedNotes(node.Path(), c.Limit)
	if len(related) == 0 {
		fmt.Fprintf(out, "No notes related to %s\n", node.Document.RelPath)
		return nil
	}
	fmt.Fprintf(out, "Notes related to %s (%s):\n\n", bold.Sprint(node.Document.Title), node.Document.RelPath)
	for i, r := range related {
		fmt.Fprintf(out, "%d. %s [%s] %.2f %s\n", i+1, relPath(kg, r.Path), r.Relation, r.Score, faint.Sprint(r.Reason))
	}
	return nil
}

// PathCmd prints the shortest link paths between two notes.
type PathCmd struct {
	From  string `arg:"" help:"Source note"`
	To    string `arg:"" help:"Target note"`
	Limit int    `short:"n" default:"3" help:"Maximum number of paths"`
}

// Run executes the path command.
func (c *PathCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	src, err := findNote(kg, c.From)
	if err != nil {
		return err
	}
	dst, err := findNote(kg, c.To)
	if err != nil {
		return err
	}

	out := g.stdout()
	paths := graph.NewAnalyzer(kg).ShortestPaths(src.Path(), dst.Path(), c.Limit)
	if len(paths) == 0 {
		fmt.Fprintf(out, "No link path from %s to %s\n", src.Document.RelPath, dst.Document.RelPath)
		return nil
	}
	for i, p := range paths {
		hops := make([]string, len(p))
		for j, step := range p {
			hops[j] = relPath(kg, step)
		}
		fmt.Fprintf(out, "%d. %s\n", i+1, strings.Join(hops, " -> "))
	}
	return nil
}

// FindCmd runs keyword, glob or grep search over the notes.
type FindCmd struct {
	Query   string `arg:"" help:"Keyword, regular expression or glob pattern"`
	Glob    bool   `short:"g" help:"Match the query as a glob against note paths" xor:"mode"`
	Grep    bool   `help:"Print every matching line" xor:"mode"`
	Context int    `short:"C" default:"2" help:"Lines of context around grep matches"`
	Limit   int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the find command.
func (c *FindCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	out := g.stdout()

	switch {
	case c.Glob:
		paths, err := search.Glob(kg, c.Query)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(out, "No notes match")
			return nil
		}
		for _, p := range paths[:min(len(paths), c.Limit)] {
			fmt.Fprintln(out, relPath(kg, p))
		}
	case c.Grep:
		matches, err := search.Grep(kg, c.Query, c.Context)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(out, "No matches found")
			return nil
		}
		for _, m := range matches[:min(len(matches), c.Limit)] {
			fmt.Fprintf(out, "%s:%d: %s\n", bold.Sprint(m.RelPath), m.Line, m.Text)
			for _, line := range m.Context {
				fmt.Fprintf(out, "    %s\n", faint.Sprint(line))
			}
		}
	default:
		results, err := search.KeywordSearch(kg, c.Query, c.Limit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "\n%d. %s (%s)\n", i+1, bold.Sprint(r.Title), r.RelPath)
			fmt.Fprintf(out, "   Score: %.1f, matched: %s\n", r.Score, strings.Join(r.MatchTypes, ", "))
			if r.Context != "" {
				fmt.Fprintf(out, "   Line %d: %s\n", r.Line, r.Context)
			}
		}
	}
	return nil
}

// StatusCmd shows cache and vector store status for the knowledge base.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := g.stdout()
	fmt.Fprintf(out, "Knowledge base %s\n", a.cfg.Root)
	fmt.Fprintf(out, "  State dir:      %s\n", a.cfg.StateDir())

	st, err := a.pipeline.Cache().Stats()
	switch {
	case errors.Is(err, apperr.ErrCacheMiss):
		fmt.Fprintln(out, "  Graph cache:    none (run 'notegraph build')")
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "  Graph cache:    %d documents, %d bytes\n", st.Documents, st.SizeBytes)
		fmt.Fprintf(out, "  Last build:     %s\n", st.LastBuild.Format(time.RFC3339))

		entries, err := a.pipeline.Files()
		if err != nil {
			return err
		}
		snap, err := cache.Scan(a.cfg.Root, ingestion.Paths(entries))
		if err != nil {
			return err
		}
		changes, err := a.pipeline.Cache().ChangedFiles(snap)
		if err != nil {
			return err
		}
		if changes.Empty() {
			fmt.Fprintln(out, "  Changes:        none")
		} else {
			fmt.Fprintf(out, "  Changes:        %d modified, %d added, %d deleted\n",
				len(changes.Modified), len(changes.Added), len(changes.Deleted))
		}
	}

	vs := a.store.Stats()
	fmt.Fprintf(out, "  Vector store:   %d documents, %d chunks (%s)\n", vs.Documents, vs.Records, a.cfg.Storage.Backend)
	if a.provider == nil {
		fmt.Fprintln(out, "  Embeddings:     disabled (no credentials)")
	} else {
		fmt.Fprintf(out, "  Embeddings:     %s\n", a.provider.Name())
	}
	return nil
}

// CleanCmd deletes the cache and vector store of the knowledge base.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	out := g.stdout()

	dir := cfg.StateDir()
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no index found at %s. Nothing to clean", cfg.Root)
	}

	if !c.Force {
		fmt.Fprintf(out, "Delete index at %s? [y/N] ", dir)
		response, _ := bufio.NewReader(g.stdin()).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	green.Fprintf(out, "Deleted %s\n", dir)
	return nil
}

// WatchCmd keeps the graph and vector store in step with file changes.
type WatchCmd struct {
	Debounce time.Duration `default:"2s" help:"Settle delay before applying changes"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	kg, err := a.loadGraph(ctx)
	if err != nil {
		return err
	}
	if _, err := a.index(ctx, kg, false); err != nil {
		return err
	}

	out := g.stdout()
	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", a.cfg.Root)
	err = a.pipeline.Watch(ctx, kg, ingestion.WithDebounce(c.Debounce))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}
	fmt.Fprintln(out, "Watch mode stopped.")
	return nil
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch bool `short:"w" help:"Enable file watching"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, server, kg, err := startServer(ctx, g)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if c.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := a.pipeline.Watch(watchCtx, kg)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("watch stopped", slog.Any("error", err))
			}
		}()
	}

	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPCmd serves newline-delimited JSON-RPC on stdin and stdout.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, server, _, err := startServer(ctx, g)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// No output to stdout besides JSON-RPC responses.
	return server.Run(ctx, g.stdin(), g.stdout())
}

// startServer loads the graph, refreshes the vector store and builds an MCP
// server over both. Progress output is suppressed since stdout carries the
// protocol.
func startServer(ctx context.Context, g *Globals) (*app, *mcp.Server, *graph.KnowledgeGraph, error) {
	quiet := *g
	quiet.Quiet = true
	a, err := quiet.open(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	kg, err := a.loadGraph(ctx)
	if err != nil {
		_ = a.Close()
		return nil, nil, nil, err
	}
	if _, err := a.index(ctx, kg, false); err != nil {
		_ = a.Close()
		return nil, nil, nil, err
	}

	server := mcp.NewServer(kg, a.engine(),
		mcp.WithStore(a.store),
		mcp.WithLogger(a.logger),
	)
	return a, server, kg, nil
}

// SetupCmd writes MCP client configuration pointing at this knowledge base.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Global   bool   `help:"Create global configuration in the home directory"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Directory to write the configuration into"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	root, err := filepath.Abs(g.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	cfg := serverConfig(root)
	out := g.stdout()

	if !c.Qwen && !c.Claude && !c.Cursor {
		return writeConfigTo(out, cfg, c.Format)
	}

	for _, client := range []struct {
		name    string
		enabled bool
	}{
		{"qwen", c.Qwen},
		{"claude", c.Claude},
		{"cursor", c.Cursor},
	} {
		if !client.enabled {
			continue
		}
		path, err := c.configPath(root, client.name)
		if err != nil {
			return err
		}
		if err := writeConfig(path, cfg, c.Format); err != nil {
			return err
		}
		green.Fprintf(out, "✓ Created %s MCP config at %s\n", client.name, path)
	}
	return nil
}

func (c *SetupCmd) configPath(root, client string) (string, error) {
	switch {
	case c.FilePath != "":
		return filepath.Join(c.FilePath, "mcp.json"), nil
	case c.Global:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		return filepath.Join(home, clientConfigDir(client), "mcp.json"), nil
	default:
		return filepath.Join(root, clientConfigDir(client), "mcp.json"), nil
	}
}

func clientConfigDir(client string) string {
	switch client {
	case "claude":
		return ".claude"
	case "cursor":
		return ".cursor"
	default:
		return ".qwen"
	}
}

// serverConfig is the mcpServers entry launching notegraph for root.
func serverConfig(root string) map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"notegraph": map[string]any{
				"command": "notegraph",
				"args":    []string{"--root", root, "serve", "--watch"},
			},
		},
	}
}

func writeConfig(path string, cfg map[string]any, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := writeConfigTo(f, cfg, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeConfigTo(w io.Writer, cfg map[string]any, format string) error {
	if format == "json" {
		return writeJSON(w, cfg)
	}
	fmt.Fprintln(w, "# MCP configuration for notegraph")
	fmt.Fprintln(w, "# Generated by notegraph setup")
	fmt.Fprintln(w)
	for key, value := range cfg {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", key, data)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Build    BuildCmd    `cmd:"" help:"Build the knowledge graph and vector index"`
	Index    IndexCmd    `cmd:"" help:"Embed changed notes into the vector store"`
	Search   SearchCmd   `cmd:"" help:"Semantic search with query expansion"`
	Research ResearchCmd `cmd:"" help:"Broad research search across many query variations"`
	Find     FindCmd     `cmd:"" help:"Keyword, glob or grep search"`
	Read     ReadCmd     `cmd:"" help:"Show a note with its metadata and links"`
	Ls       LsCmd       `cmd:"" help:"List notes in directory-style format"`
	Related  RelatedCmd  `cmd:"" help:"Show notes related to a note"`
	Path     PathCmd     `cmd:"" help:"Show link paths between two notes"`
	Overview OverviewCmd `cmd:"" help:"Summarize the knowledge base"`
	Status   StatusCmd   `cmd:"" help:"Show cache and index status"`
	Clean    CleanCmd    `cmd:"" help:"Delete the cache and vector store"`
	Watch    WatchCmd    `cmd:"" help:"Watch mode with live re-indexing"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server with optional watch mode"`
	MCP      MCPCmd      `cmd:"" help:"Start line-based JSON-RPC MCP server on stdio"`
	Setup    SetupCmd    `cmd:"" help:"Configure MCP for Claude Code / Cursor / Qwen"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("notegraph"),
		kong.Description("Semantic search and link graph for a notes knowledge base"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(&c.Globals)
}
