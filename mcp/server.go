// Package mcp provides the MCP (Model Context Protocol) server for notegraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/ingestion"
	"github.com/Benny93/notegraph/internal/search"
	"github.com/Benny93/notegraph/internal/storage"
)

// Server name and version reported to clients.
const (
	ServerName    = "notegraph"
	ServerVersion = "0.1.0"
)

// Resource URIs.
const (
	URIOverview = "notegraph://overview"
	URIStats    = "notegraph://stats"
)

// Server represents the MCP server.
type Server struct {
	graph  *graph.KnowledgeGraph
	engine *search.Engine
	store  *storage.VectorStore
	logger *slog.Logger
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Option configures a Server.
type Option func(*Server)

// WithStore attaches the vector store reported by the stats resource.
func WithStore(s *storage.VectorStore) Option {
	return func(srv *Server) {
		srv.store = s
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = l
	}
}

// NewServer creates a new MCP server over g. engine may be nil, in which case
// the semantic search tools report missing credentials.
func NewServer(g *graph.KnowledgeGraph, engine *search.Engine, opts ...Option) *Server {
	s := &Server{
		graph:  g,
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// SDK returns the underlying protocol server.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	limit := &jsonschema.Schema{Type: "integer", Description: "Maximum number of results"}
	return []Tool{
		{
			Name:        "notegraph_search",
			Description: "Semantic search over the notes. The query is expanded with synonyms, acronyms and context terms and the results merged by best similarity.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query":     {Type: "string", Description: "Search query text"},
					"limit":     limit,
					"threshold": {Type: "number", Description: "Minimum similarity between 0 and 1"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "notegraph_research",
			Description: "Broad research search: many weighted query variations, results rewarded for repeated matches and spread across documents.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Research question or topic"},
					"limit": limit,
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "notegraph_find",
			Description: "Keyword search over text, paths, tags and headings, or glob matching on note paths.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Keyword, regular expression or glob pattern"},
					"glob":  {Type: "boolean", Description: "Treat query as a glob over relative paths"},
					"limit": limit,
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "notegraph_related",
			Description: "Notes related to a given note through links, clusters, shared link targets and tags.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"note":  {Type: "string", Description: "Note path, relative path or title"},
					"limit": limit,
				},
				Required: []string{"note"},
			},
		},
		{
			Name:        "notegraph_path",
			Description: "Shortest link paths from one note to another.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"from":  {Type: "string", Description: "Source note"},
					"to":    {Type: "string", Description: "Target note"},
					"limit": {Type: "integer", Description: "Maximum number of paths"},
				},
				Required: []string{"from", "to"},
			},
		},
		{
			Name:        "notegraph_read",
			Description: "Read one note: metadata, incoming and outgoing links, and its text unless content is false.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"note":    {Type: "string", Description: "Note path, relative path or title"},
					"content": {Type: "boolean", Description: "Include the note text (default true)"},
				},
				Required: []string{"note"},
			},
		},
		{
			Name:        "notegraph_ls",
			Description: "Directory-style listing of notes with link counts.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "Directory relative to the root (default the root)"},
				},
			},
		},
		{
			Name:        "notegraph_overview",
			Description: "Summary of the knowledge base: totals, hubs, clusters and orphans.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         URIOverview,
			Name:        "Knowledge Base Overview",
			Description: "Totals, hubs and orphans of the knowledge graph",
			MimeType:    "text/plain",
		},
		{
			URI:         URIStats,
			Name:        "Index Statistics",
			Description: "Graph statistics and vector store size as JSON",
			MimeType:    "application/json",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "notegraph_search":
		opts := search.Options{
			Limit:       intArg(args, "limit", 0),
			Threshold:   floatArg(args, "threshold", 0),
			MultiPhrase: true,
		}
		return s.handleSearch(ctx, stringArg(args, "query"), opts, false)
	case "notegraph_research":
		opts := search.Options{Limit: intArg(args, "limit", 0)}
		return s.handleSearch(ctx, stringArg(args, "query"), opts, true)
	case "notegraph_find":
		glob, _ := args["glob"].(bool)
		return s.handleFind(stringArg(args, "query"), glob, intArg(args, "limit", 20))
	case "notegraph_related":
		return s.handleRelated(stringArg(args, "note"), intArg(args, "limit", 10))
	case "notegraph_path":
		return s.handlePath(stringArg(args, "from"), stringArg(args, "to"), intArg(args, "limit", 3))
	case "notegraph_read":
		withContent := true
		if v, ok := args["content"].(bool); ok {
			withContent = v
		}
		return s.handleRead(stringArg(args, "note"), withContent)
	case "notegraph_ls":
		return ingestion.Listing(s.graph, stringArg(args, "path")), nil
	case "notegraph_overview":
		return ingestion.Overview(s.graph), nil
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case URIOverview:
		return ingestion.Overview(s.graph), nil
	case URIStats:
		return s.statsJSON()
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Serve runs the protocol server over stdin and stdout until the client
// disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Run serves newline-delimited JSON-RPC requests from stdin, writing one
// compact response line per request to stdout.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("dropping malformed request", slog.Any("error", err))
			continue
		}

		// Notifications carry no id and get no response.
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return result(id, map[string]any{})
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return result(id, map[string]any{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": ServerVersion,
		},
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": false,
			},
			"resources": map[string]any{
				"listChanged": false,
			},
		},
	})
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		}
	}
	return result(id, map[string]any{"tools": toolList})
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	text, err := s.CallTool(ctx, name, args)
	if err != nil {
		return result(id, map[string]any{
			"isError": true,
			"content": []map[string]any{{"type": "text", "text": err.Error()}},
		})
	}
	return result(id, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}
	return result(id, map[string]any{"resources": resourceList})
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)
	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return result(id, map[string]any{
		"contents": []map[string]any{
			{
				"uri":      uri,
				"mimeType": s.mimeType(uri),
				"text":     content,
			},
		},
	})
}

// Tool Handlers

func (s *Server) handleSearch(ctx context.Context, query string, opts search.Options, research bool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query required: %w", apperr.ErrInvalidInput)
	}
	if s.engine == nil {
		return "", fmt.Errorf("semantic search unavailable: %w", apperr.ErrMissingCredentials)
	}

	var (
		results []storage.SearchResult
		err     error
	)
	if research {
		results, err = s.engine.Research(ctx, query, opts)
	} else {
		results, err = s.engine.EnhancedSearch(ctx, query, opts)
	}
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}
	return formatSearchResults(results, query), nil
}

func (s *Server) handleFind(query string, glob bool, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query required: %w", apperr.ErrInvalidInput)
	}

	var sb strings.Builder
	if glob {
		paths, err := search.Glob(s.graph, query)
		if err != nil {
			return "", err
		}
		if len(paths) == 0 {
			return "No notes match " + query, nil
		}
		fmt.Fprintf(&sb, "%d notes match %s:\n\n", len(paths), query)
		for _, p := range paths[:min(len(paths), limit)] {
			fmt.Fprintf(&sb, "- %s\n", s.relPath(p))
		}
		return sb.String(), nil
	}

	results, err := search.KeywordSearch(s.graph, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}
	fmt.Fprintf(&sb, "Found %d notes for '%s':\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, r.Title, r.RelPath)
		fmt.Fprintf(&sb, "   Score: %.1f, matched: %s\n", r.Score, strings.Join(r.MatchTypes, ", "))
		if r.Context != "" {
			fmt.Fprintf(&sb, "   Line %d: %s\n", r.Line, r.Context)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (s *Server) handleRelated(ref string, limit int) (string, error) {
	node, err := s.findNote(ref)
	if err != nil {
		return "", err
	}

	related := graph.NewAnalyzer(s.graph).RelatedNotes(node.Path(), limit)
	if len(related) == 0 {
		return fmt.Sprintf("No notes related to %s", node.Document.RelPath), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Notes related to **%s** (%s):\n\n", node.Document.Title, node.Document.RelPath)
	for i, r := range related {
		fmt.Fprintf(&sb, "%d. %s [%s] score %.2f: %s\n", i+1, s.relPath(r.Path), r.Relation, r.Score, r.Reason)
	}
	return sb.String(), nil
}

func (s *Server) handlePath(from, to string, limit int) (string, error) {
	src, err := s.findNote(from)
	if err != nil {
		return "", err
	}
	dst, err := s.findNote(to)
	if err != nil {
		return "", err
	}

	paths := graph.NewAnalyzer(s.graph).ShortestPaths(src.Path(), dst.Path(), limit)
	if len(paths) == 0 {
		return fmt.Sprintf("No link path from %s to %s", src.Document.RelPath, dst.Document.RelPath), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Shortest paths from %s to %s:\n\n", src.Document.RelPath, dst.Document.RelPath)
	for i, p := range paths {
		hops := make([]string, len(p))
		for j, step := range p {
			hops[j] = s.relPath(step)
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.Join(hops, " -> "))
	}
	return sb.String(), nil
}

func (s *Server) handleRead(ref string, withContent bool) (string, error) {
	node, err := s.findNote(ref)
	if err != nil {
		return "", err
	}
	return ingestion.NoteReport(s.graph, node, withContent), nil
}

func (s *Server) statsJSON() (string, error) {
	payload := map[string]any{
		"graph":         graph.NewAnalyzer(s.graph).Stats(),
		"metrics_stale": s.graph.MetricsStale,
	}
	if s.store != nil {
		payload["vectors"] = s.store.Stats()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatSearchResults formats semantic search results as markdown.
func formatSearchResults(results []storage.SearchResult, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for '%s':\n\n", len(results), query)

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, r.Title, r.DocID)
		fmt.Fprintf(&sb, "   Score: %.3f, lines %d-%d\n", r.Score, r.StartLine, r.EndLine)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `notegraph_related` on a note for its neighbourhood.")
	return sb.String()
}

// Helper functions

func (s *Server) findNote(ref string) (*graph.GraphNode, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("note required: %w", apperr.ErrInvalidInput)
	}
	node := s.graph.Find(ref)
	if node == nil {
		return nil, fmt.Errorf("note %q: %w", ref, apperr.ErrNotFound)
	}
	return node, nil
}

func (s *Server) relPath(path string) string {
	if n := s.graph.Node(path); n != nil {
		return n.Document.RelPath
	}
	return path
}

func (s *Server) mimeType(uri string) string {
	for _, r := range s.ListResources() {
		if r.URI == uri {
			return r.MimeType
		}
	}
	return "text/plain"
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a JSON number argument, which decodes as float64.
func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func floatArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func result(id any, payload map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  payload,
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// registerTools registers every tool with the protocol server, routing calls
// through CallTool.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if req.Params != nil && len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return toolError(fmt.Errorf("decoding arguments: %w", apperr.ErrInvalidInput)), nil
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return toolError(err), nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers every resource with the protocol server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{
					URI:      req.Params.URI,
					MIMEType: s.mimeType(req.Params.URI),
					Text:     text,
				}},
			}, nil
		})
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
