package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
	"github.com/Benny93/notegraph/internal/ingestion"
	"github.com/Benny93/notegraph/internal/search"
	"github.com/Benny93/notegraph/internal/storage"
)

// fakeSearcher returns canned results and records the queries it saw.
type fakeSearcher struct {
	mu      sync.Mutex
	results []storage.SearchResult
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts storage.SearchOptions) ([]storage.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, nil
}

func buildGraph(t *testing.T) *graph.KnowledgeGraph {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.md":       "# Index\n\nLinks to [[alpha]] and [[beta]].\n",
		"alpha.md":       "# Alpha\n\nAlpha talks about hotels and links [[beta]].\n",
		"beta.md":        "# Beta\n\nBeta note.\n",
		"travel/rome.md": "# Rome\n\nBook the hotel near the Colosseum.\n",
	}
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	cfg := config.NewDefaultConfig(root)
	res, err := ingestion.NewPipeline(cfg).BuildGraph(t.Context(), true)
	require.NoError(t, err)
	return res.Graph
}

func newTestServer(t *testing.T) (*Server, *fakeSearcher) {
	t.Helper()
	fake := &fakeSearcher{results: []storage.SearchResult{
		{DocID: "travel/rome.md", Title: "Rome", ChunkID: "r-t", Score: 0.91, Snippet: "Book the hotel", StartLine: 3, EndLine: 3},
	}}
	cfg := config.NewDefaultConfig("/kb").Search
	engine := search.NewEngine(fake, cfg)
	return NewServer(buildGraph(t), engine), fake
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	tools := srv.ListTools()
	require.Len(t, tools, 8)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Contains(t, names, "notegraph_search")
	assert.Contains(t, names, "notegraph_research")
	assert.Contains(t, names, "notegraph_read")
	assert.Contains(t, names, "notegraph_ls")
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()

	srv, fake := newTestServer(t)
	ctx := t.Context()

	t.Run("Search", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_search", map[string]any{"query": "hotel booking", "limit": float64(5)})
		require.NoError(t, err)
		assert.Contains(t, out, "**Rome** (travel/rome.md)")
		assert.Contains(t, out, "Score: 0.910")

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Contains(t, fake.queries, "hotel booking")
	})

	t.Run("Research", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_research", map[string]any{"query": "hotel"})
		require.NoError(t, err)
		assert.Contains(t, out, "travel/rome.md")
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		_, err := srv.CallTool(ctx, "notegraph_search", map[string]any{})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("KeywordFind", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_find", map[string]any{"query": "hotel"})
		require.NoError(t, err)
		assert.Contains(t, out, "alpha.md")
		assert.Contains(t, out, "travel/rome.md")
	})

	t.Run("GlobFind", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_find", map[string]any{"query": "travel/*", "glob": true})
		require.NoError(t, err)
		assert.Contains(t, out, "- travel/rome.md\n")
		assert.NotContains(t, out, "/travel/rome.md")
		assert.NotContains(t, out, "alpha.md")
	})

	t.Run("Read", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_read", map[string]any{"note": "alpha"})
		require.NoError(t, err)
		assert.Contains(t, out, "=== alpha.md ===")
		assert.Contains(t, out, "INCOMING LINKS (1):\n← \"index.md\"")
		assert.Contains(t, out, "OUTGOING LINKS (1):\n→ \"beta.md\"")
		assert.Contains(t, out, "Alpha talks about hotels")
	})

	t.Run("ReadMetadataOnly", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_read", map[string]any{"note": "travel/rome.md", "content": false})
		require.NoError(t, err)
		assert.Contains(t, out, "=== travel/rome.md ===")
		assert.NotContains(t, out, "CONTENT:")
	})

	t.Run("ReadUnknownNote", func(t *testing.T) {
		_, err := srv.CallTool(ctx, "notegraph_read", map[string]any{"note": "paris"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Ls", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_ls", map[string]any{})
		require.NoError(t, err)
		assert.Contains(t, out, "├── travel/ (1 notes)\n")
		assert.Contains(t, out, "└── index.md [→2 ←0]\n")

		out, err = srv.CallTool(ctx, "notegraph_ls", map[string]any{"path": "travel"})
		require.NoError(t, err)
		assert.Contains(t, out, "└── rome.md [→0 ←0]\n")
	})

	t.Run("Related", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_related", map[string]any{"note": "alpha"})
		require.NoError(t, err)
		assert.Contains(t, out, "beta.md")
	})

	t.Run("Path", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_path", map[string]any{"from": "index", "to": "beta.md"})
		require.NoError(t, err)
		assert.Contains(t, out, "index.md -> beta.md")
	})

	t.Run("UnknownNote", func(t *testing.T) {
		_, err := srv.CallTool(ctx, "notegraph_related", map[string]any{"note": "paris"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Overview", func(t *testing.T) {
		out, err := srv.CallTool(ctx, "notegraph_overview", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "Documents: 4")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		_, err := srv.CallTool(ctx, "nope", nil)
		assert.Error(t, err)
	})
}

func TestServer_SearchWithoutEngine(t *testing.T) {
	t.Parallel()

	srv := NewServer(buildGraph(t), nil)
	_, err := srv.CallTool(t.Context(), "notegraph_search", map[string]any{"query": "hotel"})
	assert.ErrorIs(t, err, apperr.ErrMissingCredentials)

	out, err := srv.CallTool(t.Context(), "notegraph_find", map[string]any{"query": "hotel"})
	require.NoError(t, err)
	assert.Contains(t, out, "travel/rome.md")
}

func TestServer_ReadResource(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	overview, err := srv.ReadResource(t.Context(), URIOverview)
	require.NoError(t, err)
	assert.Contains(t, overview, "Documents: 4")

	raw, err := srv.ReadResource(t.Context(), URIStats)
	require.NoError(t, err)
	var stats struct {
		Graph graph.Stats `json:"graph"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &stats))
	assert.Equal(t, 4, stats.Graph.Nodes)
	assert.Equal(t, 3, stats.Graph.Edges)

	_, err = srv.ReadResource(t.Context(), "notegraph://nope")
	assert.Error(t, err)
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"notegraph_overview","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"notegraph_related","arguments":{"note":"paris"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"resources/read","params":{"uri":"notegraph://overview"}}`,
		`{"jsonrpc":"2.0","id":6,"method":"bogus"}`,
	}, "\n") + "\n"

	var out strings.Builder
	require.NoError(t, srv.Run(t.Context(), strings.NewReader(input), &out))

	var responses []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 6)

	info := responses[0]["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, ServerName, info["name"])

	tools := responses[1]["result"].(map[string]any)["tools"].([]any)
	assert.Len(t, tools, 8)

	call := responses[2]["result"].(map[string]any)
	text := call["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Documents: 4")

	failed := responses[3]["result"].(map[string]any)
	assert.Equal(t, true, failed["isError"])

	contents := responses[4]["result"].(map[string]any)["contents"].([]any)
	assert.Equal(t, URIOverview, contents[0].(map[string]any)["uri"])

	assert.Equal(t, float64(-32601), responses[5]["error"].(map[string]any)["code"])
}

func TestServer_RunNilStreams(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	assert.Error(t, srv.Run(t.Context(), nil, nil))
}

func TestServer_SDKSession(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.SDK().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "notegraph_find",
		Arguments: map[string]any{"query": "travel/*", "glob": true},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "travel/rome.md")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "notegraph_related",
		Arguments: map[string]any{"note": "paris"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
