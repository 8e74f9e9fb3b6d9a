package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/storage"
)

var knowledgeBase = map[string]string{
	"index.md": "# Index\n\nStart here. This index links to [[alpha]] and [[beta]] and to the travel notes in [[rome]].\n",
	"alpha.md": "# Alpha\n\nAlpha covers project planning, weekly reviews and links to [[beta]] for the details.\n",
	"beta.md":  "# Beta\n\nBeta holds the detailed task list for the project and has no outgoing links at all.\n",
	"travel/rome.md": "# Rome\n\nRome colosseum hotel booking: reserve the hotel near the colosseum early, " +
		"rome gets busy in summer and the colosseum tickets sell out.\n",
	"drafts/ignored.md": "# Ignored\n\nThis draft is excluded by the gitignore file and never indexed.\n",
	".gitignore":        "drafts/\n",
	ConfigFileName:      "search:\n  threshold: 0.05\n",
}

func writeKnowledgeBase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range knowledgeBase {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

// run executes the CLI with the local provider against root.
func run(t *testing.T, root, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cli := NewCLI()
	cli.Stdin = strings.NewReader(stdin)
	cli.Stdout = &stdout
	cli.Stderr = &stderr

	full := append([]string{"--root", root, "--provider", "local", "--quiet"}, args...)
	err := cli.Execute(full)
	return stdout.String(), err
}

func TestBuildCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("BuildAndIndex", func(t *testing.T) {
		root := writeKnowledgeBase(t)

		out, err := run(t, root, "", "build")
		require.NoError(t, err)
		assert.Contains(t, out, "Graph built")
		assert.Contains(t, out, "Documents:      4")
		assert.Contains(t, out, "Links:          4")
		assert.Contains(t, out, "Vector store up to date")
		assert.Contains(t, out, "Embedded:       4")

		_, err = os.Stat(filepath.Join(root, config.DataDirName, storage.JSONFileName))
		assert.NoError(t, err)

		out, err = run(t, root, "", "build")
		require.NoError(t, err)
		assert.Contains(t, out, "Graph loaded from cache")
		assert.Contains(t, out, "Embedded:       0")
		assert.Contains(t, out, "Unchanged:      4")
	})

	t.Run("ForceRebuilds", func(t *testing.T) {
		root := writeKnowledgeBase(t)

		_, err := run(t, root, "", "build", "--no-index")
		require.NoError(t, err)
		out, err := run(t, root, "", "build", "--force", "--no-index")
		require.NoError(t, err)
		assert.Contains(t, out, "Graph built")
		assert.NotContains(t, out, "Vector store")
	})

	t.Run("BadgerBackend", func(t *testing.T) {
		root := writeKnowledgeBase(t)

		_, err := run(t, root, "", "--backend", "badger", "build")
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(root, config.DataDirName, storage.BadgerDirName))
		assert.NoError(t, err)
	})

	t.Run("InvalidRoot", func(t *testing.T) {
		_, err := run(t, filepath.Join(t.TempDir(), "missing"), "", "build")
		assert.Error(t, err)
	})

	t.Run("RootIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "note.md")
		require.NoError(t, os.WriteFile(file, []byte("# Note\n"), 0o644))

		_, err := run(t, file, "", "build")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("InvalidBackend", func(t *testing.T) {
		_, err := run(t, writeKnowledgeBase(t), "", "--backend", "sqlite", "build")
		assert.Error(t, err)
	})
}

func TestBuildCmd_MissingCredentials(t *testing.T) {
	t.Parallel()

	root := writeKnowledgeBase(t)
	var stdout, stderr bytes.Buffer
	cli := NewCLI()
	cli.Stdout = &stdout
	cli.Stderr = &stderr

	require.NoError(t, cli.Execute([]string{"--root", root, "--provider", "openai", "--api-key=", "build"}))
	assert.Contains(t, stdout.String(), "Graph built")
	assert.NotContains(t, stdout.String(), "Vector store")
	assert.Contains(t, stderr.String(), "skipping embedding")

	cli = NewCLI()
	cli.Stdout = &stdout
	cli.Stderr = &stderr
	err := cli.Execute([]string{"--root", root, "--provider", "openai", "--api-key=", "search", "hotel"})
	assert.ErrorIs(t, err, apperr.ErrMissingCredentials)
}

func TestSearchCmd_Run(t *testing.T) {
	t.Parallel()

	root := writeKnowledgeBase(t)
	_, err := run(t, root, "", "build")
	require.NoError(t, err)

	t.Run("JSON", func(t *testing.T) {
		out, err := run(t, root, "", "search", "--single", "--json", "rome colosseum hotel booking")
		require.NoError(t, err)

		var results []storage.SearchResult
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.NotEmpty(t, results)
		assert.Equal(t, "travel/rome.md", results[0].DocID)
	})

	t.Run("Text", func(t *testing.T) {
		out, err := run(t, root, "", "search", "rome colosseum hotel booking")
		require.NoError(t, err)
		assert.Contains(t, out, "(travel/rome.md)")
		assert.Contains(t, out, "Score:")
	})

	t.Run("Research", func(t *testing.T) {
		out, err := run(t, root, "", "research", "--json", "rome colosseum hotel booking")
		require.NoError(t, err)

		var results []storage.SearchResult
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		assert.NotEmpty(t, results)
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		_, err := run(t, root, "", "search", "--single", " ")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestGraphCommands(t *testing.T) {
	t.Parallel()

	root := writeKnowledgeBase(t)
	_, err := run(t, root, "", "build", "--no-index")
	require.NoError(t, err)

	t.Run("Overview", func(t *testing.T) {
		out, err := run(t, root, "", "overview")
		require.NoError(t, err)
		assert.Contains(t, out, "Documents: 4")
		assert.Contains(t, out, "Links: 4 (0 broken)")
	})

	t.Run("OverviewJSON", func(t *testing.T) {
		out, err := run(t, root, "", "overview", "--json")
		require.NoError(t, err)

		var payload struct {
			Stats struct {
				Nodes int `json:"total_nodes"`
			} `json:"stats"`
			Orphans []string `json:"orphans"`
			Bridges []string `json:"bridges"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Equal(t, 4, payload.Stats.Nodes)
		assert.Empty(t, payload.Orphans)
		assert.Equal(t, []string{"index.md"}, payload.Bridges)
	})

	t.Run("Read", func(t *testing.T) {
		out, err := run(t, root, "", "read", "alpha")
		require.NoError(t, err)
		assert.Contains(t, out, "=== alpha.md ===\n")
		assert.Contains(t, out, "INCOMING LINKS (1):\n← \"index.md\"")
		assert.Contains(t, out, "OUTGOING LINKS (1):\n→ \"beta.md\"")
		assert.Contains(t, out, "CONTENT:\n")
		assert.Contains(t, out, "Alpha covers project planning")
	})

	t.Run("ReadNoContent", func(t *testing.T) {
		out, err := run(t, root, "", "read", "--no-content", "travel/rome.md")
		require.NoError(t, err)
		assert.Contains(t, out, "=== travel/rome.md ===\n")
		assert.NotContains(t, out, "CONTENT:")
	})

	t.Run("ReadUnknown", func(t *testing.T) {
		_, err := run(t, root, "", "read", "paris")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Ls", func(t *testing.T) {
		out, err := run(t, root, "", "ls")
		require.NoError(t, err)
		assert.Equal(t, "/\n"+
			"├── travel/ (1 notes)\n"+
			"│   ├── rome.md [→0 ←1]\n"+
			"└── alpha.md [→1 ←1]\n"+
			"└── beta.md [→0 ←2]\n"+
			"└── index.md [→3 ←0]\n", out)
	})

	t.Run("LsSubdirectory", func(t *testing.T) {
		out, err := run(t, root, "", "ls", "travel")
		require.NoError(t, err)
		assert.Equal(t, "/travel\n└── rome.md [→0 ←1]\n", out)
	})

	t.Run("Related", func(t *testing.T) {
		out, err := run(t, root, "", "related", "alpha")
		require.NoError(t, err)
		assert.Contains(t, out, "Notes related to")
		assert.Contains(t, out, "beta.md")
	})

	t.Run("RelatedUnknown", func(t *testing.T) {
		_, err := run(t, root, "", "related", "paris")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Path", func(t *testing.T) {
		out, err := run(t, root, "", "path", "index", "beta")
		require.NoError(t, err)
		assert.Contains(t, out, "1. index.md -> beta.md")
	})

	t.Run("NoPath", func(t *testing.T) {
		out, err := run(t, root, "", "path", "beta", "index")
		require.NoError(t, err)
		assert.Contains(t, out, "No link path from beta.md to index.md")
	})

	t.Run("FindKeyword", func(t *testing.T) {
		out, err := run(t, root, "", "find", "colosseum")
		require.NoError(t, err)
		assert.Contains(t, out, "(travel/rome.md)")
		assert.NotContains(t, out, "ignored.md")
	})

	t.Run("FindGlob", func(t *testing.T) {
		out, err := run(t, root, "", "find", "--glob", "travel/*")
		require.NoError(t, err)
		assert.Equal(t, "travel/rome.md\n", out)
	})

	t.Run("FindGrep", func(t *testing.T) {
		out, err := run(t, root, "", "find", "--grep", "-C", "0", "task list")
		require.NoError(t, err)
		assert.Contains(t, out, "beta.md:3:")
	})

	t.Run("FindModesExclusive", func(t *testing.T) {
		_, err := run(t, root, "", "find", "--glob", "--grep", "x")
		assert.Error(t, err)
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Parallel()

	root := writeKnowledgeBase(t)

	out, err := run(t, root, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph cache:    none")
	assert.Contains(t, out, "Vector store:   0 documents")

	_, err = run(t, root, "", "build")
	require.NoError(t, err)

	out, err = run(t, root, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph cache:    4 documents")
	assert.Contains(t, out, "Changes:        none")
	assert.Contains(t, out, "Vector store:   4 documents")
	assert.Contains(t, out, "Embeddings:     local")

	require.NoError(t, os.WriteFile(filepath.Join(root, "gamma.md"), []byte("# Gamma\n"), 0o644))
	out, err = run(t, root, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "0 modified, 1 added, 0 deleted")
}

func TestCleanCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NothingToClean", func(t *testing.T) {
		_, err := run(t, writeKnowledgeBase(t), "", "clean", "--force")
		assert.Error(t, err)
	})

	t.Run("Declined", func(t *testing.T) {
		root := writeKnowledgeBase(t)
		_, err := run(t, root, "", "build", "--no-index")
		require.NoError(t, err)

		out, err := run(t, root, "n\n", "clean")
		require.NoError(t, err)
		assert.Contains(t, out, "Aborted")
		assert.DirExists(t, filepath.Join(root, config.DataDirName))
	})

	t.Run("Confirmed", func(t *testing.T) {
		root := writeKnowledgeBase(t)
		_, err := run(t, root, "", "build", "--no-index")
		require.NoError(t, err)

		out, err := run(t, root, "y\n", "clean")
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted")
		assert.NoDirExists(t, filepath.Join(root, config.DataDirName))
		assert.FileExists(t, filepath.Join(root, ConfigFileName))
	})
}

func TestMCPCmd_Run(t *testing.T) {
	t.Parallel()

	root := writeKnowledgeBase(t)
	stdin := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"notegraph_find","arguments":{"query":"travel/*","glob":true}}}` + "\n"

	out, err := run(t, root, stdin, "mcp")
	require.NoError(t, err)

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &resp))
	assert.Equal(t, 1, resp.ID)
	require.Len(t, resp.Result.Content, 1)
	assert.Contains(t, resp.Result.Content[0].Text, "travel/rome.md")
}

func TestSetupCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("Stdout", func(t *testing.T) {
		root := t.TempDir()
		out, err := run(t, root, "", "setup")
		require.NoError(t, err)

		var cfg map[string]map[string]struct {
			Command string   `json:"command"`
			Args    []string `json:"args"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &cfg))
		server := cfg["mcpServers"]["notegraph"]
		assert.Equal(t, "notegraph", server.Command)
		assert.Equal(t, []string{"--root", root, "serve", "--watch"}, server.Args)
	})

	t.Run("ClaudeLocal", func(t *testing.T) {
		root := t.TempDir()
		out, err := run(t, root, "", "setup", "--claude")
		require.NoError(t, err)
		assert.Contains(t, out, "Created claude MCP config")
		assert.FileExists(t, filepath.Join(root, ".claude", "mcp.json"))
	})

	t.Run("CustomPathText", func(t *testing.T) {
		dir := t.TempDir()
		_, err := run(t, t.TempDir(), "", "setup", "--cursor", "--format", "text", "--file-path", dir)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(dir, "mcp.json"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "# MCP configuration for notegraph")
		assert.Contains(t, string(data), `"notegraph"`)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "", "setup", "--format", "yaml")
		assert.Error(t, err)
	})
}
