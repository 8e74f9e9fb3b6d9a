package ingestion

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/parsers"
)

func TestWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.md":             "# Index",
		"travel/rome.md":       "# Rome",
		"travel/notes.txt":     "plain",
		"work/plan.org":        "* Plan",
		"work/diagram.png":     "binary",
		"papers/paper.pdf":     "%PDF",
		"drafts/wip.md":        "# WIP",
		"scratch.md":           "# Scratch",
		".gitignore":           "drafts/\nscratch.md\n# comment\n",
		".obsidian/app.md":     "# settings",
		".trash/old.md":        "# old",
		".notegraph/cache.md":  "# state",
		"node_modules/x/a.md":  "# dep",
		"travel/.hidden.md":    "# hidden",
		"journal/.draft/d1.md": "# nested hidden",
	})
	registry := parsers.NewRegistry(root)

	t.Run("SupportedFilesInOrder", func(t *testing.T) {
		t.Parallel()

		entries, err := Walk(root, registry.Supports, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"index.md",
			"travel/notes.txt",
			"travel/rome.md",
			"work/plan.org",
		}, relPaths(entries))

		for _, e := range entries {
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(e.RelPath)), e.Path)
			assert.False(t, e.Modified.IsZero())
			assert.Positive(t, e.Size)
		}
	})

	t.Run("AcceptAll", func(t *testing.T) {
		t.Parallel()

		entries, err := Walk(root, func(string) bool { return true }, nil)
		require.NoError(t, err)

		rels := relPaths(entries)
		assert.Contains(t, rels, "work/diagram.png")
		assert.Contains(t, rels, "papers/paper.pdf")
		assert.NotContains(t, rels, "drafts/wip.md")
		assert.NotContains(t, rels, "scratch.md")
		assert.NotContains(t, rels, ".gitignore")
	})

	t.Run("WarnsOnPDF", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		_, err := Walk(root, registry.Supports, logger)
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "skipping unsupported document")
		assert.Contains(t, buf.String(), "paper.pdf")
		assert.NotContains(t, buf.String(), "diagram.png")
	})

	t.Run("MissingRoot", func(t *testing.T) {
		t.Parallel()

		_, err := Walk(filepath.Join(root, "missing"), registry.Supports, nil)
		assert.Error(t, err)
	})
}

func TestPaths(t *testing.T) {
	t.Parallel()

	entries := []FileEntry{{Path: "/kb/a.md"}, {Path: "/kb/b.md"}}
	assert.Equal(t, []string{"/kb/a.md", "/kb/b.md"}, Paths(entries))
}
