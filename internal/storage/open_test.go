package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{config.BackendJSON, config.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewDefaultConfig(t.TempDir())
			cfg.Storage.Backend = backend

			store, err := Open(t.Context(), cfg, &keywordProvider{})
			require.NoError(t, err)

			doc := &graph.Document{RelPath: "a.md", Title: "a"}
			chunks := []graph.Chunk{{ID: "a-p0", Text: "alpha one", Kind: graph.ChunkParagraph}}
			require.NoError(t, store.ReplaceDocument(t.Context(), doc, chunks))
			require.NoError(t, store.Save(t.Context()))
			require.NoError(t, store.Close())

			reopened, err := Open(t.Context(), cfg, &keywordProvider{})
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, []string{"a.md"}, reopened.Documents())
		})
	}

	t.Run("UnknownBackend", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewDefaultConfig(t.TempDir())
		cfg.Storage.Backend = "sqlite"

		_, err := Open(t.Context(), cfg, nil)
		assert.Error(t, err)
	})
}
