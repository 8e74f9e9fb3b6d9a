package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/graph"
)

func keywordGraph() *graph.KnowledgeGraph {
	g := graph.NewKnowledgeGraph("/kb")
	docs := []*graph.Document{
		{
			Path:     "/kb/travel/rome.md",
			RelPath:  "travel/rome.md",
			Title:    "Rome Trip",
			Tags:     []string{"travel", "italy"},
			Headings: []graph.Heading{{Level: 1, Text: "Rome Trip", Line: 1}, {Level: 2, Text: "Hotel", Line: 3}},
			Body:     "# Rome Trip\n\n## Hotel\nBook the hotel. Hotel near station.\n",
		},
		{
			Path:    "/kb/work/hotel.md",
			RelPath: "work/hotel.md",
			Title:   "Hotel Project",
			Tags:    []string{"work"},
			Body:    "Nothing here",
		},
	}
	for _, d := range docs {
		g.Nodes[d.Path] = &graph.GraphNode{Document: d, ClusterID: graph.NoCluster}
	}
	return g
}

func TestKeywordSearch(t *testing.T) {
	t.Parallel()

	g := keywordGraph()

	t.Run("MergesStrategies", func(t *testing.T) {
		results, err := KeywordSearch(g, "hotel", 0)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "work/hotel.md", results[0].RelPath)
		assert.InDelta(t, (11+2)*1.5, results[0].Score, 1e-9)
		assert.Equal(t, []string{MatchHeading, MatchPath}, results[0].MatchTypes)

		assert.Equal(t, "travel/rome.md", results[1].RelPath)
		assert.InDelta(t, (3+3)*1.5, results[1].Score, 1e-9)
		assert.Equal(t, []string{MatchHeading, MatchText}, results[1].MatchTypes)
		assert.Equal(t, 3, results[1].Line)
	})

	t.Run("Tag", func(t *testing.T) {
		results, err := KeywordSearch(g, "#italy", 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []string{MatchTag}, results[0].MatchTypes)
		assert.InDelta(t, 3.0, results[0].Score, 1e-9)
		assert.Equal(t, "Tags: #italy", results[0].Context)
	})

	t.Run("InvalidRegexFallsBackToLiteral", func(t *testing.T) {
		results, err := KeywordSearch(g, "station.(", 0)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = KeywordSearch(g, "hotel. Hotel", 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []string{MatchText}, results[0].MatchTypes)
	})

	t.Run("Limit", func(t *testing.T) {
		results, err := KeywordSearch(g, "hotel", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		_, err := KeywordSearch(g, " ", 0)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestKeywordSearch_ReadsFileWhenBodyMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(p, []byte("alpha\nbeta alpha\n"), 0o644))

	g := graph.NewKnowledgeGraph(dir)
	g.Nodes[p] = &graph.GraphNode{Document: &graph.Document{Path: p, RelPath: "note.md", Title: "note"}}

	results, err := KeywordSearch(g, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 2.0, results[0].Score, 1e-9)
	assert.Equal(t, "alpha beta alpha", results[0].Context)
}

func TestGlob(t *testing.T) {
	t.Parallel()

	g := keywordGraph()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*.md", []string{"/kb/travel/rome.md", "/kb/work/hotel.md"}},
		{"travel/*", []string{"/kb/travel/rome.md"}},
		{"hot*", []string{"/kb/work/hotel.md"}},
		{"*.org", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Glob(g, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("BadPattern", func(t *testing.T) {
		_, err := Glob(g, "[")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestGrep(t *testing.T) {
	t.Parallel()

	matches, err := Grep(keywordGraph(), "hotel", 1)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "travel/rome.md", matches[0].RelPath)
	assert.Equal(t, 3, matches[0].Line)
	assert.Equal(t, "## Hotel", matches[0].Text)
	assert.Equal(t, []string{"", "## Hotel", "Book the hotel. Hotel near station."}, matches[0].Context)
	assert.Equal(t, 4, matches[1].Line)
}
