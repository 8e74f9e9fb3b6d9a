package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/notegraph/internal/graph"
)

// setupKB writes empty files under a temp root and returns the root and
// the absolute paths.
func setupKB(t *testing.T, files ...string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# "+f), 0o644))
		paths = append(paths, p)
	}
	return root, paths
}

func wiki(source, text string) *graph.Link {
	return &graph.Link{Source: source, Kind: graph.LinkWiki, Text: text}
}

func inline(source, text string) *graph.Link {
	return &graph.Link{Source: source, Kind: graph.LinkInline, Text: text}
}

func TestResolver_Wiki(t *testing.T) {
	t.Parallel()

	root, paths := setupKB(t,
		"index.md",
		"projects/alpha.md",
		"projects/notes.md",
		"areas/notes.md",
		"areas/Travel Plans.md",
		"archive/meeting-2024.md",
		"archive/zeta-meeting.md",
	)
	r := New(root, paths)
	at := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	tests := []struct {
		name   string
		source string
		text   string
		want   string
	}{
		{"ExplicitPathRelativeToRoot", "index.md", "projects/alpha", "projects/alpha.md"},
		{"ExplicitPathRelativeToSource", "projects/alpha.md", "../areas/notes", "areas/notes.md"},
		{"ExactStem", "index.md", "alpha", "projects/alpha.md"},
		{"SameStemPrefersSourceDirProjects", "projects/alpha.md", "notes", "projects/notes.md"},
		{"SameStemPrefersSourceDirAreas", "areas/Travel Plans.md", "notes", "areas/notes.md"},
		{"SameStemElsewhereTakesFirst", "index.md", "notes", "areas/notes.md"},
		{"CaseInsensitiveStem", "index.md", "travel plans", "areas/Travel Plans.md"},
		{"SubstringInSourceDir", "archive/zeta-meeting.md", "meeting", "archive/meeting-2024.md"},
		{"GlobalSubstringLexicographic", "index.md", "meeting", "archive/meeting-2024.md"},
		{"TrimmedWhitespace", "index.md", "  alpha ", "projects/alpha.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link := wiki(at(tt.source), tt.text)
			r.Resolve(link)
			assert.False(t, link.Broken)
			assert.Equal(t, at(tt.want), link.Target)
		})
	}

	t.Run("Unresolvable", func(t *testing.T) {
		t.Parallel()
		link := wiki(at("index.md"), "does-not-exist")
		r.Resolve(link)
		assert.True(t, link.Broken)
		assert.Empty(t, link.Target)
	})
}

func TestResolver_Inline(t *testing.T) {
	t.Parallel()

	root, paths := setupKB(t, "index.md", "docs/guide.md", "docs/raw.txt")
	r := New(root, paths)
	at := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	tests := []struct {
		name   string
		source string
		text   string
		want   string
		broken bool
	}{
		{name: "Anchor", source: "index.md", text: "#intro", want: "index.md"},
		{name: "AsIs", source: "index.md", text: "docs/guide.md", want: "docs/guide.md"},
		{name: "AppendExt", source: "index.md", text: "docs/guide", want: "docs/guide.md"},
		{name: "WithFragment", source: "index.md", text: "docs/guide.md#setup", want: "docs/guide.md"},
		{name: "ParentDir", source: "docs/guide.md", text: "../index.md", want: "index.md"},
		{name: "OtherExtension", source: "index.md", text: "docs/raw.txt", want: "docs/raw.txt"},
		{name: "Missing", source: "index.md", text: "docs/missing.md", broken: true},
		{name: "EscapesRoot", source: "index.md", text: "../outside.md", broken: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link := inline(at(tt.source), tt.text)
			r.Resolve(link)
			assert.Equal(t, tt.broken, link.Broken)
			if !tt.broken {
				assert.Equal(t, at(tt.want), link.Target)
			}
		})
	}
}

func TestResolver_EscapingRootIsRejectedEvenWhenFileExists(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	root := filepath.Join(parent, "kb")
	require.NoError(t, os.MkdirAll(root, 0o755))
	outside := filepath.Join(parent, "secret.md")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	src := filepath.Join(root, "index.md")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	r := New(root, []string{src})
	link := inline(src, "../secret.md")
	r.Resolve(link)
	assert.True(t, link.Broken)
}

func TestResolver_AddRemove(t *testing.T) {
	t.Parallel()

	root, paths := setupKB(t, "index.md", "later.md")
	r := New(root, paths[:1])
	src := paths[0]

	link := wiki(src, "later")
	r.Resolve(link)
	assert.True(t, link.Broken)

	r.Add(paths[1:])
	r.Add(paths[1:])
	assert.Equal(t, 2, r.Len())

	link = wiki(src, "later")
	r.Resolve(link)
	assert.False(t, link.Broken)
	assert.Equal(t, paths[1], link.Target)

	r.Remove(paths[1:])
	assert.Equal(t, 1, r.Len())
	link = wiki(src, "later")
	r.Resolve(link)
	assert.True(t, link.Broken)
}

func TestResolver_TargetDeletedFromDisk(t *testing.T) {
	t.Parallel()

	root, paths := setupKB(t, "index.md", "gone.md")
	r := New(root, paths)
	require.NoError(t, os.Remove(paths[1]))

	link := wiki(paths[0], "gone")
	r.Resolve(link)
	assert.Equal(t, paths[1], link.Target)
	assert.True(t, link.Broken)
}
