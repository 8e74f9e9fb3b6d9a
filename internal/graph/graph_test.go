package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeGraph_Find(t *testing.T) {
	t.Parallel()

	g := NewKnowledgeGraph("/kb")
	for _, d := range []*Document{
		{Path: "/kb/travel/Rome.md", RelPath: "travel/Rome.md", Title: "Rome Trip"},
		{Path: "/kb/work/plan.org", RelPath: "work/plan.org", Title: "Quarterly Plan"},
	} {
		g.Nodes[d.Path] = &GraphNode{Document: d, ClusterID: NoCluster}
	}

	tests := []struct {
		ref  string
		want string
	}{
		{"/kb/travel/Rome.md", "/kb/travel/Rome.md"},
		{"travel/Rome.md", "/kb/travel/Rome.md"},
		{"./travel/Rome.md", "/kb/travel/Rome.md"},
		{"travel/Rome", "/kb/travel/Rome.md"},
		{"rome", "/kb/travel/Rome.md"},
		{"rome trip", "/kb/travel/Rome.md"},
		{"Quarterly Plan", "/kb/work/plan.org"},
		{"plan", "/kb/work/plan.org"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			n := g.Find(tt.ref)
			require.NotNil(t, n)
			assert.Equal(t, tt.want, n.Path())
		})
	}

	t.Run("NoMatch", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, g.Find("paris"))
		assert.Nil(t, g.Find("  "))
	})
}
