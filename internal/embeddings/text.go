package embeddings

import (
	"strings"

	"github.com/Benny93/notegraph/internal/graph"
)

// GenerateEmbeddingText returns the text embedded for a chunk: the document
// title and heading breadcrumb followed by the chunk text. Title chunks
// already start with the title.
func GenerateEmbeddingText(title string, chunk graph.Chunk) string {
	if chunk.Kind == graph.ChunkTitle {
		return chunk.Text
	}

	var parts []string
	if title != "" {
		parts = append(parts, title)
	}
	if len(chunk.HeadingPath) > 0 {
		parts = append(parts, strings.Join(chunk.HeadingPath, " > "))
	}
	parts = append(parts, chunk.Text)
	return strings.Join(parts, "\n")
}
