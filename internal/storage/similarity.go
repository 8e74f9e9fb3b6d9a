package storage

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/graph"
)

// Snippet window around the first query word.
const (
	SnippetLength     = 200
	SnippetLookbehind = 50
)

// KindBoost returns the score multiplier applied to chunks of kind k.
func KindBoost(k graph.ChunkKind) float64 {
	switch k {
	case graph.ChunkTitle:
		return 1.2
	case graph.ChunkHeading:
		return 1.1
	default:
		return 1.0
	}
}

// CosineSimilarity computes the cosine similarity of two vectors. Vectors of
// different length fail with an *apperr.DimensionError. A zero vector has
// similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &apperr.DimensionError{Want: len(a), Got: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ExtractSnippet returns a window of text around the earliest case-insensitive
// occurrence of any query word, with ellipses where the window cuts the text
// and the heading breadcrumb in front.
func ExtractSnippet(text, query string, headingPath []string) string {
	runes := []rune(text)
	lower := lowerRunes(runes)

	pos := -1
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}
		i := strings.Index(lower, word)
		if i < 0 {
			continue
		}
		if r := utf8.RuneCountInString(lower[:i]); pos < 0 || r < pos {
			pos = r
		}
	}

	start := 0
	if pos > SnippetLookbehind {
		start = pos - SnippetLookbehind
	}
	end := min(start+SnippetLength, len(runes))

	var sb strings.Builder
	if len(headingPath) > 0 {
		sb.WriteString("[")
		sb.WriteString(strings.Join(headingPath, " > "))
		sb.WriteString("] ")
	}
	if start > 0 {
		sb.WriteString("...")
	}
	sb.WriteString(strings.Join(strings.Fields(string(runes[start:end])), " "))
	if end < len(runes) {
		sb.WriteString("...")
	}
	return sb.String()
}

// lowerRunes lowercases rune by rune so rune offsets stay aligned with the
// original text.
func lowerRunes(runes []rune) string {
	var sb strings.Builder
	sb.Grow(len(runes))
	for _, r := range runes {
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
