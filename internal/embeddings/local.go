package embeddings

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultLocalDimensions is the vector length of the local provider when none
// is configured.
const DefaultLocalDimensions = 256

// LocalProvider produces deterministic bag-of-words embeddings without any
// network access. Terms and adjacent term pairs are hashed into a fixed number
// of buckets with a signed hash, weighted by sublinear term frequency and L2
// normalized. It is meant for offline use and tests.
type LocalProvider struct {
	dims int
}

// NewLocalProvider creates a local provider producing vectors of length dims.
func NewLocalProvider(dims int) *LocalProvider {
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &LocalProvider{dims: dims}
}

// Name implements Provider.
func (p *LocalProvider) Name() string {
	return "local/hashing"
}

// Dimensions implements Provider.
func (p *LocalProvider) Dimensions() int {
	return p.dims
}

// Embed implements Provider.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(text)
	}
	return out, nil
}

func (p *LocalProvider) embed(text string) []float32 {
	vec := make([]float64, p.dims)

	terms := Tokenize(text)
	tf := make(map[string]int, len(terms))
	for i, term := range terms {
		tf[term]++
		if i > 0 {
			tf[terms[i-1]+" "+term]++
		}
	}

	for term, count := range tf {
		h := xxhash.Sum64String(term)
		idx := int(h % uint64(p.dims))
		sign := 1.0
		if h&(1<<63) != 0 {
			sign = -1.0
		}
		weight := 1 + math.Log(float64(count))
		if strings.Contains(term, " ") {
			weight *= 0.5
		}
		vec[idx] += sign * weight
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	embedding := make([]float32, p.dims)
	if norm == 0 || math.IsNaN(norm) {
		return embedding
	}
	for i, v := range vec {
		embedding[i] = float32(v / norm)
	}
	return embedding
}

// Tokenize lowercases text and splits it on non-alphanumeric characters,
// dropping terms shorter than two characters.
func Tokenize(text string) []string {
	text = strings.ToLower(text)

	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	filtered := make([]string, 0, len(terms))
	for _, term := range terms {
		if len(term) >= 2 {
			filtered = append(filtered, term)
		}
	}
	return filtered
}
