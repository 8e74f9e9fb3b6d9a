package search

import (
	"math"
	"sort"

	"github.com/Benny93/notegraph/internal/storage"
)

// MergeMax merges result sets by chunk id, keeping for each chunk the entry
// with the highest score. On equal scores the first-seen entry wins. The
// merged list is sorted by score descending.
func MergeMax(sets ...[]storage.SearchResult) []storage.SearchResult {
	index := make(map[string]int)
	var merged []storage.SearchResult
	for _, set := range sets {
		for _, r := range set {
			i, ok := index[r.ChunkID]
			if !ok {
				index[r.ChunkID] = len(merged)
				merged = append(merged, r)
				continue
			}
			if r.Score > merged[i].Score {
				merged[i] = r
			}
		}
	}
	sortByScore(merged)
	return merged
}

// MergeWeighted merges result sets by chunk id, rewarding chunks found by
// several sets: the merged score is max * (1 + 0.1 * ln(count)), where count
// is the number of sets containing the chunk.
func MergeWeighted(sets ...[]storage.SearchResult) []storage.SearchResult {
	index := make(map[string]int)
	var merged []storage.SearchResult
	var counts []int
	for _, set := range sets {
		seen := make(map[string]bool, len(set))
		for _, r := range set {
			if seen[r.ChunkID] {
				continue
			}
			seen[r.ChunkID] = true

			i, ok := index[r.ChunkID]
			if !ok {
				index[r.ChunkID] = len(merged)
				merged = append(merged, r)
				counts = append(counts, 1)
				continue
			}
			counts[i]++
			if r.Score > merged[i].Score {
				merged[i] = r
			}
		}
	}
	for i := range merged {
		merged[i].Score *= 1 + 0.1*math.Log(float64(counts[i]))
	}
	sortByScore(merged)
	return merged
}

// Diversify selects up to limit results from a score-sorted list while
// letting no document contribute more than ceil(limit * ratio) of them. When
// the cap leaves fewer than limit results, the best skipped results fill the
// remaining slots.
func Diversify(results []storage.SearchResult, limit int, ratio float64) []storage.SearchResult {
	if limit <= 0 {
		return results
	}
	maxPerDoc := max(int(math.Ceil(float64(limit)*ratio)), 1)

	perDoc := make(map[string]int)
	taken := make([]bool, len(results))
	selected := make([]storage.SearchResult, 0, limit)
	for i, r := range results {
		if len(selected) == limit {
			break
		}
		if perDoc[r.DocID] >= maxPerDoc {
			continue
		}
		perDoc[r.DocID]++
		taken[i] = true
		selected = append(selected, r)
	}
	for i, r := range results {
		if len(selected) == limit {
			break
		}
		if !taken[i] {
			selected = append(selected, r)
		}
	}
	sortByScore(selected)
	return selected
}

func sortByScore(results []storage.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
