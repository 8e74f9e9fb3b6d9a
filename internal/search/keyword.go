package search

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/graph"
)

// Match types reported by KeywordSearch.
const (
	MatchText    = "text"
	MatchPath    = "path"
	MatchTag     = "tag"
	MatchHeading = "heading"
)

// multiMatchBoost multiplies the summed score of a document matched by more
// than one strategy.
const multiMatchBoost = 1.5

// contextChars is the number of characters shown on each side of a text match.
const contextChars = 100

// KeywordResult is a document found by KeywordSearch.
type KeywordResult struct {
	Path       string   `json:"path"`
	RelPath    string   `json:"rel_path"`
	Title      string   `json:"title"`
	Score      float64  `json:"score"`
	MatchTypes []string `json:"match_types"`
	Context    string   `json:"context,omitempty"`
	Line       int      `json:"line,omitempty"`
}

// GrepMatch is one matching line found by Grep.
type GrepMatch struct {
	RelPath string   `json:"rel_path"`
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Context []string `json:"context"`
}

// KeywordSearch runs the text, path, tag and heading strategies over every
// document of g and merges their hits per document. Documents matched by more
// than one strategy get their summed score multiplied by 1.5.
func KeywordSearch(g *graph.KnowledgeGraph, query string, limit int) ([]KeywordResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalidInput)
	}
	re := compilePattern(query)

	var merged []KeywordResult
	for _, doc := range g.Documents() {
		hits := make([]KeywordResult, 0, 4)
		if hit, ok := textMatch(doc, re); ok {
			hits = append(hits, hit)
		}
		if hit, ok := pathMatch(doc, query); ok {
			hits = append(hits, hit)
		}
		if hit, ok := tagMatch(doc, query); ok {
			hits = append(hits, hit)
		}
		if hit, ok := headingMatch(doc, query); ok {
			hits = append(hits, hit)
		}
		if len(hits) > 0 {
			merged = append(merged, mergeHits(hits))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func mergeHits(hits []KeywordResult) KeywordResult {
	if len(hits) == 1 {
		return hits[0]
	}

	out := hits[0]
	out.Score = 0
	out.MatchTypes = nil
	var contexts []string
	for _, h := range hits {
		out.Score += h.Score
		out.MatchTypes = append(out.MatchTypes, h.MatchTypes...)
		if h.Context != "" && len(contexts) < 3 {
			contexts = append(contexts, h.Context)
		}
		if out.Line == 0 {
			out.Line = h.Line
		}
	}
	out.Score *= multiMatchBoost
	sort.Strings(out.MatchTypes)
	out.Context = strings.Join(contexts, " | ")
	return out
}

// compilePattern compiles query as a case-insensitive multi-line regular
// expression, falling back to a literal match when it is not valid syntax.
func compilePattern(query string) *regexp.Regexp {
	re, err := regexp.Compile(`(?im)` + query)
	if err != nil {
		re = regexp.MustCompile(`(?im)` + regexp.QuoteMeta(query))
	}
	return re
}

func newHit(doc *graph.Document, matchType string, score float64) KeywordResult {
	return KeywordResult{
		Path:       doc.Path,
		RelPath:    doc.RelPath,
		Title:      doc.Title,
		Score:      score,
		MatchTypes: []string{matchType},
	}
}

// readContent returns the document text, reading the file when the body was
// not kept in memory.
func readContent(doc *graph.Document) (string, bool) {
	if doc.Body != "" {
		return doc.Body, true
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func textMatch(doc *graph.Document, re *regexp.Regexp) (KeywordResult, bool) {
	content, ok := readContent(doc)
	if !ok {
		return KeywordResult{}, false
	}
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return KeywordResult{}, false
	}

	hit := newHit(doc, MatchText, float64(len(matches)))
	first := matches[0]
	hit.Context = matchContext(content, first[0], first[1])
	hit.Line = strings.Count(content[:first[0]], "\n") + 1
	return hit, true
}

func matchContext(content string, start, end int) string {
	from := max(0, start-contextChars)
	to := min(len(content), end+contextChars)
	ctx := strings.Join(strings.Fields(strings.ToValidUTF8(content[from:to], "")), " ")
	if from > 0 {
		ctx = "..." + ctx
	}
	if to < len(content) {
		ctx += "..."
	}
	return ctx
}

func pathMatch(doc *graph.Document, query string) (KeywordResult, bool) {
	q := strings.ToLower(query)
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(doc.Path), filepath.Ext(doc.Path)))

	score := 0.0
	switch {
	case stem == q:
		score = 10
	case strings.Contains(stem, q):
		score = 5
	}
	for _, part := range strings.Split(filepath.ToSlash(doc.RelPath), "/") {
		if part != "" && strings.Contains(strings.ToLower(part), q) {
			score++
		}
	}
	if score == 0 {
		return KeywordResult{}, false
	}

	hit := newHit(doc, MatchPath, score)
	hit.Context = "Path: " + doc.RelPath
	return hit, true
}

func tagMatch(doc *graph.Document, query string) (KeywordResult, bool) {
	q := strings.TrimPrefix(strings.ToLower(query), "#")
	if q == "" {
		return KeywordResult{}, false
	}

	score := 0.0
	var matched []string
	for _, tag := range doc.Tags {
		t := strings.ToLower(tag)
		if !strings.Contains(t, q) {
			continue
		}
		matched = append(matched, "#"+tag)
		if t == q {
			score += 3
		} else {
			score++
		}
	}
	if len(matched) == 0 {
		return KeywordResult{}, false
	}

	hit := newHit(doc, MatchTag, score)
	hit.Context = "Tags: " + strings.Join(matched, ", ")
	return hit, true
}

func headingMatch(doc *graph.Document, query string) (KeywordResult, bool) {
	q := strings.ToLower(query)

	best, bestText, bestLine := 0.0, "", 0
	consider := func(text string, exact, partial float64, line int) {
		t := strings.ToLower(text)
		if !strings.Contains(t, q) {
			return
		}
		score := partial
		if t == q {
			score = exact
		}
		if score > best {
			best, bestText, bestLine = score, text, line
		}
	}

	consider(doc.Title, 5, 2, 0)
	for _, h := range doc.Headings {
		consider(h.Text, 3, 1, h.Line)
	}
	if best == 0 {
		return KeywordResult{}, false
	}

	hit := newHit(doc, MatchHeading, best)
	hit.Context = "Heading: " + bestText
	hit.Line = bestLine
	return hit, true
}

// Glob returns the absolute paths of documents whose relative path or file
// name matches pattern, sorted. A malformed pattern is an invalid input.
func Glob(g *graph.KnowledgeGraph, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, apperr.ErrInvalidInput)
	}

	var out []string
	for _, doc := range g.Documents() {
		rel := filepath.ToSlash(doc.RelPath)
		if ok, _ := path.Match(pattern, rel); ok {
			out = append(out, doc.Path)
			continue
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			out = append(out, doc.Path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Grep returns every line matching pattern with contextLines lines around it.
func Grep(g *graph.KnowledgeGraph, pattern string, contextLines int) ([]GrepMatch, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern: %w", apperr.ErrInvalidInput)
	}
	re := compilePattern(pattern)

	var out []GrepMatch
	for _, doc := range g.Documents() {
		content, ok := readContent(doc)
		if !ok {
			continue
		}
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			from := max(0, i-contextLines)
			to := min(len(lines), i+contextLines+1)
			out = append(out, GrepMatch{
				RelPath: doc.RelPath,
				Line:    i + 1,
				Text:    strings.TrimSpace(line),
				Context: append([]string(nil), lines[from:to]...),
			})
		}
	}
	return out, nil
}
