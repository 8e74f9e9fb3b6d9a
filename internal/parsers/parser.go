// Package parsers provides the format extractors that turn knowledge-base
// files into normalized graph.Document records.
package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Benny93/notegraph/internal/apperr"
	"github.com/Benny93/notegraph/internal/graph"
)

// ContextChars is the link context window on each side of a match.
const ContextChars = 100

// ParseResult contains everything a parser extracts from one file.
type ParseResult struct {
	// Title is empty when the format gives no title; the file stem is used.
	Title string

	Headings []graph.Heading

	// Links have Kind, Text, Context and Line set; Source and resolution are
	// filled in later.
	Links []graph.Link

	Tags     []string
	Metadata map[string]any

	// Body is the content with any frontmatter removed. Heading and link
	// line numbers refer to Body.
	Body string
}

// Parser defines the interface for format-specific parsers.
type Parser interface {
	// Parse extracts structure and links from content.
	Parse(filePath string, content []byte) (*ParseResult, error)

	// Format returns the name of the format this parser handles.
	Format() string
}

// Registry selects a parser by file extension and produces Documents.
type Registry struct {
	root  string
	byExt map[string]Parser
}

// NewRegistry creates a Registry for the knowledge base at root with the
// markdown, plain text and org-mode parsers registered.
func NewRegistry(root string) *Registry {
	r := &Registry{
		root:  filepath.Clean(root),
		byExt: make(map[string]Parser),
	}
	md := NewMarkdownParser()
	r.Register(md, ".md", ".markdown")
	r.Register(NewTextParser(), ".txt")
	r.Register(NewOrgParser(), ".org")
	return r
}

// Register associates p with the given extensions.
func (r *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads and parses the file at path.
func (r *Registry) Extract(path string) (*graph.Document, error) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, apperr.ErrUnsupportedFormat)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}

	res, err := p.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s as %s: %w", path, p.Format(), err)
	}

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		rel = path
	}

	doc := &graph.Document{
		Path:      path,
		RelPath:   filepath.ToSlash(rel),
		Title:     res.Title,
		Headings:  res.Headings,
		Links:     res.Links,
		Tags:      res.Tags,
		Metadata:  res.Metadata,
		Modified:  info.ModTime(),
		WordCount: len(strings.Fields(res.Body)),
		Body:      res.Body,
	}
	if doc.Title == "" {
		base := filepath.Base(path)
		doc.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for i := range doc.Links {
		doc.Links[i].Source = path
	}
	return doc, nil
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases text, drops non-word characters and joins words with
// hyphens.
func Slugify(text string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(text), "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// LinkContext returns up to ContextChars of text on each side of
// content[start:end] with whitespace collapsed and ellipses marking
// truncation.
func LinkContext(content string, start, end int) string {
	from := start - ContextChars
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(content[from]) {
		from--
	}
	to := end + ContextChars
	if to > len(content) {
		to = len(content)
	}
	for to < len(content) && !utf8.RuneStart(content[to]) {
		to++
	}

	ctx := strings.Join(strings.Fields(content[from:to]), " ")
	if from > 0 {
		ctx = "..." + ctx
	}
	if to < len(content) {
		ctx += "..."
	}
	return ctx
}

// lineStarts returns the byte offset of every line start in content.
func lineStarts(content string) []int {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 1-based line containing byte offset off.
func lineOf(starts []int, off int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > off })
}

var tagRegex = regexp.MustCompile(`(?m)(?:^|\s)#([A-Za-z0-9_][A-Za-z0-9_/-]*)`)

// extractTags returns inline #tags, skipping fenced code, as a sorted set.
func extractTags(lines []string, extra ...string) []string {
	set := make(map[string]bool)
	for _, t := range extra {
		if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
			set[t] = true
		}
	}
	inFence := false
	for _, line := range lines {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range tagRegex.FindAllStringSubmatch(line, -1) {
			set[m[1]] = true
		}
	}
	return sortedKeys(set)
}

func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isExternal(target string) bool {
	lower := strings.ToLower(target)
	for _, scheme := range []string{"http://", "https://", "ftp://", "mailto:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return strings.Contains(lower, "://")
}

var wikiRegex = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// wikiLinks extracts [[target]], [[target|alias]] and [[target#heading]]
// links. A bare [[#heading]] becomes an inline anchor to the same document.
func wikiLinks(content string, starts []int) []graph.Link {
	var links []graph.Link
	for _, m := range wikiRegex.FindAllStringSubmatchIndex(content, -1) {
		raw := content[m[2]:m[3]]
		if i := strings.Index(raw, "|"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
		kind := graph.LinkWiki
		if strings.HasPrefix(raw, "#") {
			kind = graph.LinkInline
		} else if i := strings.Index(raw, "#"); i >= 0 {
			raw = strings.TrimSpace(raw[:i])
		}
		if raw == "" {
			continue
		}
		links = append(links, graph.Link{
			Kind:    kind,
			Text:    raw,
			Context: LinkContext(content, m[0], m[1]),
			Line:    lineOf(starts, m[0]),
		})
	}
	return links
}
