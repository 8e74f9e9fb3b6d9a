// Package chunking splits documents into overlapping, heading-aware
// retrieval units.
package chunking

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Benny93/notegraph/internal/config"
	"github.com/Benny93/notegraph/internal/graph"
)

const (
	// MinTitleParagraph is the shortest first paragraph that yields a title chunk.
	MinTitleParagraph = 50

	// DuplicateThreshold is the word-set Jaccard similarity above which a
	// chunk is treated as a duplicate of an accepted one.
	DuplicateThreshold = 0.85
)

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("notegraph/chunk"))

// ChunkID derives a stable chunk identifier from a document path and a key
// (heading slug or paragraph index).
func ChunkID(docPath, key string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docPath+"#"+key)).String()
}

// Chunker splits documents into chunks.
type Chunker struct {
	maxSize         int
	overlap         int
	minSize         int
	respectHeadings bool
}

// New creates a Chunker from the chunking configuration.
func New(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{
		maxSize:         cfg.MaxSize,
		overlap:         cfg.Overlap,
		minSize:         cfg.MinSize,
		respectHeadings: cfg.RespectHeadings,
	}
}

// paragraph is a blank-line delimited block with its 1-based line span.
type paragraph struct {
	text  string
	start int
	end   int
}

// Chunk splits doc.Body into a title chunk, heading sections or paragraph
// groups, then drops near-duplicate chunks.
func (c *Chunker) Chunk(doc *graph.Document) []graph.Chunk {
	lines := strings.Split(doc.Body, "\n")

	var chunks []graph.Chunk
	if title, ok := c.titleChunk(doc, lines); ok {
		chunks = append(chunks, title)
	}

	if c.respectHeadings && len(doc.Headings) > 0 {
		chunks = append(chunks, c.headingChunks(doc, lines)...)
	} else {
		paras := splitParagraphs(lines, 1)
		for i, group := range c.accumulate(paras) {
			chunks = append(chunks, graph.Chunk{
				ID:        ChunkID(doc.Path, fmt.Sprintf("p%d", i)),
				DocPath:   doc.Path,
				Text:      group.text,
				StartLine: group.start,
				EndLine:   group.end,
				Kind:      graph.ChunkParagraph,
			})
		}
	}

	return dedupe(chunks)
}

// titleChunk pairs the title with the first meaningful paragraph, skipping
// blank lines, frontmatter delimiters and headings.
func (c *Chunker) titleChunk(doc *graph.Document, lines []string) (graph.Chunk, bool) {
	start := -1
	var body []string
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if start < 0 {
			if t == "" || t == "---" || strings.HasPrefix(t, "#+") || isHeadingLine(t) {
				continue
			}
			start = i
		}
		if t == "" || isHeadingLine(t) {
			break
		}
		body = append(body, t)
	}
	para := strings.Join(body, " ")
	if utf8.RuneCountInString(para) < MinTitleParagraph {
		return graph.Chunk{}, false
	}
	return graph.Chunk{
		ID:        ChunkID(doc.Path, "title"),
		DocPath:   doc.Path,
		Text:      doc.Title + "\n\n" + para,
		StartLine: start + 1,
		EndLine:   start + len(body),
		Kind:      graph.ChunkTitle,
	}, true
}

func (c *Chunker) headingChunks(doc *graph.Document, lines []string) []graph.Chunk {
	var chunks []graph.Chunk
	slugCount := make(map[string]int)

	for i, h := range doc.Headings {
		key := h.Slug
		if key == "" {
			key = fmt.Sprintf("h%d", i)
		}
		if n := slugCount[key]; n > 0 {
			slugCount[key] = n + 1
			key = fmt.Sprintf("%s-%d", key, n)
		} else {
			slugCount[key] = 1
		}

		from := h.Line - 1
		to := len(lines)
		if i+1 < len(doc.Headings) {
			to = doc.Headings[i+1].Line - 1
		}
		if from < 0 || from >= len(lines) || to <= from {
			continue
		}
		section := lines[from:to]

		if strings.TrimSpace(strings.Join(section[1:], "\n")) == "" {
			continue
		}
		text := strings.TrimSpace(strings.Join(section, "\n"))
		if len(text) < c.minSize {
			continue
		}

		path := headingPath(doc.Headings, i)
		if len(text) <= c.maxSize {
			chunks = append(chunks, graph.Chunk{
				ID:          ChunkID(doc.Path, key),
				DocPath:     doc.Path,
				Text:        text,
				StartLine:   h.Line,
				EndLine:     lastContentLine(section, h.Line),
				HeadingPath: path,
				Kind:        graph.ChunkHeading,
			})
			continue
		}

		for j, group := range c.accumulate(splitParagraphs(section, h.Line)) {
			chunks = append(chunks, graph.Chunk{
				ID:          ChunkID(doc.Path, fmt.Sprintf("%s/%d", key, j)),
				DocPath:     doc.Path,
				Text:        group.text,
				StartLine:   group.start,
				EndLine:     group.end,
				HeadingPath: path,
				Kind:        graph.ChunkHeading,
			})
		}
	}
	return chunks
}

// headingPath walks back from heading i collecting the nearest shallower
// heading at each step, outermost first.
func headingPath(headings []graph.Heading, i int) []string {
	path := []string{headings[i].Text}
	level := headings[i].Level
	for j := i - 1; j >= 0 && level > 1; j-- {
		if headings[j].Level < level {
			path = append([]string{headings[j].Text}, path...)
			level = headings[j].Level
		}
	}
	return path
}

// accumulate groups paragraphs up to maxSize characters, seeding each new
// group with an overlap taken from the end of the previous one.
func (c *Chunker) accumulate(paras []paragraph) []paragraph {
	var groups []paragraph
	var cur *paragraph

	for _, p := range c.splitLong(paras) {
		if cur == nil {
			cp := p
			cur = &cp
			continue
		}
		if len(cur.text)+2+len(p.text) <= c.maxSize {
			cur.text += "\n\n" + p.text
			cur.end = p.end
			continue
		}
		groups = append(groups, *cur)
		next := p
		if tail := c.overlapTail(cur.text); tail != "" {
			next.text = tail + "\n\n" + p.text
		}
		cur = &next
	}
	if cur != nil && strings.TrimSpace(cur.text) != "" {
		groups = append(groups, *cur)
	}
	return groups
}

// splitLong breaks paragraphs longer than maxSize at whitespace.
func (c *Chunker) splitLong(paras []paragraph) []paragraph {
	var out []paragraph
	for _, p := range paras {
		text := p.text
		for len(text) > c.maxSize {
			cut := c.maxSize
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(text)
				cut = size
			}
			if ws := strings.LastIndexFunc(text[:cut], unicode.IsSpace); ws > c.maxSize/2 {
				cut = ws
			}
			out = append(out, paragraph{text: strings.TrimSpace(text[:cut]), start: p.start, end: p.end})
			text = strings.TrimSpace(text[cut:])
		}
		if text != "" {
			out = append(out, paragraph{text: text, start: p.start, end: p.end})
		}
	}
	return out
}

var sentenceEnds = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// overlapTail returns the last overlap characters of text, starting after
// the last sentence boundary inside that window when there is one.
func (c *Chunker) overlapTail(text string) string {
	if c.overlap <= 0 {
		return ""
	}
	from := len(text) - c.overlap
	if from < 0 {
		from = 0
	}
	for from > 0 && from < len(text) && !utf8.RuneStart(text[from]) {
		from++
	}
	window := text[from:]

	cut := -1
	for _, end := range sentenceEnds {
		if i := strings.LastIndex(window, end); i > cut {
			cut = i
		}
	}
	if cut >= 0 {
		if rest := strings.TrimSpace(window[cut+2:]); rest != "" {
			return rest
		}
	}
	return strings.TrimSpace(window)
}

// splitParagraphs splits lines on blank lines. firstLine is the 1-based
// number of lines[0].
func splitParagraphs(lines []string, firstLine int) []paragraph {
	var paras []paragraph
	var buf []string
	start := 0
	flush := func(end int) {
		if len(buf) == 0 {
			return
		}
		paras = append(paras, paragraph{
			text:  strings.TrimSpace(strings.Join(buf, "\n")),
			start: start,
			end:   end,
		})
		buf = nil
	}
	for i, line := range lines {
		n := firstLine + i
		if strings.TrimSpace(line) == "" {
			flush(n - 1)
			continue
		}
		if len(buf) == 0 {
			start = n
		}
		buf = append(buf, line)
	}
	flush(firstLine + len(lines) - 1)
	return paras
}

func lastContentLine(section []string, first int) int {
	for i := len(section) - 1; i >= 0; i-- {
		if strings.TrimSpace(section[i]) != "" {
			return first + i
		}
	}
	return first
}

func isHeadingLine(t string) bool {
	if !strings.HasPrefix(t, "#") {
		return false
	}
	level := len(t) - len(strings.TrimLeft(t, "#"))
	return level <= 6 && (len(t) == level || t[level] == ' ' || t[level] == '\t')
}

// dedupe drops non-title chunks too similar to an already accepted chunk.
func dedupe(chunks []graph.Chunk) []graph.Chunk {
	accepted := make([]graph.Chunk, 0, len(chunks))
	sets := make([]map[string]bool, 0, len(chunks))
	for _, ch := range chunks {
		words := wordSet(ch.Text)
		if ch.Kind != graph.ChunkTitle {
			dup := false
			for _, s := range sets {
				if jaccard(words, s) > DuplicateThreshold {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
		}
		accepted = append(accepted, ch)
		sets = append(sets, words)
	}
	return accepted
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

// Jaccard returns the word-set Jaccard similarity of two texts.
func Jaccard(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
