package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/notegraph/internal/graph"
)

// MarkdownParser parses markdown notes with optional YAML frontmatter.
type MarkdownParser struct {
	frontmatterRegex *regexp.Regexp
	headingRegex     *regexp.Regexp
	inlineLinkRegex  *regexp.Regexp
}

// NewMarkdownParser creates a new markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		frontmatterRegex: regexp.MustCompile(`(?s)\A---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|\z)`),
		headingRegex:     regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`),
		inlineLinkRegex:  regexp.MustCompile(`\[([^\[\]]*)\]\(([^()\s]+)(?:\s+"[^"]*")?\)`),
	}
}

// Format returns the format this parser handles.
func (p *MarkdownParser) Format() string {
	return "markdown"
}

// Parse extracts frontmatter, headings, links and tags.
func (p *MarkdownParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	text := string(content)
	result := &ParseResult{}

	if m := p.frontmatterRegex.FindStringSubmatchIndex(text); m != nil {
		var meta map[string]any
		if err := yaml.Unmarshal([]byte(text[m[2]:m[3]]), &meta); err == nil {
			result.Metadata = meta
		}
		text = text[m[1]:]
	}
	result.Body = text

	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := p.headingRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		headingText := strings.TrimSpace(m[2])
		result.Headings = append(result.Headings, graph.Heading{
			Level: len(m[1]),
			Text:  headingText,
			Line:  i + 1,
			Slug:  Slugify(headingText),
		})
	}

	if title, ok := result.Metadata["title"].(string); ok && strings.TrimSpace(title) != "" {
		result.Title = strings.TrimSpace(title)
	} else if len(result.Headings) > 0 {
		result.Title = result.Headings[0].Text
	}

	starts := lineStarts(text)
	result.Links = wikiLinks(text, starts)
	for _, m := range p.inlineLinkRegex.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && text[m[0]-1] == '!' {
			continue
		}
		target := text[m[4]:m[5]]
		if isExternal(target) {
			continue
		}
		result.Links = append(result.Links, graph.Link{
			Kind:    graph.LinkInline,
			Text:    target,
			Context: LinkContext(text, m[0], m[1]),
			Line:    lineOf(starts, m[0]),
		})
	}

	result.Tags = extractTags(lines, frontmatterTags(result.Metadata)...)
	return result, nil
}

// frontmatterTags reads a "tags" key given as a list or a comma separated string.
func frontmatterTags(meta map[string]any) []string {
	switch v := meta["tags"].(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			tags = append(tags, fmt.Sprint(t))
		}
		return tags
	case string:
		return strings.Split(v, ",")
	default:
		return nil
	}
}
