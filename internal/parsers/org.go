package parsers

import (
	"regexp"
	"strings"

	"github.com/Benny93/notegraph/internal/graph"
)

// OrgParser parses org-mode files.
type OrgParser struct {
	headingRegex *regexp.Regexp
	keywordRegex *regexp.Regexp
	linkRegex    *regexp.Regexp
	tagsRegex    *regexp.Regexp
}

// NewOrgParser creates a new org-mode parser.
func NewOrgParser() *OrgParser {
	return &OrgParser{
		headingRegex: regexp.MustCompile(`^(\*{1,6})\s+(.+)$`),
		keywordRegex: regexp.MustCompile(`(?i)^#\+(TITLE|FILETAGS):\s*(.*)$`),
		linkRegex:    regexp.MustCompile(`\[\[([^\[\]]+)\](?:\[([^\[\]]*)\])?\]`),
		tagsRegex:    regexp.MustCompile(`\s+(:[\w@#%:]+:)\s*$`),
	}
}

// Format returns the format this parser handles.
func (p *OrgParser) Format() string {
	return "org"
}

// Parse extracts the title keyword, headings, links and tags.
func (p *OrgParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	text := string(content)
	result := &ParseResult{Body: text}
	lines := strings.Split(text, "\n")

	var extraTags []string
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if m := p.keywordRegex.FindStringSubmatch(trimmed); m != nil {
			switch strings.ToUpper(m[1]) {
			case "TITLE":
				result.Title = strings.TrimSpace(m[2])
			case "FILETAGS":
				extraTags = append(extraTags, splitOrgTags(m[2])...)
			}
			continue
		}
		m := p.headingRegex.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		headingText := m[2]
		if tm := p.tagsRegex.FindStringSubmatchIndex(headingText); tm != nil {
			extraTags = append(extraTags, splitOrgTags(headingText[tm[2]:tm[3]])...)
			headingText = headingText[:tm[0]]
		}
		headingText = strings.TrimSpace(headingText)
		result.Headings = append(result.Headings, graph.Heading{
			Level: len(m[1]),
			Text:  headingText,
			Line:  i + 1,
			Slug:  Slugify(headingText),
		})
	}
	if result.Title == "" && len(result.Headings) > 0 {
		result.Title = result.Headings[0].Text
	}

	starts := lineStarts(text)
	for _, m := range p.linkRegex.FindAllStringSubmatchIndex(text, -1) {
		target := strings.TrimSpace(text[m[2]:m[3]])
		kind := graph.LinkWiki
		switch {
		case strings.HasPrefix(target, "file:"):
			target = strings.TrimPrefix(target, "file:")
			if i := strings.Index(target, "::"); i >= 0 {
				target = target[:i]
			}
			kind = graph.LinkInline
		case isExternal(target):
			continue
		case strings.HasPrefix(target, "#") || strings.HasPrefix(target, "*"):
			target = "#" + strings.TrimLeft(target, "#*")
			kind = graph.LinkInline
		}
		if target == "" {
			continue
		}
		result.Links = append(result.Links, graph.Link{
			Kind:    kind,
			Text:    target,
			Context: LinkContext(text, m[0], m[1]),
			Line:    lineOf(starts, m[0]),
		})
	}

	result.Tags = extractTags(lines, extraTags...)
	return result, nil
}

func splitOrgTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ":") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
