package parsers

import "strings"

// TextParser parses plain text files. Only wiki links and #tags carry
// structure; the title falls back to the file stem.
type TextParser struct{}

// NewTextParser creates a new plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Format returns the format this parser handles.
func (p *TextParser) Format() string {
	return "text"
}

// Parse extracts wiki links and tags.
func (p *TextParser) Parse(filePath string, content []byte) (*ParseResult, error) {
	text := string(content)
	return &ParseResult{
		Body:  text,
		Links: wikiLinks(text, lineStarts(text)),
		Tags:  extractTags(strings.Split(text, "\n")),
	}, nil
}
