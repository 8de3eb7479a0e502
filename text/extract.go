// Package text flattens sanitized chapter markup into plain text that reads
// the way the rendered page would: block elements break lines, whitespace is
// normalized, and chapters are separated by blank lines.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that force a line break when entered.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"pre": true, "blockquote": true,
	"hr": true, "br": true,
	"table": true, "tr": true,
}

// skipTags are elements whose text content never appears in output.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "noscript": true, "template": true,
}

var (
	horizontalWS  = regexp.MustCompile(`[ \t\f\v]+`)
	spacedNewline = regexp.MustCompile(` *\n *`)
	excessNewline = regexp.MustCompile(`\n{3,}`)
)

// Extract converts one sanitized chapter document to plain text. A newline
// is emitted on entry to each block-level element; text nodes that are pure
// whitespace are dropped; the result is whitespace-normalized and trimmed.
func Extract(sanitizedHTML string) string {
	doc, err := html.Parse(strings.NewReader(sanitizedHTML))
	if err != nil {
		return ""
	}

	var b strings.Builder
	walk(doc, &b)
	return Normalize(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			b.WriteString(n.Data)
		}
		return
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
		if blockTags[n.Data] {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
}

// Normalize applies the whitespace rules: CRLF and CR become LF, runs of
// horizontal whitespace collapse to one space, spaces hugging a newline are
// dropped, three or more newlines collapse to two, and the whole result is
// trimmed.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = spacedNewline.ReplaceAllString(s, "\n")
	s = excessNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// JoinChapters combines per-chapter texts into the final document: chapters
// separated by one blank line, a single trailing newline, and no output at
// all for an empty book.
func JoinChapters(chapters []string) string {
	var parts []string
	for _, c := range chapters {
		if c != "" {
			parts = append(parts, c)
		}
	}
	joined := Normalize(strings.Join(parts, "\n\n"))
	if joined == "" {
		return ""
	}
	return joined + "\n"
}
