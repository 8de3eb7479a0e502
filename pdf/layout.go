// Package pdf rasterizes an assembled HTML document into a paginated PDF:
// the document is laid out single-column on a fixed-width surface, rendered
// to a bitmap, sliced into viewport-height pages, and assembled with a JPEG
// image per page.
package pdf

import (
	"image"
	"strings"

	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	// Image formats that may appear as embedded data URIs.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// block is one laid-out unit of content: either text or an image.
type block struct {
	text    string
	heading bool
	img     image.Image
}

// headingTags get extra vertical spacing and emphasized rendering.
var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// blockLevel are elements that terminate the current text run.
var blockLevel = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "aside": true, "li": true,
	"ul": true, "ol": true, "pre": true, "blockquote": true,
	"table": true, "tr": true, "hr": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var layoutSkip = map[string]bool{
	"style": true, "script": true, "head": true, "title": true,
}

// parseBlocks flattens the assembled document into a block sequence in
// document order. Images arrive as data URIs after rewriting; one that
// fails to decode is skipped with a warning, never fatal.
func parseBlocks(assembledHTML string, log *zap.Logger) ([]block, error) {
	doc, err := html.Parse(strings.NewReader(assembledHTML))
	if err != nil {
		return nil, err
	}

	c := &collector{log: log}
	c.walk(doc, false)
	c.flush(false)
	return c.blocks, nil
}

type collector struct {
	log    *zap.Logger
	blocks []block
	run    strings.Builder
}

func (c *collector) walk(n *html.Node, heading bool) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) != "" {
			c.run.WriteString(n.Data)
		}
		return
	case html.ElementNode:
		if layoutSkip[n.Data] {
			return
		}
		if n.Data == "img" {
			c.flush(heading)
			c.appendImage(n)
			return
		}
		if blockLevel[n.Data] {
			c.flush(heading)
			heading = headingTags[n.Data]
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(child, heading)
	}
	if n.Type == html.ElementNode && blockLevel[n.Data] {
		c.flush(heading)
	}
}

// flush terminates the current text run into a block.
func (c *collector) flush(heading bool) {
	t := normalizeRun(c.run.String())
	c.run.Reset()
	if t == "" {
		return
	}
	c.blocks = append(c.blocks, block{text: t, heading: heading})
}

func (c *collector) appendImage(n *html.Node) {
	var src string
	for _, a := range n.Attr {
		if a.Key == "src" {
			src = a.Val
			break
		}
	}
	if !strings.HasPrefix(src, "data:") {
		// Unrewritten (broken) reference; nothing to draw.
		return
	}

	du, err := dataurl.DecodeString(src)
	if err != nil {
		c.log.Warn("undecodable data URI in assembled document", zap.Error(err))
		return
	}
	img, _, err := image.Decode(strings.NewReader(string(du.Data)))
	if err != nil {
		c.log.Warn("image decode failed, rendering without it", zap.Error(err))
		return
	}
	c.blocks = append(c.blocks, block{img: img})
}

// normalizeRun collapses all whitespace runs in a text block to single
// spaces.
func normalizeRun(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
