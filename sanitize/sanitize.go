// Package sanitize strips unsafe markup from chapter documents. The
// converter runs every chapter through a Sanitizer before reference
// rewriting and once more afterwards, so the policy must keep the
// structural and styling markup the rewriter depends on: stylesheet links,
// srcset, and SVG image references.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer removes dangerous markup while preserving safe structure. It is
// a pure function of its input.
type Sanitizer interface {
	Sanitize(html string) string
}

// Policy is the default bluemonday-backed sanitizer. Script, iframe, object
// and embed elements and all inline event handlers are dropped by
// construction: the policy never allows them.
type Policy struct {
	p *bluemonday.Policy
}

// NewPolicy builds the default chapter policy.
func NewPolicy() *Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		// Document structure. Chapters arrive as full XHTML documents;
		// head-level styling markup must survive until rewriting.
		"html", "head", "body", "title", "link",
		// Block content.
		"p", "div", "section", "article", "header", "footer", "aside",
		"main", "nav", "figure", "figcaption",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"pre", "blockquote", "hr", "br",
		"table", "thead", "tbody", "tfoot", "tr", "td", "th",
		"caption", "colgroup", "col",
		// Inline content.
		"a", "span", "em", "strong", "i", "b", "u", "s", "small", "sub",
		"sup", "code", "kbd", "samp", "var", "abbr", "cite", "q", "dfn",
		"mark", "ruby", "rt", "rp", "bdi", "bdo", "wbr", "del", "ins",
		// Media handled by the rewriter.
		"img", "picture", "source", "svg", "image",
	)

	p.AllowAttrs("id", "class", "style", "lang", "dir", "title").Globally()
	p.AllowAttrs("href", "rel", "type", "media").OnElements("link", "a")
	p.AllowAttrs("src", "srcset", "alt", "width", "height", "sizes").OnElements("img", "source")
	p.AllowAttrs("media").OnElements("source")
	p.AllowAttrs("href", "xlink:href", "width", "height", "x", "y",
		"preserveAspectRatio").OnElements("image")
	p.AllowAttrs("width", "height", "viewBox", "xmlns", "xmlns:xlink",
		"version", "preserveAspectRatio").OnElements("svg")
	p.AllowAttrs("colspan", "rowspan", "headers", "scope").OnElements("td", "th")
	p.AllowAttrs("span").OnElements("col", "colgroup")
	p.AllowAttrs("epub:type").Globally()

	p.AllowURLSchemes("http", "https", "mailto", "data")
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(false)

	return &Policy{p: p}
}

// Sanitize returns the sanitized markup.
func (s *Policy) Sanitize(html string) string {
	return s.p.Sanitize(html)
}
