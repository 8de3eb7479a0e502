package rewrite

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/resolve"
)

// Chapter rewrites every archive-internal reference in a sanitized chapter
// document and returns the flattened body fragment. Stylesheet links are
// replaced by inline <style> blocks in both modes, so one chapter's styling
// travels with its markup. The fragment is re-sanitized after rewriting;
// the synthesized <style> blocks are prepended afterwards since the
// sanitizer does not pass style element content through.
func (rw *Rewriter) Chapter(sanitizedHTML, baseHref string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitizedHTML))
	if err != nil {
		rw.log.Warn("chapter parse failed, leaving markup untouched",
			zap.String("chapter", baseHref), zap.Error(err))
		return sanitizedHTML
	}

	styles := rw.rewriteStylesheetLinks(doc, baseHref)
	rw.rewriteImages(doc, baseHref)

	body, err := doc.Find("body").Html()
	if err != nil {
		rw.log.Warn("chapter serialize failed, leaving markup untouched",
			zap.String("chapter", baseHref), zap.Error(err))
		return sanitizedHTML
	}

	out := rw.cfg.Sanitizer.Sanitize(body)
	if len(styles) > 0 {
		var b strings.Builder
		for _, css := range styles {
			b.WriteString("<style>\n")
			b.WriteString(css)
			b.WriteString("\n</style>\n")
		}
		out = b.String() + out
	}
	return out
}

// rewriteStylesheetLinks collects and removes link[rel~=stylesheet]
// elements, returning their rewritten CSS texts in document order. A link
// whose stylesheet cannot be fetched is left in place unchanged.
func (rw *Rewriter) rewriteStylesheetLinks(doc *goquery.Document, baseHref string) []string {
	var styles []string
	doc.Find("link").Each(func(_ int, sel *goquery.Selection) {
		rel, _ := sel.Attr("rel")
		if !hasToken(rel, "stylesheet") {
			return
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		ref := resolve.Resolve(rw.cfg.Index, rw.cfg.OPFDir, baseHref, href)
		if ref.External || len(ref.Candidates) == 0 {
			return
		}
		a := rw.cfg.Fetcher.Fetch(ref)
		if a == nil {
			return
		}
		styles = append(styles, rw.stylesheetText(a, 0))
		sel.Remove()
	})
	return styles
}

// rewriteImages substitutes img, picture source and SVG image references.
func (rw *Rewriter) rewriteImages(doc *goquery.Document, baseHref string) {
	doc.Find("img, source").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			if value, ok := rw.substitute(baseHref, src, true); ok {
				sel.SetAttr("src", value)
			}
		}
		if srcset, ok := sel.Attr("srcset"); ok {
			sel.SetAttr("srcset", rw.rewriteSrcset(srcset, baseHref))
		}
	})

	// SVG image elements carry href or xlink:href; the parser folds the
	// xlink form into a namespaced href attribute, so one lookup covers
	// both.
	doc.Find("image").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			if value, ok := rw.substitute(baseHref, href, true); ok {
				sel.SetAttr("href", value)
			}
		}
	})
}

// rewriteSrcset rewrites each URL of a srcset list independently,
// preserving descriptors and order. Entries that fail to resolve keep their
// original text.
func (rw *Rewriter) rewriteSrcset(srcset, baseHref string) string {
	entries := strings.Split(srcset, ",")
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		if value, ok := rw.substitute(baseHref, fields[0], true); ok {
			fields[0] = value
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, ", ")
}

// hasToken reports whether a space-separated token list contains token,
// case-insensitively. rel attributes are token lists per the HTML spec.
func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}
