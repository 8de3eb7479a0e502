// Package rewrite substitutes archive-internal references in chapter markup
// and stylesheets with data URIs (inline mode) or emitted package paths
// (package mode). Failures are per-reference: a reference that cannot be
// resolved keeps its original text and the rest of the document is
// unaffected.
package rewrite

import (
	"regexp"
	"strings"

	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/assets"
	"github.com/albertbuchard/one-more-epub-converter/resolve"
	"github.com/albertbuchard/one-more-epub-converter/sanitize"
)

// Mode selects how fetched assets are substituted.
type Mode int

const (
	// ModeInline embeds every asset as a data URI.
	ModeInline Mode = iota
	// ModePackage emits assets as files and substitutes relative paths.
	ModePackage
)

// maxImportDepth bounds @import recursion on pathological stylesheets.
const maxImportDepth = 8

// Config wires a Rewriter to its collaborators. Sink is required in
// ModePackage and ignored otherwise.
type Config struct {
	Index     resolve.Index
	OPFDir    string
	Fetcher   *assets.Fetcher
	Sink      *assets.Sink
	Sanitizer sanitize.Sanitizer
	Mode      Mode
	Logger    *zap.Logger
}

// Rewriter rewrites one conversion job's chapters and stylesheets. The
// stylesheet cache is job-scoped: a stylesheet shared by many chapters is
// fetched and rewritten once.
type Rewriter struct {
	cfg      Config
	log      *zap.Logger
	cssCache map[string]string // resolved stylesheet path -> rewritten text
}

// New returns a Rewriter for one conversion job.
func New(cfg Config) *Rewriter {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{cfg: cfg, log: log, cssCache: make(map[string]string)}
}

// cssURLRe matches url(...) occurrences. RE2 has no backreferences, so the
// three quoting forms are spelled out.
var cssURLRe = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^'")][^)]*))\s*\)`)

// cssImportRe matches the string form of @import. The url(...) form is
// already covered by the url() pass that runs first.
var cssImportRe = regexp.MustCompile(`@import\s+(?:"([^"]+)"|'([^']+)')`)

// CSS rewrites url() and @import references in a stylesheet. The url() pass
// runs first; the @import pass then operates on the partially rewritten
// text, per the processing order the two syntaxes require. All unmatched
// text is preserved verbatim through index-tracked slicing.
func (rw *Rewriter) CSS(cssText, baseHref string) string {
	out := rw.rewriteCSSURLs(cssText, baseHref)
	return rw.rewriteCSSImports(out, baseHref, 0)
}

func (rw *Rewriter) rewriteCSSURLs(cssText, baseHref string) string {
	matches := cssURLRe.FindAllStringSubmatchIndex(cssText, -1)
	if len(matches) == 0 {
		return cssText
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		raw, start, end := submatchValue(cssText, m)
		if raw == "" {
			continue
		}
		value, ok := rw.substitute(baseHref, raw, false)
		if !ok {
			continue
		}
		b.WriteString(cssText[last:start])
		b.WriteString(`url("`)
		b.WriteString(value)
		b.WriteString(`")`)
		last = end
	}
	b.WriteString(cssText[last:])
	return b.String()
}

func (rw *Rewriter) rewriteCSSImports(cssText, baseHref string, depth int) string {
	if depth >= maxImportDepth {
		return cssText
	}
	matches := cssImportRe.FindAllStringSubmatchIndex(cssText, -1)
	if len(matches) == 0 {
		return cssText
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		raw, start, end := submatchValue(cssText, m)
		if raw == "" {
			continue
		}
		value, ok := rw.substituteStylesheet(baseHref, raw, depth+1)
		if !ok {
			continue
		}
		b.WriteString(cssText[last:start])
		b.WriteString(`@import "`)
		b.WriteString(value)
		b.WriteString(`"`)
		last = end
	}
	b.WriteString(cssText[last:])
	return b.String()
}

// submatchValue extracts whichever alternative group matched, with the
// bounds of the whole match.
func submatchValue(s string, m []int) (value string, start, end int) {
	start, end = m[0], m[1]
	for g := 1; g*2 < len(m); g++ {
		if m[g*2] >= 0 {
			return strings.TrimSpace(s[m[g*2]:m[g*2+1]]), start, end
		}
	}
	return "", start, end
}

// substitute resolves and fetches one reference, returning the replacement
// value (with the original fragment re-appended) or ok=false when the
// reference must stay as written.
func (rw *Rewriter) substitute(baseHref, raw string, expectImage bool) (string, bool) {
	ref := resolve.Resolve(rw.cfg.Index, rw.cfg.OPFDir, baseHref, raw)
	if ref.External || len(ref.Candidates) == 0 {
		return "", false
	}

	var a *assets.Asset
	if expectImage {
		a = rw.cfg.Fetcher.FetchImage(ref)
	} else {
		a = rw.cfg.Fetcher.Fetch(ref)
	}
	if a == nil {
		return "", false
	}

	if rw.cfg.Mode == ModePackage {
		return rw.cfg.Sink.Add(a) + ref.Fragment, true
	}
	return rw.cfg.Fetcher.DataURI(a) + ref.Fragment, true
}

// substituteStylesheet is substitute for CSS targets: the fetched stylesheet
// is itself rewritten (cached per resolved path) before being embedded or
// emitted.
func (rw *Rewriter) substituteStylesheet(baseHref, raw string, depth int) (string, bool) {
	ref := resolve.Resolve(rw.cfg.Index, rw.cfg.OPFDir, baseHref, raw)
	if ref.External || len(ref.Candidates) == 0 {
		return "", false
	}
	a := rw.cfg.Fetcher.Fetch(ref)
	if a == nil {
		return "", false
	}

	text := rw.stylesheetText(a, depth)
	if rw.cfg.Mode == ModePackage {
		return rw.cfg.Sink.Add(&assets.Asset{
			Bytes: []byte(text),
			MIME:  "text/css",
			Path:  a.Path,
		}), true
	}
	return dataurl.New([]byte(text), "text/css").String(), true
}

// stylesheetText returns the rewritten text of a fetched stylesheet,
// memoized by its resolved path.
func (rw *Rewriter) stylesheetText(a *assets.Asset, depth int) string {
	if text, ok := rw.cssCache[a.Path]; ok {
		return text
	}
	text := rw.rewriteCSSURLs(string(a.Bytes), a.Path)
	text = rw.rewriteCSSImports(text, a.Path, depth)
	rw.cssCache[a.Path] = text
	return text
}
