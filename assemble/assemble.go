// Package assemble flattens a book's chapter sequence into one printable
// HTML document, and in package mode additionally lays the document and its
// emitted assets out as a ZIP archive.
package assemble

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/assets"
	"github.com/albertbuchard/one-more-epub-converter/epubdoc"
	"github.com/albertbuchard/one-more-epub-converter/rewrite"
	"github.com/albertbuchard/one-more-epub-converter/sanitize"
)

// maxTitleLen caps the document title, matching what fits comfortably in a
// browser tab and guarding against books with paragraph-length titles.
const maxTitleLen = 200

// documentTemplate is the fixed print-friendly shell around the flattened
// body. Placeholders: title, heading, body.
const documentTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width,initial-scale=1"/>
<title>%s</title>
<style>
body {
  font-family: Georgia, "Times New Roman", Times, serif;
  margin: 42px;
  line-height: 1.45;
  color: #111;
  max-width: 820px;
}
h1.book-title {
  font-family: system-ui, -apple-system, "Segoe UI", Roboto, Arial, sans-serif;
  font-size: 20px;
  margin: 0 0 18px 0;
}
p { margin: 0 0 12px 0; }
img { max-width: 100%%; height: auto; }
.chapter { margin: 0 0 24px 0; }
@page { margin: 18mm; }
</style>
</head>
<body>
<h1 class="book-title">%s</h1>
%s
</body>
</html>
`

// Options configures one assembly run.
type Options struct {
	Title     string
	Rewriter  *rewrite.Rewriter
	Sanitizer sanitize.Sanitizer
	Logger    *zap.Logger

	// Sink collects emitted assets in package mode; leave nil for inline
	// mode.
	Sink *assets.Sink

	// OnChapter, when set, is called after each chapter with the number
	// of chapters finished and the total.
	OnChapter func(done, total int)
}

// Result is the assembled document. Assets is non-nil only in package mode
// and maps archive-relative paths to file contents.
type Result struct {
	HTML   string
	Assets map[string][]byte
}

// Document assembles chapters, strictly in the order given, into the final
// HTML document. Chapter order in the output body always matches input
// order; a chapter that fails to rewrite is included sanitized but
// unrewritten rather than dropped. Cancellation is checked between
// chapters and returns the context's error.
func Document(ctx context.Context, chapters []epubdoc.ChapterRef, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var body strings.Builder
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		clean := opts.Sanitizer.Sanitize(ch.RawHTML)
		frag := opts.Rewriter.Chapter(clean, ch.BaseHref)

		fmt.Fprintf(&body, "<div class=\"chapter\" id=\"chapter-%d\">\n%s\n</div>\n", i+1, frag)
		log.Debug("chapter assembled", zap.Int("index", i), zap.String("href", ch.BaseHref))

		if opts.OnChapter != nil {
			opts.OnChapter(i+1, len(chapters))
		}
	}

	title := cleanTitle(opts.Title)
	res := Result{
		HTML: fmt.Sprintf(documentTemplate, title, title, body.String()),
	}
	if opts.Sink != nil {
		res.Assets = opts.Sink.Files()
	}
	return res, nil
}

// cleanTitle strips markup-significant characters from a book title and
// truncates it, falling back to "EPUB" when nothing is left.
func cleanTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '"':
			return -1
		}
		return r
	}, title)
	title = strings.TrimSpace(title)
	if title == "" {
		return "EPUB"
	}
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return title
}
