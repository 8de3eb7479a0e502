package rewrite

import (
	"errors"
	"strings"
	"testing"

	"github.com/albertbuchard/one-more-epub-converter/assets"
	"github.com/albertbuchard/one-more-epub-converter/sanitize"
)

// fakeArchive is an in-memory assets.Source and resolve.Index.
type fakeArchive struct {
	files map[string][]byte
	types map[string]string
	reads map[string]int
}

func newFakeArchive(files map[string][]byte) *fakeArchive {
	return &fakeArchive{files: files, types: make(map[string]string), reads: make(map[string]int)}
}

func (a *fakeArchive) FetchBytes(path string) ([]byte, error) {
	a.reads[path]++
	if data, ok := a.files[path]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func (a *fakeArchive) MediaType(path string) string { return a.types[path] }

func (a *fakeArchive) Has(path string) bool {
	_, ok := a.files[path]
	return ok
}

func newTestRewriter(arch *fakeArchive, mode Mode) (*Rewriter, *assets.Sink) {
	sink := assets.NewSink()
	rw := New(Config{
		Index:     arch,
		OPFDir:    "OEBPS",
		Fetcher:   assets.NewFetcher(arch, nil),
		Sink:      sink,
		Sanitizer: sanitize.NewPolicy(),
		Mode:      mode,
	})
	return rw, sink
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 300)...)
}

func TestCSSURLRewrite(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/images/bg.png": pngBytes()})
	arch.types["OEBPS/images/bg.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	tests := []struct {
		name string
		css  string
	}{
		{"double quoted", `body { background: url("images/bg.png"); }`},
		{"single quoted", `body { background: url('images/bg.png'); }`},
		{"unquoted", `body { background: url(images/bg.png); }`},
		{"with whitespace", `body { background: url(  images/bg.png  ); }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rw.CSS(tt.css, "OEBPS/style.css")
			if !strings.Contains(out, `url("data:image/png;base64,`) {
				t.Errorf("CSS(%q) = %q, url not rewritten", tt.css, out)
			}
			if !strings.HasPrefix(out, "body { background: ") || !strings.HasSuffix(out, "; }") {
				t.Errorf("surrounding text not preserved: %q", out)
			}
		})
	}
}

func TestCSSFailedURLLeftUnchanged(t *testing.T) {
	rw, _ := newTestRewriter(newFakeArchive(nil), ModeInline)
	css := `body { background: url("missing.png"); color: red; }`
	if out := rw.CSS(css, "OEBPS/style.css"); out != css {
		t.Errorf("CSS = %q, want unchanged input", out)
	}
}

func TestCSSExternalURLLeftUnchanged(t *testing.T) {
	rw, _ := newTestRewriter(newFakeArchive(nil), ModeInline)
	css := `@font-face { src: url(https://example.com/f.woff2); }`
	if out := rw.CSS(css, "OEBPS/style.css"); out != css {
		t.Errorf("CSS = %q, want unchanged input", out)
	}
}

func TestCSSRepeatedURLsEachRewritten(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/a.png": pngBytes()})
	arch.types["OEBPS/a.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.CSS(`.x { background: url(a.png); } .y { background: url(a.png); }`, "OEBPS/s.css")
	if got := strings.Count(out, "data:image/png;base64,"); got != 2 {
		t.Errorf("rewrote %d occurrences, want 2", got)
	}
	if strings.Contains(out, "url(a.png)") {
		t.Errorf("unrewritten occurrence remains: %q", out)
	}
}

func TestCSSImportRewrittenAfterURLs(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{
		"OEBPS/fonts.css":     []byte(`@font-face { src: url("f.woff"); }`),
		"OEBPS/f.woff":        append([]byte("wOFF"), make([]byte, 300)...),
		"OEBPS/images/bg.png": pngBytes(),
	})
	arch.types["OEBPS/images/bg.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.CSS(`@import "fonts.css"; body { background: url(images/bg.png); }`, "OEBPS/main.css")

	if !strings.Contains(out, `@import "data:text/css;base64,`) {
		t.Errorf("@import not rewritten: %q", out)
	}
	if !strings.Contains(out, `url("data:image/png;base64,`) {
		t.Errorf("url() not rewritten: %q", out)
	}
}

func TestStylesheetCache(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/shared.css": []byte("p { margin: 0; }")})
	rw, _ := newTestRewriter(arch, ModeInline)

	html := `<link rel="stylesheet" href="shared.css"/><p>x</p>`
	rw.Chapter(html, "OEBPS/ch1.xhtml")
	rw.Chapter(html, "OEBPS/ch2.xhtml")

	if got := arch.reads["OEBPS/shared.css"]; got != 1 {
		t.Errorf("stylesheet fetched %d times, want 1", got)
	}
}

func TestChapterImageInline(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/images/pic.png": pngBytes()})
	arch.types["OEBPS/images/pic.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.Chapter(`<p>before</p><img src="images/pic.png" alt="a"/><p>after</p>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, `src="data:image/png;base64,`) {
		t.Errorf("img src not inlined: %q", out)
	}
	if !strings.Contains(out, "<p>before</p>") || !strings.Contains(out, "<p>after</p>") {
		t.Errorf("surrounding markup lost: %q", out)
	}
}

func TestChapterImagePackageMode(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/images/pic.png": pngBytes()})
	arch.types["OEBPS/images/pic.png"] = "image/png"
	rw, sink := newTestRewriter(arch, ModePackage)

	out := rw.Chapter(`<img src="images/pic.png"/>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, `src="assets/pic.png"`) {
		t.Errorf("img src not pointed at emitted asset: %q", out)
	}
	if _, ok := sink.Files()["assets/pic.png"]; !ok {
		t.Error("asset not emitted to sink")
	}
}

func TestChapterMissingImageLeftUnchanged(t *testing.T) {
	rw, _ := newTestRewriter(newFakeArchive(nil), ModeInline)

	out := rw.Chapter(`<p>text</p><img src="missing.png"/>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, `src="missing.png"`) {
		t.Errorf("missing image reference should stay as written: %q", out)
	}
	if !strings.Contains(out, "<p>text</p>") {
		t.Errorf("chapter content lost: %q", out)
	}
}

func TestChapterSrcsetIntegrity(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/a.png": pngBytes()})
	arch.types["OEBPS/a.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.Chapter(`<img srcset="a.png 1x, b.png 2x"/>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, "data:image/png;base64,") {
		t.Errorf("resolvable srcset entry not rewritten: %q", out)
	}
	if !strings.Contains(out, "b.png 2x") {
		t.Errorf("unresolvable entry must keep url and descriptor: %q", out)
	}
	// Descriptor of the rewritten entry is preserved, order intact.
	if i, j := strings.Index(out, "1x"), strings.Index(out, "b.png 2x"); i < 0 || j < 0 || i > j {
		t.Errorf("descriptor order broken: %q", out)
	}
}

func TestChapterFragmentPreserved(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/img/pic.png": pngBytes()})
	arch.types["OEBPS/img/pic.png"] = "image/png"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.Chapter(`<img src="img/pic.png?x=1#frag"/>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, "#frag") {
		t.Errorf("fragment dropped: %q", out)
	}
	if strings.Contains(out, "x=1") {
		t.Errorf("query should be dropped: %q", out)
	}
}

func TestChapterStylesheetLinkBecomesStyle(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/style.css": []byte("p { color: teal; }")})
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.Chapter(`<link rel="stylesheet" href="style.css"/><p>x</p>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, "<style>") || !strings.Contains(out, "p { color: teal; }") {
		t.Errorf("stylesheet not inlined: %q", out)
	}
	if strings.Contains(out, "<link") {
		t.Errorf("link element should be removed: %q", out)
	}
}

func TestChapterSvgImageRewritten(t *testing.T) {
	arch := newFakeArchive(map[string][]byte{"OEBPS/cover.jpg": append([]byte("\xff\xd8\xff"), make([]byte, 300)...)})
	arch.types["OEBPS/cover.jpg"] = "image/jpeg"
	rw, _ := newTestRewriter(arch, ModeInline)

	out := rw.Chapter(`<svg><image xlink:href="cover.jpg" width="100" height="100"></image></svg>`, "OEBPS/ch1.xhtml")

	if !strings.Contains(out, "data:image/jpeg;base64,") {
		t.Errorf("svg image reference not rewritten: %q", out)
	}
}

func TestChapterStripsUnsafeAfterRewrite(t *testing.T) {
	rw, _ := newTestRewriter(newFakeArchive(nil), ModeInline)
	out := rw.Chapter(`<p>ok</p><script>alert(1)</script>`, "OEBPS/ch1.xhtml")
	if strings.Contains(out, "script") {
		t.Errorf("unsafe markup survived: %q", out)
	}
}
