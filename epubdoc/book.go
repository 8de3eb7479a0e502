// Package epubdoc opens EPUB archives and exposes the narrow surface the
// conversion pipeline needs: the ordered chapter sequence, byte fetches by
// internal path, a strict path index, and the OPF directory used for
// reference resolution. Everything else about the format stays inside this
// package.
package epubdoc

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Reader-level errors.
var (
	ErrInvalidArchive = errors.New("epub: invalid or corrupted archive")
	ErrNotFound       = errors.New("epub: file not found in archive")
	ErrEmptySpine     = errors.New("epub: no readable content")
)

// ChapterRef is one spine entry: the chapter's markup plus its own archive
// path, which anchors every relative reference inside it.
type ChapterRef struct {
	RawHTML  string
	BaseHref string
}

// Book provides access to an opened EPUB. The zip index and OPF directory
// are computed once at open time and owned by the Book, so resolution state
// never leaks between books.
type Book struct {
	zr       *zip.Reader
	entries  map[string]*zip.File // exact-name index
	opfDir   string
	meta     Metadata
	manifest map[string]ManifestItem // keyed by resolved href
	chapters []ChapterRef
}

// OpenReader opens an EPUB from an io.ReaderAt.
func OpenReader(ra io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, ErrInvalidArchive
	}

	b := &Book{zr: zr, entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.entries[f.Name] = f
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

// OpenBytes opens an EPUB held in memory.
func OpenBytes(data []byte) (*Book, error) {
	return OpenReader(bytes.NewReader(data), int64(len(data)))
}

// Open opens the named EPUB file. The whole archive is read into memory;
// the returned Book does not hold the file open.
func Open(filename string) (*Book, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return OpenBytes(data)
}

func (b *Book) init() error {
	if err := checkForDRM(b.zr); err != nil {
		return err
	}

	opfPath, err := findRootfile(b)
	if err == nil {
		if pkg, perr := parseOPF(b, opfPath); perr == nil {
			b.opfDir = dirOf(opfPath)
			b.meta = pkg.Metadata
			b.manifest = make(map[string]ManifestItem, len(pkg.Manifest))
			for _, item := range pkg.Manifest {
				b.manifest[joinHref(b.opfDir, item.Href)] = item
			}
			b.loadSpine(pkg)
		}
	}

	if len(b.chapters) == 0 {
		// No container, no OPF, or an empty spine. Some books are
		// malformed in exactly this way; fall back to every HTML-ish
		// entry in archive order.
		b.loadFallback()
	}
	if len(b.chapters) == 0 {
		return ErrEmptySpine
	}
	return nil
}

// loadSpine materializes the spine into chapter refs, skipping entries whose
// manifest item or archive file is missing.
func (b *Book) loadSpine(pkg *opfPackage) {
	for _, idref := range pkg.Spine {
		item, ok := pkg.Manifest[idref]
		if !ok {
			continue
		}
		if !isChapterItem(item) {
			continue
		}
		href := joinHref(b.opfDir, item.Href)
		raw, err := b.FetchBytes(href)
		if err != nil {
			continue
		}
		b.chapters = append(b.chapters, ChapterRef{
			RawHTML:  decodeText(raw),
			BaseHref: href,
		})
	}
}

// loadFallback scans the archive for chapter documents in sorted name order.
func (b *Book) loadFallback() {
	var names []string
	for name := range b.entries {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := b.FetchBytes(name)
		if err != nil {
			continue
		}
		b.chapters = append(b.chapters, ChapterRef{RawHTML: decodeText(raw), BaseHref: name})
	}
}

// isChapterItem reports whether a manifest item belongs in the reading flow.
// Media types are unreliable in the wild, so the extension is accepted too.
func isChapterItem(item ManifestItem) bool {
	if strings.Contains(item.MediaType, "html") {
		return true
	}
	lower := strings.ToLower(item.Href)
	return strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}

// Chapters returns the chapter sequence in spine order.
func (b *Book) Chapters() []ChapterRef {
	return b.chapters
}

// FetchBytes reads one archive entry by exact path.
func (b *Book) FetchBytes(path string) ([]byte, error) {
	f, ok := b.entries[path]
	if !ok {
		return nil, ErrNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Has reports whether path names an archive entry. The check is strict:
// case-sensitive and unnormalized, which is what candidate ordering in the
// resolver wants.
func (b *Book) Has(path string) bool {
	_, ok := b.entries[path]
	return ok
}

// OPFDir returns the directory of the package document, "" when it sits at
// the archive root.
func (b *Book) OPFDir() string {
	return b.opfDir
}

// Metadata returns the book's Dublin Core metadata. Zero value when the
// package document was missing or unparseable.
func (b *Book) Metadata() Metadata {
	return b.meta
}

// Title returns the book title, or "" when unknown.
func (b *Book) Title() string {
	return b.meta.Title
}

// MediaType returns the manifest-declared media type for an archive path,
// or "" when the path is not in the manifest.
func (b *Book) MediaType(path string) string {
	return b.manifest[path].MediaType
}

// decodeText decodes chapter bytes as UTF-8, falling back to Latin-1 for the
// occasional legacy book.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// dirOf returns the directory component of an archive path, "" for the root.
func dirOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// joinHref attaches a manifest href to the OPF directory, collapsing dot
// segments.
func joinHref(dir, href string) string {
	if dir == "" {
		return cleanHref(href)
	}
	return cleanHref(dir + "/" + href)
}

func cleanHref(p string) string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}
