package epubdoc

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildEPUB assembles an in-memory EPUB from a name->content map. The
// mimetype entry is written first and uncompressed, as the format requires.
func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	mw.Write([]byte("application/epub+zip"))

	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const testContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>First Author</dc:creator>
    <dc:creator>Second Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="notes" linear="no"/>
  </spine>
</package>`

func testBookFiles() map[string]string {
	return map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        `<html><body><p>Chapter one.</p></body></html>`,
		"OEBPS/text/ch2.xhtml":   `<html><body><p>Chapter two.</p></body></html>`,
		"OEBPS/style.css":        `body { color: black; }`,
		"OEBPS/images/cover.jpg": "\xff\xd8\xff\xe0fakejpeg",
	}
}

func TestOpenBytes(t *testing.T) {
	book, err := OpenBytes(buildEPUB(t, testBookFiles()))
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	if got := book.Title(); got != "Test Book" {
		t.Errorf("Title = %q, want %q", got, "Test Book")
	}
	if got := book.OPFDir(); got != "OEBPS" {
		t.Errorf("OPFDir = %q, want %q", got, "OEBPS")
	}
	if got := len(book.Metadata().Creators); got != 2 {
		t.Errorf("Creators count = %d, want 2", got)
	}
}

func TestChaptersSpineOrder(t *testing.T) {
	book, err := OpenBytes(buildEPUB(t, testBookFiles()))
	if err != nil {
		t.Fatal(err)
	}

	chapters := book.Chapters()
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2 (non-linear itemref excluded)", len(chapters))
	}
	if chapters[0].BaseHref != "OEBPS/ch1.xhtml" {
		t.Errorf("chapters[0].BaseHref = %q", chapters[0].BaseHref)
	}
	if chapters[1].BaseHref != "OEBPS/text/ch2.xhtml" {
		t.Errorf("chapters[1].BaseHref = %q", chapters[1].BaseHref)
	}
	if !strings.Contains(chapters[0].RawHTML, "Chapter one.") {
		t.Error("chapters[0] missing expected content")
	}
}

func TestFetchBytes(t *testing.T) {
	book, err := OpenBytes(buildEPUB(t, testBookFiles()))
	if err != nil {
		t.Fatal(err)
	}

	data, err := book.FetchBytes("OEBPS/style.css")
	if err != nil {
		t.Fatalf("FetchBytes: %v", err)
	}
	if string(data) != `body { color: black; }` {
		t.Errorf("unexpected content: %q", data)
	}

	if _, err := book.FetchBytes("OEBPS/missing.css"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}
}

func TestHasIsCaseSensitive(t *testing.T) {
	book, err := OpenBytes(buildEPUB(t, testBookFiles()))
	if err != nil {
		t.Fatal(err)
	}

	if !book.Has("OEBPS/images/cover.jpg") {
		t.Error("Has(exact path) = false")
	}
	if book.Has("OEBPS/Images/Cover.jpg") {
		t.Error("Has should not match case-insensitively")
	}
}

func TestMediaType(t *testing.T) {
	book, err := OpenBytes(buildEPUB(t, testBookFiles()))
	if err != nil {
		t.Fatal(err)
	}

	if got := book.MediaType("OEBPS/images/cover.jpg"); got != "image/jpeg" {
		t.Errorf("MediaType = %q, want image/jpeg", got)
	}
	if got := book.MediaType("OEBPS/nowhere.png"); got != "" {
		t.Errorf("MediaType(unknown) = %q, want empty", got)
	}
}

func TestManifestHrefDecoding(t *testing.T) {
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Plus Book</dc:title>
  </metadata>
  <manifest>
    <item id="ch1" href="a+b%20c.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`
	data := buildEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      opf,
		"OEBPS/a+b c.xhtml":      `<html><body><p>Plus</p></body></html>`,
	})

	book, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	// Percent escapes decode; a literal "+" stays a "+".
	chapters := book.Chapters()
	if len(chapters) != 1 {
		t.Fatalf("got %d chapters, want 1", len(chapters))
	}
	if got := chapters[0].BaseHref; got != "OEBPS/a+b c.xhtml" {
		t.Errorf("BaseHref = %q, want %q", got, "OEBPS/a+b c.xhtml")
	}
	if got := book.MediaType("OEBPS/a+b c.xhtml"); got != "application/xhtml+xml" {
		t.Errorf("MediaType = %q, want application/xhtml+xml", got)
	}
}

func TestFallbackScanWithoutOPF(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"b.xhtml": `<html><body><p>Second</p></body></html>`,
		"a.xhtml": `<html><body><p>First</p></body></html>`,
	})

	book, err := OpenBytes(data)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	chapters := book.Chapters()
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(chapters))
	}
	if chapters[0].BaseHref != "a.xhtml" || chapters[1].BaseHref != "b.xhtml" {
		t.Errorf("fallback order = %q, %q; want sorted names", chapters[0].BaseHref, chapters[1].BaseHref)
	}
}

func TestOpenRejectsDRM(t *testing.T) {
	files := testBookFiles()
	files["META-INF/rights.xml"] = `<rights/>`

	if _, err := OpenBytes(buildEPUB(t, files)); !errors.Is(err, ErrDRMProtected) {
		t.Errorf("err = %v, want ErrDRMProtected", err)
	}
}

func TestOpenAllowsFontObfuscation(t *testing.T) {
	files := testBookFiles()
	files["META-INF/encryption.xml"] = `<?xml version="1.0"?>
<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData>
    <EncryptionMethod Algorithm="http://www.idpf.org/2008/embedding#obfuscation"/>
    <CipherData><CipherReference URI="fonts/serif.otf"/></CipherData>
  </EncryptedData>
</encryption>`

	if _, err := OpenBytes(buildEPUB(t, files)); err != nil {
		t.Errorf("font obfuscation should not be rejected: %v", err)
	}
}

func TestOpenInvalidArchive(t *testing.T) {
	if _, err := OpenBytes([]byte("not a zip")); !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("err = %v, want ErrInvalidArchive", err)
	}
}

func TestLatin1Fallback(t *testing.T) {
	files := testBookFiles()
	files["OEBPS/ch1.xhtml"] = "<html><body><p>caf\xe9</p></body></html>"

	book, err := OpenBytes(buildEPUB(t, files))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(book.Chapters()[0].RawHTML, "café") {
		t.Error("Latin-1 content not decoded")
	}
}
