// Package format provides input format detection for the converter.
package format

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// Format represents a recognized input format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// EPUB indicates an EPUB publication.
	EPUB
	// ZIP indicates a generic ZIP archive without EPUB structure.
	ZIP
	// HTML indicates a standalone HTML document.
	HTML
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case EPUB:
		return "EPUB"
	case ZIP:
		return "ZIP"
	case HTML:
		return "HTML"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case EPUB:
		return ".epub"
	case ZIP:
		return ".zip"
	case HTML:
		return ".html"
	default:
		return ""
	}
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".epub":
		return EPUB
	case ".zip":
		return ZIP
	case ".html", ".htm", ".xhtml":
		return HTML
	default:
		return Unknown
	}
}

var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// DetectFromMagic checks leading bytes to determine format. A ZIP signature
// alone cannot distinguish an EPUB from a plain archive; callers that need
// that distinction should use DetectFromReader.
func DetectFromMagic(data []byte) Format {
	if len(data) < 4 {
		return Unknown
	}
	if bytes.HasPrefix(data, zipMagic) {
		return ZIP
	}
	if detectHTMLMagic(data) {
		return HTML
	}
	return Unknown
}

// detectHTMLMagic checks if the data looks like HTML content.
func detectHTMLMagic(data []byte) bool {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if trimmed == "" {
		return false
	}

	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE HTML") {
		return true
	}
	if strings.HasPrefix(upper, "<HTML") {
		return true
	}
	// XML declaration followed by html-like content could be XHTML
	if strings.HasPrefix(upper, "<?XML") && strings.Contains(upper[:min(500, len(upper))], "<HTML") {
		return true
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DetectFromReader inspects the content to determine format. Unlike
// extension-based detection it can tell an EPUB apart from a plain ZIP
// archive by looking inside the container.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 512)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	magic = magic[:n]

	if bytes.HasPrefix(magic, zipMagic) {
		return detectZIPFormat(r, size)
	}
	if detectHTMLMagic(magic) {
		return HTML, nil
	}
	return Unknown, nil
}

// detectZIPFormat inspects a ZIP archive for EPUB structure: either the
// reserved mimetype entry or the OCF container descriptor marks an EPUB.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}

	for _, f := range zr.File {
		if f.Name == "META-INF/container.xml" {
			return EPUB, nil
		}
		if f.Name == "mimetype" {
			rc, err := f.Open()
			if err != nil {
				continue
			}
			data := make([]byte, 64)
			n, _ := rc.Read(data)
			rc.Close()
			if strings.Contains(string(data[:n]), "application/epub+zip") {
				return EPUB, nil
			}
		}
	}
	return ZIP, nil
}
