package assemble

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// ArchiveWriter is the output-archive collaborator: add files, then build
// the final archive bytes. Build may be called once.
type ArchiveWriter interface {
	AddFile(path string, data []byte) error
	Build() ([]byte, error)
}

// zipArchiveWriter is the default ArchiveWriter.
type zipArchiveWriter struct {
	buf bytes.Buffer
	zw  *zip.Writer
}

// NewZipWriter returns an in-memory ZIP-backed ArchiveWriter.
func NewZipWriter() ArchiveWriter {
	w := &zipArchiveWriter{}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

func (w *zipArchiveWriter) AddFile(path string, data []byte) error {
	fw, err := w.zw.Create(path)
	if err != nil {
		return fmt.Errorf("archive: creating %s: %w", path, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("archive: writing %s: %w", path, err)
	}
	return nil
}

func (w *zipArchiveWriter) Build() ([]byte, error) {
	if err := w.zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalizing: %w", err)
	}
	return w.buf.Bytes(), nil
}

// BuildArchive writes an assembled package-mode result into an archive:
// index.html at the root, assets under the exact paths the document
// references. Asset entries are written in sorted order for deterministic
// output.
func BuildArchive(res Result, w ArchiveWriter) ([]byte, error) {
	if err := w.AddFile("index.html", []byte(res.HTML)); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(res.Assets))
	for p := range res.Assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := w.AddFile(p, res.Assets[p]); err != nil {
			return nil, err
		}
	}

	return w.Build()
}
