// Package converter turns EPUB publications into self-contained outputs:
// plain text, a single HTML document with every asset inlined, a ZIP
// package with assets alongside the document, or a paginated PDF.
//
// Basic usage:
//
//	text, err := converter.Open("book.epub").Text(ctx)
//	if err != nil {
//	    // handle error
//	}
//
// With options:
//
//	html, err := converter.Open("book.epub").
//	    WithLogger(logger).
//	    WithProgress(func(ev progress.Event) { fmt.Println(ev.Percent) }).
//	    HTML(ctx)
//
// For lower-level access to the publication itself, the epubdoc package is
// also available.
package converter

import (
	"bytes"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/epubdoc"
	"github.com/albertbuchard/one-more-epub-converter/format"
	"github.com/albertbuchard/one-more-epub-converter/progress"
)

// Converter provides a fluent interface for converting an EPUB. Each
// configuration method returns a new Converter instance, making chains
// safe to fork and reuse.
type Converter struct {
	// Source; exactly one of filename, data, or book is the origin.
	filename string
	data     []byte
	book     *epubdoc.Book

	options convertOptions

	// Accumulated error (fail-fast): terminal operations return it
	// without doing any work.
	err error
}

// Open prepares a conversion of the named EPUB file. The file is read when
// a terminal operation runs.
//
// Example:
//
//	text, err := converter.Open("book.epub").Text(ctx)
func Open(filename string) *Converter {
	return &Converter{filename: filename, options: defaultOptions()}
}

// FromBytes prepares a conversion of an in-memory EPUB.
func FromBytes(data []byte) *Converter {
	return &Converter{data: data, options: defaultOptions()}
}

// FromBook prepares a conversion of an already-opened publication. The
// caller keeps ownership of the Book.
func FromBook(b *epubdoc.Book) *Converter {
	return &Converter{book: b, options: defaultOptions()}
}

// clone creates a shallow copy with a deep copy of options, so configured
// chains never alias each other.
func (c *Converter) clone() *Converter {
	return &Converter{
		filename: c.filename,
		data:     c.data,
		book:     c.book,
		options:  c.options.clone(),
		err:      c.err,
	}
}

// WithLogger sets the logger for the conversion. Defaults to a no-op
// logger.
func (c *Converter) WithLogger(log *zap.Logger) *Converter {
	nc := c.clone()
	nc.options.logger = log
	return nc
}

// WithProgress registers a callback for progress events. Deliveries are
// frame-throttled; terminal events are always delivered.
func (c *Converter) WithProgress(fn func(progress.Event)) *Converter {
	nc := c.clone()
	nc.options.onProgress = fn
	return nc
}

// WithTitle overrides the title taken from the publication's metadata.
func (c *Converter) WithTitle(title string) *Converter {
	nc := c.clone()
	nc.options.title = title
	return nc
}

// ensureBook opens the publication if it is not open yet. Input that is
// not an EPUB is rejected here, before any pipeline work.
func (c *Converter) ensureBook() (*epubdoc.Book, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.book != nil {
		return c.book, nil
	}

	data := c.data
	if data == nil {
		if c.filename == "" {
			return nil, fmt.Errorf("no input specified")
		}
		var err error
		data, err = os.ReadFile(c.filename)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c.filename, err)
		}
	}

	f, err := format.DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("detecting input format: %w", err)
	}
	if f != format.EPUB && f != format.ZIP {
		return nil, fmt.Errorf("unsupported input format: %s", f)
	}

	book, err := epubdoc.OpenBytes(data)
	if err != nil {
		return nil, err
	}
	c.book = book
	return book, nil
}

// title resolves the document title: explicit override first, then the
// publication metadata.
func (c *Converter) title(book *epubdoc.Book) string {
	if c.options.title != "" {
		return c.options.title
	}
	return book.Title()
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	text := converter.Must(converter.Open("book.epub").Text(ctx))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
