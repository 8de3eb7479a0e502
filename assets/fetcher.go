// Package assets fetches referenced resources out of the book archive,
// memoizing per conversion job, and turns them into data URIs or emitted
// package files.
package assets

import (
	"strings"

	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"

	"github.com/albertbuchard/one-more-epub-converter/resolve"
)

// smallImageThreshold guards against archives that store an error page or
// placeholder where an image should be: payloads under this size that do not
// carry an image media type are treated as fetch failures. Tunable, with a
// known false-positive risk for legitimately tiny images.
const smallImageThreshold = 200

// Source is the archive side of the fetcher: byte access by exact path plus
// the manifest-declared media type, when one exists.
type Source interface {
	FetchBytes(path string) ([]byte, error)
	MediaType(path string) string
}

// Asset is a successfully fetched resource.
type Asset struct {
	Bytes []byte
	MIME  string
	Path  string // the candidate path that matched
}

// Fetcher resolves candidate lists against a Source. All caches live on the
// Fetcher, so a fresh one per conversion job gives the job-scoped
// memoization the pipeline relies on.
type Fetcher struct {
	src      Source
	log      *zap.Logger
	cache    map[string]*Asset // keyed by matched path
	dataURIs map[string]string // keyed by matched path
	misses   map[string]bool   // paths already logged as missing
}

// NewFetcher returns a Fetcher with empty caches. log may be nil.
func NewFetcher(src Source, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		src:      src,
		log:      log,
		cache:    make(map[string]*Asset),
		dataURIs: make(map[string]string),
		misses:   make(map[string]bool),
	}
}

// Fetch tries each candidate in order and returns the first hit, or nil when
// none resolves. A miss is expected for broken references and is logged once
// per distinct reference, never repeated.
func (f *Fetcher) Fetch(ref resolve.Reference) *Asset {
	if ref.External {
		return nil
	}
	for _, p := range ref.Candidates {
		if a, ok := f.cache[p]; ok {
			return a
		}
	}
	for _, p := range ref.Candidates {
		data, err := f.src.FetchBytes(p)
		if err != nil {
			continue
		}
		a := &Asset{Bytes: data, MIME: f.mimeFor(p), Path: p}
		f.cache[p] = a
		return a
	}

	key := strings.Join(ref.Candidates, "|")
	if key != "" && !f.misses[key] {
		f.misses[key] = true
		f.log.Warn("asset not found in archive", zap.Strings("candidates", ref.Candidates))
	}
	return nil
}

// FetchImage is Fetch with the undersized-payload guard for callers that
// expect image bytes.
func (f *Fetcher) FetchImage(ref resolve.Reference) *Asset {
	a := f.Fetch(ref)
	if a == nil {
		return nil
	}
	if len(a.Bytes) < smallImageThreshold && !strings.HasPrefix(a.MIME, "image/") {
		key := "small:" + a.Path
		if !f.misses[key] {
			f.misses[key] = true
			f.log.Warn("implausibly small non-image payload treated as missing",
				zap.String("path", a.Path), zap.Int("size", len(a.Bytes)))
		}
		return nil
	}
	return a
}

// DataURI renders an asset as a base64 data URI, cached per matched path so
// shared resources are encoded once per job.
func (f *Fetcher) DataURI(a *Asset) string {
	if uri, ok := f.dataURIs[a.Path]; ok {
		return uri
	}
	uri := dataurl.New(a.Bytes, a.MIME).String()
	f.dataURIs[a.Path] = uri
	return uri
}

// mimeFor prefers the manifest media type and falls back to the extension
// table.
func (f *Fetcher) mimeFor(path string) string {
	if mt := f.src.MediaType(path); mt != "" {
		return mt
	}
	return MIMEByPath(path)
}
