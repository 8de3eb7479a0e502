package assets

import (
	"fmt"
	"path"
	"strings"
)

// Sink collects assets emitted in package mode, assigning each resolved path
// a unique archive-relative name under assets/. The same resolved path
// always maps to the same emitted path within one job.
type Sink struct {
	byPath map[string]string // resolved path -> emitted path
	taken  map[string]bool
	files  map[string][]byte
	order  []string
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{
		byPath: make(map[string]string),
		taken:  make(map[string]bool),
		files:  make(map[string][]byte),
	}
}

// Add registers an asset and returns its emitted path, e.g. "assets/cover.jpg".
// Name collisions between distinct source paths get -2, -3, ... suffixes
// before the extension.
func (s *Sink) Add(a *Asset) string {
	if emitted, ok := s.byPath[a.Path]; ok {
		return emitted
	}

	name := sanitizeName(path.Base(a.Path))
	emitted := "assets/" + name
	for n := 2; s.taken[emitted]; n++ {
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		emitted = fmt.Sprintf("assets/%s-%d%s", stem, n, ext)
	}

	s.taken[emitted] = true
	s.byPath[a.Path] = emitted
	s.files[emitted] = a.Bytes
	s.order = append(s.order, emitted)
	return emitted
}

// Files returns the emitted files keyed by archive-relative path.
func (s *Sink) Files() map[string][]byte {
	return s.files
}

// Paths returns emitted paths in insertion order, for deterministic archive
// layout.
func (s *Sink) Paths() []string {
	return s.order
}

// sanitizeName keeps a conservative character set in emitted file names.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}
