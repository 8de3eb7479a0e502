// Package resolve maps raw references found in chapter documents onto
// candidate paths inside the EPUB archive.
//
// EPUB producers are inconsistent about how internal references are written:
// relative to the referencing document, relative to the OPF directory,
// root-relative, URL-encoded, or some mix of these. Rather than guessing a
// single canonical path, Resolve returns an ordered candidate list and lets
// the fetcher try each against the archive.
package resolve

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Index reports whether a path exists in the archive. Lookups are strict:
// case-sensitive, no normalization. It is consulted to decide candidate
// ordering, never to filter candidates out.
type Index interface {
	Has(path string) bool
}

// Reference is the outcome of resolving a raw reference string.
type Reference struct {
	// Candidates are canonical root-relative archive paths, in the order
	// they should be tried. Empty for external or unresolvable references.
	Candidates []string

	// External marks references that must never be fetched from the
	// archive: other schemes, data URIs, and fragment-only links. The
	// rewriter leaves these untouched.
	External bool

	// Fragment holds the "#..." suffix of the original reference, if any.
	// It is re-appended verbatim to whatever value the rewriter
	// substitutes. The query string, by contrast, is dropped.
	Fragment string
}

// skipSchemes are reference prefixes that are never archive-internal.
var skipSchemes = []string{"data:", "http:", "https:", "mailto:", "tel:", "sms:", "blob:"}

// windowsPathRe matches drive-letter absolute paths produced by broken
// authoring tools. These cannot map to an archive entry.
var windowsPathRe = regexp.MustCompile(`^[a-zA-Z]:[/\\]`)

// Resolve maps ref, as written in the document at baseHref, onto archive
// path candidates. opfDir is the directory of the package document ("" when
// the OPF sits at the archive root); idx may be nil, in which case the
// OPF-prefixed candidate is ordered first whenever it applies.
func Resolve(idx Index, opfDir, baseHref, ref string) Reference {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{External: true}
	}

	var frag string
	if i := strings.Index(ref, "#"); i >= 0 {
		frag = ref[i:]
		ref = ref[:i]
	}
	if ref == "" {
		// Fragment-only link, points inside the current document.
		return Reference{External: true, Fragment: frag}
	}

	lower := strings.ToLower(ref)
	for _, s := range skipSchemes {
		if strings.HasPrefix(lower, s) {
			return Reference{External: true, Fragment: frag}
		}
	}

	if windowsPathRe.MatchString(ref) {
		return Reference{Fragment: frag}
	}

	if i := strings.Index(ref, "?"); i >= 0 {
		ref = ref[:i]
	}
	// PathUnescape, not QueryUnescape: a literal "+" in a filename must
	// survive decoding.
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}

	var resolved string
	if strings.HasPrefix(ref, "/") {
		resolved = normalize(ref)
	} else {
		resolved = normalize(path.Dir(baseHref) + "/" + ref)
	}
	if resolved == "" {
		return Reference{Fragment: frag}
	}

	return Reference{
		Candidates: orderCandidates(idx, opfDir, resolved),
		Fragment:   frag,
	}
}

// orderCandidates pairs the plain resolved path with its OPF-prefixed form.
// The plain path goes first when the index confirms it exists (or when no
// prefixed form applies); otherwise the prefixed form is the better guess,
// since many producers write root-relative paths that are really
// OPF-relative.
func orderCandidates(idx Index, opfDir, resolved string) []string {
	if opfDir == "" || strings.HasPrefix(resolved, opfDir+"/") {
		return []string{resolved}
	}
	prefixed := opfDir + "/" + resolved
	if idx != nil && idx.Has(resolved) {
		return []string{resolved, prefixed}
	}
	return []string{prefixed, resolved}
}

// normalize collapses "." and ".." segments and strips empty ones, yielding
// a root-relative path with forward slashes. Segments that would climb above
// the archive root are discarded.
func normalize(p string) string {
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
