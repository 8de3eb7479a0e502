package resolve

import (
	"reflect"
	"testing"
)

// setIndex backs the Index interface with a plain string set.
type setIndex map[string]bool

func (s setIndex) Has(p string) bool { return s[p] }

func TestResolveExternal(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"empty", ""},
		{"http", "http://example.com/a.png"},
		{"https", "https://example.com/a.png"},
		{"data", "data:image/png;base64,AAAA"},
		{"mailto", "mailto:someone@example.com"},
		{"tel", "tel:+15551234567"},
		{"sms", "sms:+15551234567"},
		{"blob", "blob:abc-123"},
		{"scheme case", "HTTPS://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(nil, "OEBPS", "OEBPS/ch1.xhtml", tt.ref)
			if !got.External {
				t.Errorf("Resolve(%q).External = false, want true", tt.ref)
			}
			if len(got.Candidates) != 0 {
				t.Errorf("Resolve(%q).Candidates = %v, want none", tt.ref, got.Candidates)
			}
		})
	}
}

func TestResolveFragmentOnly(t *testing.T) {
	got := Resolve(nil, "", "ch1.xhtml", "#note-3")
	if !got.External {
		t.Fatal("fragment-only reference should be external")
	}
	if got.Fragment != "#note-3" {
		t.Errorf("Fragment = %q, want %q", got.Fragment, "#note-3")
	}
}

func TestResolveFragmentAndQuery(t *testing.T) {
	got := Resolve(nil, "", "ch1.xhtml", "img/pic.png?x=1#frag")
	if got.External {
		t.Fatal("relative reference should not be external")
	}
	if got.Fragment != "#frag" {
		t.Errorf("Fragment = %q, want %q", got.Fragment, "#frag")
	}
	// The query is dropped from the resolved path.
	want := []string{"img/pic.png"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("Candidates = %v, want %v", got.Candidates, want)
	}
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		name     string
		opfDir   string
		baseHref string
		ref      string
		idx      setIndex
		want     []string
	}{
		{
			name:     "sibling",
			baseHref: "ch1.xhtml",
			ref:      "cover.jpg",
			want:     []string{"cover.jpg"},
		},
		{
			name:     "same dir under opf",
			opfDir:   "OEBPS",
			baseHref: "OEBPS/ch1.xhtml",
			ref:      "images/cover.jpg",
			want:     []string{"OEBPS/images/cover.jpg"},
		},
		{
			name:     "parent traversal",
			opfDir:   "OEBPS",
			baseHref: "OEBPS/text/ch1.xhtml",
			ref:      "../images/cover.jpg",
			want:     []string{"OEBPS/images/cover.jpg"},
		},
		{
			name:     "dot segment",
			baseHref: "text/ch1.xhtml",
			ref:      "./pic.png",
			want:     []string{"text/pic.png"},
		},
		{
			name:     "escapes root",
			baseHref: "ch1.xhtml",
			ref:      "../../pic.png",
			want:     []string{"pic.png"},
		},
		{
			name:     "url encoded",
			baseHref: "OEBPS/ch1.xhtml",
			opfDir:   "OEBPS",
			ref:      "my%20image.png",
			want:     []string{"OEBPS/my image.png"},
		},
		{
			name:     "literal plus survives decoding",
			baseHref: "OEBPS/ch1.xhtml",
			opfDir:   "OEBPS",
			ref:      "a+b.png",
			want:     []string{"OEBPS/a+b.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.idx, tt.opfDir, tt.baseHref, tt.ref)
			if got.External {
				t.Fatal("unexpected external reference")
			}
			if !reflect.DeepEqual(got.Candidates, tt.want) {
				t.Errorf("Candidates = %v, want %v", got.Candidates, tt.want)
			}
		})
	}
}

func TestResolveOPFPrefixOrdering(t *testing.T) {
	// Path resolved outside the OPF dir, archive confirms the literal form:
	// literal first, prefixed as fallback.
	idx := setIndex{"images/cover.jpg": true}
	got := Resolve(idx, "OEBPS", "ch1.xhtml", "images/cover.jpg")
	want := []string{"images/cover.jpg", "OEBPS/images/cover.jpg"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("Candidates = %v, want %v", got.Candidates, want)
	}

	// Archive does not know the literal form: the OPF-prefixed guess wins.
	got = Resolve(setIndex{}, "OEBPS", "ch1.xhtml", "images/cover.jpg")
	want = []string{"OEBPS/images/cover.jpg", "images/cover.jpg"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("Candidates = %v, want %v", got.Candidates, want)
	}
}

func TestResolveRootRelative(t *testing.T) {
	// Leading slash means root-relative, but the OPF-prefixed variant is
	// still offered since some producers mean OPF-relative.
	idx := setIndex{"images/cover.jpg": true}
	got := Resolve(idx, "OEBPS", "OEBPS/ch1.xhtml", "/images/cover.jpg")
	want := []string{"images/cover.jpg", "OEBPS/images/cover.jpg"}
	if !reflect.DeepEqual(got.Candidates, want) {
		t.Errorf("Candidates = %v, want %v", got.Candidates, want)
	}
}

func TestResolveWindowsPath(t *testing.T) {
	for _, ref := range []string{`C:\books\cover.jpg`, `d:/tmp/pic.png`} {
		got := Resolve(nil, "", "ch1.xhtml", ref)
		if got.External {
			t.Errorf("Resolve(%q).External = true, want false", ref)
		}
		if len(got.Candidates) != 0 {
			t.Errorf("Resolve(%q).Candidates = %v, want none", ref, got.Candidates)
		}
	}
}

func TestResolveCaseSensitiveIndex(t *testing.T) {
	idx := setIndex{"Images/Cover.jpg": true}
	got := Resolve(idx, "OEBPS", "ch1.xhtml", "images/cover.jpg")
	// Strict index miss: prefixed candidate ordered first.
	if got.Candidates[0] != "OEBPS/images/cover.jpg" {
		t.Errorf("Candidates[0] = %q, want OPF-prefixed form", got.Candidates[0])
	}
}
