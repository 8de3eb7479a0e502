package epubdoc

import (
	"errors"
	"net/url"
	"strings"

	"github.com/beevik/etree"
)

// ErrInvalidOPF reports an unparseable package document.
var ErrInvalidOPF = errors.New("epub: invalid package document")

// Metadata holds the Dublin Core subset the converter surfaces.
type Metadata struct {
	Title       string
	Creators    []string
	Language    string
	Identifier  string
	Description string
}

// ManifestItem is one entry of the OPF manifest. Href is URL-decoded but
// still OPF-relative.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// opfPackage is the parsed package document.
type opfPackage struct {
	Metadata Metadata
	Manifest map[string]ManifestItem // keyed by ID
	Spine    []string                // itemref IDs in reading order
}

// parseOPF parses the package document at opfPath. Real-world OPF files use
// assorted namespace prefixes (dc:, opf:, none at all), so elements are
// matched by local tag name only.
func parseOPF(b *Book, opfPath string) (*opfPackage, error) {
	data, err := b.FetchBytes(opfPath)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, ErrInvalidOPF
	}
	root := doc.Root()
	if root == nil || root.Tag != "package" {
		return nil, ErrInvalidOPF
	}

	pkg := &opfPackage{Manifest: make(map[string]ManifestItem)}

	if meta := firstChildByTag(root, "metadata"); meta != nil {
		pkg.Metadata = Metadata{
			Title:       firstText(meta, "title"),
			Creators:    allText(meta, "creator"),
			Language:    firstText(meta, "language"),
			Identifier:  firstText(meta, "identifier"),
			Description: firstText(meta, "description"),
		}
	}

	if man := firstChildByTag(root, "manifest"); man != nil {
		for _, el := range man.ChildElements() {
			if el.Tag != "item" {
				continue
			}
			id := el.SelectAttrValue("id", "")
			href := el.SelectAttrValue("href", "")
			if id == "" || href == "" {
				continue
			}
			if decoded, derr := url.PathUnescape(href); derr == nil {
				href = decoded
			}
			pkg.Manifest[id] = ManifestItem{
				ID:         id,
				Href:       href,
				MediaType:  el.SelectAttrValue("media-type", ""),
				Properties: el.SelectAttrValue("properties", ""),
			}
		}
	}

	if spine := firstChildByTag(root, "spine"); spine != nil {
		for _, el := range spine.ChildElements() {
			if el.Tag != "itemref" {
				continue
			}
			idref := el.SelectAttrValue("idref", "")
			if idref == "" || el.SelectAttrValue("linear", "yes") == "no" {
				continue
			}
			pkg.Spine = append(pkg.Spine, idref)
		}
	}

	return pkg, nil
}

// firstChildByTag returns the first direct child with the given local tag.
func firstChildByTag(parent *etree.Element, tag string) *etree.Element {
	for _, el := range parent.ChildElements() {
		if el.Tag == tag {
			return el
		}
	}
	return nil
}

// firstText returns the trimmed text of the first descendant with the tag.
func firstText(parent *etree.Element, tag string) string {
	for _, el := range descendantsByTag(parent, tag) {
		if t := strings.TrimSpace(el.Text()); t != "" {
			return t
		}
	}
	return ""
}

// allText returns the trimmed text of every descendant with the tag.
func allText(parent *etree.Element, tag string) []string {
	var out []string
	for _, el := range descendantsByTag(parent, tag) {
		if t := strings.TrimSpace(el.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func descendantsByTag(parent *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, el := range parent.ChildElements() {
		if el.Tag == tag {
			out = append(out, el)
		}
		out = append(out, descendantsByTag(el, tag)...)
	}
	return out
}
