package epubdoc

import (
	"encoding/xml"
	"errors"
	"strings"
)

// Container-related errors.
var (
	ErrNoContainer = errors.New("epub: missing META-INF/container.xml")
	ErrNoRootfile  = errors.New("epub: no rootfile found in container.xml")
)

// containerXML mirrors META-INF/container.xml.
type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// findRootfile locates the package document path. When container.xml is
// missing or broken it falls back to the first .opf entry in the archive,
// which rescues a surprising number of hand-rolled books.
func findRootfile(b *Book) (string, error) {
	data, err := b.FetchBytes("META-INF/container.xml")
	if err == nil {
		var c containerXML
		if xml.Unmarshal(data, &c) == nil {
			for _, rf := range c.Rootfiles {
				if rf.FullPath != "" && (rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "") {
					return rf.FullPath, nil
				}
			}
			if len(c.Rootfiles) > 0 && c.Rootfiles[0].FullPath != "" {
				return c.Rootfiles[0].FullPath, nil
			}
		}
	}

	for name := range b.entries {
		if strings.HasSuffix(strings.ToLower(name), ".opf") {
			return name, nil
		}
	}
	if err != nil {
		return "", ErrNoContainer
	}
	return "", ErrNoRootfile
}
