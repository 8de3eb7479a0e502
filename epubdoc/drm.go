package epubdoc

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// ErrDRMProtected is returned for books whose content is encrypted. DRM
// removal is out of scope; such books are rejected at open time.
var ErrDRMProtected = errors.New("epub: DRM-protected content cannot be processed")

// encryptionXML mirrors the parts of META-INF/encryption.xml needed to tell
// content encryption apart from font obfuscation.
type encryptionXML struct {
	XMLName       xml.Name `xml:"encryption"`
	EncryptedData []struct {
		EncryptionMethod struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
		CipherData struct {
			CipherReference struct {
				URI string `xml:"URI,attr"`
			} `xml:"CipherReference"`
		} `xml:"CipherData"`
	} `xml:"EncryptedData"`
}

// checkForDRM rejects archives carrying DRM markers. Adobe's rights.xml is
// an unconditional reject; encryption.xml is parsed, since font obfuscation
// entries are harmless.
func checkForDRM(zr *zip.Reader) error {
	for _, f := range zr.File {
		switch f.Name {
		case "META-INF/rights.xml":
			return ErrDRMProtected
		case "META-INF/encryption.xml":
			encrypted, err := hasEncryptedContent(f)
			if err != nil || encrypted {
				return ErrDRMProtected
			}
		}
	}
	return nil
}

func hasEncryptedContent(f *zip.File) (bool, error) {
	rc, err := f.Open()
	if err != nil {
		return false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return false, err
	}

	var enc encryptionXML
	if err := xml.Unmarshal(data, &enc); err != nil {
		return false, err
	}

	for _, ed := range enc.EncryptedData {
		if isFontObfuscation(ed.EncryptionMethod.Algorithm) {
			continue
		}
		uri := strings.ToLower(ed.CipherData.CipherReference.URI)
		switch {
		case strings.HasSuffix(uri, ".xhtml"), strings.HasSuffix(uri, ".html"),
			strings.HasSuffix(uri, ".htm"), strings.HasSuffix(uri, ".xml"),
			strings.HasSuffix(uri, ".css"):
			return true, nil
		}
	}
	return false, nil
}

// isFontObfuscation recognizes the Adobe and IDPF font mangling algorithms,
// which are not DRM.
func isFontObfuscation(algorithm string) bool {
	return strings.Contains(algorithm, "obfuscation") &&
		(strings.Contains(algorithm, "adobe.com") || strings.Contains(algorithm, "idpf.org"))
}
