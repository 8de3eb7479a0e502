package assets

import (
	"path"
	"strings"
)

// mimeByExt is the fixed extension table used when the manifest declares no
// media type. Only formats that plausibly appear inside EPUB archives are
// listed; anything else is an octet stream.
var mimeByExt = map[string]string{
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".bmp":   "image/bmp",
	".ico":   "image/x-icon",
	".css":   "text/css",
	".js":    "text/javascript",
	".xhtml": "application/xhtml+xml",
	".html":  "text/html",
	".htm":   "text/html",
	".xml":   "application/xml",
	".txt":   "text/plain",
	".otf":   "font/otf",
	".ttf":   "font/ttf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
}

// MIMEByPath infers a media type from the path's extension.
func MIMEByPath(p string) string {
	if mt, ok := mimeByExt[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return "application/octet-stream"
}
