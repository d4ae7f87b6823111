package epub

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// imageMimeByExt is the recognised extension->MIME table. It is consulted
// for both the controlled add_image path and deserialization-time manifest
// rebuilding.
var imageMimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// addImageExtensions is the narrower whitelist enforced by add_image:
// bmp/tif/tiff are recognised when already present in a parsed archive, but
// rejected at construction time with ErrInvalidImageExtension.
var addImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true,
}

// mimeForImageExt returns the MIME type for a recognised image extension and
// true, or ("", false) when the extension is not one of imageMimeByExt's keys.
func mimeForImageExt(ext string) (string, bool) {
	m, ok := imageMimeByExt[strings.ToLower(ext)]
	return m, ok
}

// mimeForManifestEntry resolves a MIME type for a resource reconstructed
// during deserialization. The extension table is tried first; when the
// extension isn't recognised, the raw bytes are sniffed via mimetype.Detect
// before falling back to application/octet-stream as a last resort.
func mimeForManifestEntry(href string, data []byte) string {
	_, ext := splitExt(strings.ToLower(href))
	if m, ok := mimeForImageExt(ext); ok {
		return m
	}
	switch ext {
	case ".xhtml", ".html", ".htm":
		return "application/xhtml+xml"
	case ".css":
		return "text/css"
	case ".ncx":
		return "application/x-dtbncx+xml"
	}
	if len(data) > 0 {
		if detected := mimetype.Detect(data); detected != nil {
			if s := detected.String(); s != "" {
				return strings.SplitN(s, ";", 2)[0]
			}
		}
	}
	return "application/octet-stream"
}
