package epub

import (
	"archive/zip"
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// detectCoverHref resolves the ZIP-internal path of the publication's cover
// image during deserialization, trying strategies in priority order (neither
// the v2 nor the v3 package document format guarantees a single canonical
// way to mark a cover, so multiple conventions in use across the ecosystem
// are tried in turn):
//  1. ePub 3 manifest item with properties="cover-image"
//  2. ePub 2 <meta name="cover" content="ID"/> → manifest lookup, following
//     through to the first <img> when the id names an XHTML cover page
//  3. <guide> reference type="cover" → parse XHTML for first <img>
//  4. Manifest item whose id or href contains "cover" with an image media type
//  5. First spine item's XHTML → first <img>
//
// Returns "" if no strategy succeeds.
func detectCoverHref(zr *zip.Reader, pkg *opfPackage, byID, byHref map[string]*manifestItem, guide []guideReference, spine []spineItem, opfDir string) string {
	if item := coverFromManifestProperties(pkg, byID); item != nil {
		return resolveOPFPath(opfDir, item.Href)
	}
	if item := coverFromMetaCover(zr, pkg, byID, byHref, opfDir); item != nil {
		return resolveOPFPath(opfDir, item.Href)
	}
	if item := coverFromGuide(zr, guide, byHref, opfDir); item != nil {
		return resolveOPFPath(opfDir, item.Href)
	}
	if item := coverFromManifestHeuristic(pkg, byID); item != nil {
		return resolveOPFPath(opfDir, item.Href)
	}
	if item := coverFromFirstSpine(zr, spine, byHref, opfDir); item != nil {
		return resolveOPFPath(opfDir, item.Href)
	}
	return ""
}

func resolveOPFPath(opfDir, href string) string {
	if opfDir == "" || opfDir == "." {
		return href
	}
	return opfDir + "/" + href
}

func coverFromManifestProperties(pkg *opfPackage, byID map[string]*manifestItem) *manifestItem {
	for _, raw := range pkg.Manifest.Items {
		item, ok := byID[raw.ID]
		if !ok {
			continue
		}
		if slices.Contains(strings.Fields(item.Properties), "cover-image") {
			return item
		}
	}
	return nil
}

func coverFromMetaCover(zr *zip.Reader, pkg *opfPackage, byID, byHref map[string]*manifestItem, opfDir string) *manifestItem {
	for _, m := range pkg.Metadata.Metas {
		if !strings.EqualFold(m.Name, "cover") || m.Content == "" {
			continue
		}
		item, ok := byID[m.Content]
		if !ok {
			continue
		}
		if isImageMediaType(item.MediaType) {
			return item
		}
		xhtmlPath := resolveOPFPath(opfDir, item.Href)
		data, err := readZipPath(zr, xhtmlPath)
		if err != nil {
			continue
		}
		if imgPath := findFirstImageInHTML(data, xhtmlPath); imgPath != "" {
			if imgItem := resolveImageManifestItem(imgPath, opfDir, byHref); imgItem != nil {
				return imgItem
			}
		}
	}
	return nil
}

func coverFromGuide(zr *zip.Reader, guide []guideReference, byHref map[string]*manifestItem, opfDir string) *manifestItem {
	for _, ref := range guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		href := ref.Href
		if idx := strings.IndexByte(href, '#'); idx >= 0 {
			href = href[:idx]
		}
		xhtmlPath := resolveOPFPath(opfDir, href)
		data, err := readZipPath(zr, xhtmlPath)
		if err != nil {
			continue
		}
		imgPath := findFirstImageInHTML(data, xhtmlPath)
		if imgPath == "" {
			continue
		}
		if item := resolveImageManifestItem(imgPath, opfDir, byHref); item != nil {
			return item
		}
	}
	return nil
}

func coverFromManifestHeuristic(pkg *opfPackage, byID map[string]*manifestItem) *manifestItem {
	for _, raw := range pkg.Manifest.Items {
		item, ok := byID[raw.ID]
		if !ok || !isImageMediaType(item.MediaType) {
			continue
		}
		if containsFold(item.ID, "cover") || containsFold(item.Href, "cover") {
			return item
		}
	}
	return nil
}

func coverFromFirstSpine(zr *zip.Reader, spine []spineItem, byHref map[string]*manifestItem, opfDir string) *manifestItem {
	if len(spine) == 0 || spine[0].Href == "" {
		return nil
	}
	xhtmlPath := resolveOPFPath(opfDir, spine[0].Href)
	data, err := readZipPath(zr, xhtmlPath)
	if err != nil {
		return nil
	}
	imgPath := findFirstImageInHTML(data, xhtmlPath)
	if imgPath == "" {
		return nil
	}
	return resolveImageManifestItem(imgPath, opfDir, byHref)
}

// resolveImageManifestItem resolves an absolute ZIP-internal image path to a
// manifestItem, trying the path relative to opfDir, the absolute path, and
// finally a case-insensitive scan.
func resolveImageManifestItem(absPath, opfDir string, byHref map[string]*manifestItem) *manifestItem {
	rel := absPath
	if opfDir != "" && opfDir != "." {
		prefix := opfDir + "/"
		if strings.HasPrefix(absPath, prefix) {
			rel = absPath[len(prefix):]
		}
	}

	if item, ok := byHref[rel]; ok && isImageMediaType(item.MediaType) {
		return item
	}
	if item, ok := byHref[absPath]; ok && isImageMediaType(item.MediaType) {
		return item
	}

	lowerAbs := strings.ToLower(absPath)
	lowerRel := strings.ToLower(rel)
	for _, item := range byHref {
		if !isImageMediaType(item.MediaType) {
			continue
		}
		itemHrefLower := strings.ToLower(item.Href)
		if itemHrefLower == lowerRel || itemHrefLower == lowerAbs {
			return item
		}
		if strings.EqualFold(resolveOPFPath(opfDir, item.Href), absPath) {
			return item
		}
	}
	return nil
}

func readZipPath(zr *zip.Reader, zipPath string) ([]byte, error) {
	f := findFileInsensitive(zr, zipPath)
	if f == nil {
		return nil, ErrUnknownImage
	}
	return readZipFile(f)
}

// findFirstImageInHTML parses HTML data and returns the resolved ZIP-internal
// path of the first <img> element's src attribute, or the first SVG <image>
// element's href. basePath is the ZIP-internal path of the HTML file, used
// to resolve relative image paths. Returns "" if no image is found.
func findFirstImageInHTML(htmlData []byte, basePath string) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			a := atom.Lookup(tn)
			if a == atom.Img && hasAttr {
				for {
					key, val, more := tokenizer.TagAttr()
					if string(key) == "src" && string(val) != "" {
						return resolveRelativePath(basePath, string(val))
					}
					if !more {
						break
					}
				}
			}
			if a == atom.Image && hasAttr {
				for {
					key, val, more := tokenizer.TagAttr()
					k := string(key)
					if (k == "href" || k == "xlink:href") && string(val) != "" {
						return resolveRelativePath(basePath, string(val))
					}
					if !more {
						break
					}
				}
			}
		}
	}
}

func isImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
