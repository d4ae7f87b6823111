package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// --- parse-side NCX structures (ePub 2) ---

type ncxDocument struct {
	XMLName xml.Name  `xml:"ncx"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID       string        `xml:"id,attr"`
	Label    ncxNavLabel   `xml:"navLabel"`
	Content  ncxContent    `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxNavLabel struct {
	Text string `xml:"text"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// parseNCX parses an NCX document and returns its navMap as a navEntry
// tree. ncxPath is the ZIP-internal path of the NCX file, used
// to resolve relative hrefs.
func parseNCX(data []byte, ncxPath string) ([]navEntry, error) {
	data = preprocessHTMLEntities(data)
	data = stripBOM(data)

	var doc ncxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("epub: parse NCX: %v: %w", err, ErrArchiveMalformed)
	}
	return convertNavPoints(doc.NavMap.NavPoints, ncxPath), nil
}

func convertNavPoints(points []ncxNavPoint, ncxPath string) []navEntry {
	if len(points) == 0 {
		return nil
	}
	items := make([]navEntry, 0, len(points))
	for _, np := range points {
		item := navEntry{Title: normalizeLabel(np.Label.Text)}
		src := strings.TrimSpace(np.Content.Src)
		if src != "" {
			file, frag := splitFragment(src)
			if resolved := resolveRelativePath(ncxPath, file); resolved != "" {
				item.File = resolved
			}
			item.Fragment = frag
		}
		item.Children = convertNavPoints(np.Children, ncxPath)
		items = append(items, item)
	}
	return items
}

// emitNCX renders the ePub 2 NCX document.
func emitNCX(pub *Publication) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<ncx version="2005-1" xmlns="http://www.daisy.org/z3986/2005/ncx/">` + "\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=%q/>\n", pub.Metadata.Identifier)
	fmt.Fprintf(&b, "    <meta name=\"dtb:depth\" content=\"%d\"/>\n", maxInt(1, ncxDepthFromPublication(pub)))
	b.WriteString("    <meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	b.WriteString("    <meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	b.WriteString("  </head>\n")
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n", escapeXML(pub.Metadata.Title))
	if pub.Metadata.Creator != "" {
		fmt.Fprintf(&b, "  <docAuthor><text>%s</text></docAuthor>\n", escapeXML(pub.Metadata.Creator))
	}
	b.WriteString("  <navMap>\n")
	playOrder := 0
	for _, id := range pub.rootChapterIDs {
		emitNavPoint(&b, pub, id, 2, &playOrder)
	}
	b.WriteString("  </navMap>\n")
	b.WriteString("</ncx>\n")
	return []byte(b.String())
}

func emitNavPoint(b *strings.Builder, pub *Publication, chapterID string, indent int, playOrder *int) {
	ch, ok := pub.chapters[chapterID]
	if !ok {
		return
	}
	*playOrder++
	pad := strings.Repeat("  ", indent)
	href := navHref(pub, ch)
	fmt.Fprintf(b, "%s<navPoint id=\"navpoint-%d\" playOrder=\"%d\">\n", pad, *playOrder, *playOrder)
	fmt.Fprintf(b, "%s  <navLabel><text>%s</text></navLabel>\n", pad, escapeXML(ch.Title))
	fmt.Fprintf(b, "%s  <content src=%q/>\n", pad, href)
	for _, childID := range ch.Children {
		emitNavPoint(b, pub, childID, indent+1, playOrder)
	}
	fmt.Fprintf(b, "%s</navPoint>\n", pad)
}

func ncxDepthFromPublication(pub *Publication) int {
	depth := 0
	var walk func(ids []string, level int)
	walk = func(ids []string, level int) {
		if len(ids) == 0 {
			return
		}
		if level > depth {
			depth = level
		}
		for _, id := range ids {
			if ch, ok := pub.chapters[id]; ok {
				walk(ch.Children, level+1)
			}
		}
	}
	walk(pub.rootChapterIDs, 1)
	return depth
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
