package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// navEntry is a parsed entry from an ePub 3 XHTML nav document or an ePub 2
// NCX navMap: a title, the file+fragment it targets, and nested children in
// document order.
type navEntry struct {
	Title    string
	File     string // ZIP-internal path, fragment stripped
	Fragment string // "" unless href carried a "#fragment"
	Children []navEntry
}

// emitNavDocument renders the ePub 3 navigation document: a single toc nav
// mirroring the chapter tree. No landmarks or page-list nav is emitted.
func emitNavDocument(pub *Publication) []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString(`<!DOCTYPE html>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	b.WriteString("<head><title>" + escapeXML(pub.Metadata.Title) + "</title></head>\n")
	b.WriteString("<body>\n")
	b.WriteString(`  <nav epub:type="toc" id="toc">` + "\n")
	fmt.Fprintf(&b, "    <h1>%s</h1>\n", escapeXML("Table of Contents"))
	b.WriteString("    <ol>\n")
	for _, id := range pub.rootChapterIDs {
		emitNavLI(&b, pub, id, 3)
	}
	b.WriteString("    </ol>\n")
	b.WriteString("  </nav>\n")
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// emitNavLI recursively emits an <li> for the chapter and a nested <ol> for
// its children, matching the nav document's list-item grammar.
func emitNavLI(b *strings.Builder, pub *Publication, chapterID string, indent int) {
	ch, ok := pub.chapters[chapterID]
	if !ok {
		return
	}
	pad := strings.Repeat("  ", indent)
	href := navHref(pub, ch)
	fmt.Fprintf(b, "%s<li><a href=%q>%s</a>", pad, href, escapeXML(ch.Title))
	if len(ch.Children) > 0 {
		b.WriteString("\n" + pad + "  <ol>\n")
		for _, childID := range ch.Children {
			emitNavLI(b, pub, childID, indent+2)
		}
		b.WriteString(pad + "  </ol>\n" + pad)
	}
	b.WriteString("</li>\n")
}

// navHref resolves the href a nav entry should carry for a chapter: its own
// filename, or the backing chapter's filename plus its fragment anchor when
// the chapter is virtual.
func navHref(pub *Publication, ch *Chapter) string {
	if ch.Fragment == "" {
		return ch.Filename
	}
	if src, ok := pub.chapters[ch.SourceChapterID]; ok {
		return src.Filename + "#" + ch.Fragment
	}
	return "#" + ch.Fragment
}

// parseNavDocument parses an ePub 3 XHTML nav document and returns the toc
// and landmarks trees. basePath is the ZIP-internal path
// of the nav document, used to resolve relative hrefs.
func parseNavDocument(data []byte, basePath string) (toc, landmarks []navEntry, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("epub: parse nav document: %w", err)
	}

	var navNodes []*html.Node
	var findNavs func(*html.Node)
	findNavs = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "nav" {
			navNodes = append(navNodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findNavs(c)
		}
	}
	findNavs(doc)

	for _, nav := range navNodes {
		if hasEpubType(nav, "toc") {
			if ol := findFirstChildElement(nav, "ol"); ol != nil {
				toc = parseNavOL(ol, basePath)
			}
		} else if hasEpubType(nav, "landmarks") {
			if ol := findFirstChildElement(nav, "ol"); ol != nil {
				landmarks = parseNavOL(ol, basePath)
			}
		}
	}

	return toc, landmarks, nil
}

func parseNavOL(ol *html.Node, basePath string) []navEntry {
	var items []navEntry
	for c := ol.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			items = append(items, parseNavLI(c, basePath))
		}
	}
	return items
}

func parseNavLI(li *html.Node, basePath string) navEntry {
	var item navEntry
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "a":
			if item.File == "" && item.Title == "" {
				href := getAttr(c, "href")
				setEntryTarget(&item, basePath, href)
				item.Title = normalizeLabel(nodeTextContent(c))
			}
		case "span":
			if item.Title == "" {
				item.Title = normalizeLabel(nodeTextContent(c))
			}
		case "ol":
			item.Children = parseNavOL(c, basePath)
		}
	}
	return item
}

// setEntryTarget resolves href (which may carry a #fragment) relative to
// basePath and stores the split result on item.
func setEntryTarget(item *navEntry, basePath, href string) {
	file, frag := splitFragment(href)
	if file != "" {
		if resolved := resolveRelativePath(basePath, file); resolved != "" {
			item.File = resolved
		}
	}
	item.Fragment = frag
}

func splitFragment(href string) (file, fragment string) {
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		return href[:idx], href[idx+1:]
	}
	return href, ""
}

// normalizeLabel trims whitespace and defaults to "Untitled" when a label
// has no text of its own.
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "Untitled"
	}
	return s
}

// hasEpubType checks whether n has an epub:type attribute containing the
// given space-separated token.
func hasEpubType(n *html.Node, typeName string) bool {
	val := getAttr(n, "epub:type")
	for _, t := range strings.Fields(val) {
		if t == typeName {
			return true
		}
	}
	return false
}
