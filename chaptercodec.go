package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// emitChapterDocument renders a chapter's full XHTML document: the
// canonical head/body wrapper, one <link rel="stylesheet"> per stylesheet
// href, and the chapter's heading plus content wrapped in a <section> (v3)
// or <div> (v2).
func emitChapterDocument(ch *Chapter, version FormatVersion, stylesheetHrefs []string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")

	level := ch.HeadingLevel
	if level < 1 || level > 6 {
		level = 1
	}

	if version == V2 {
		b.WriteString(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">` + "\n")
		b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n")
	} else {
		b.WriteString(`<!DOCTYPE html>` + "\n")
		b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	}

	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escapeXML(ch.Title))
	for _, href := range stylesheetHrefs {
		fmt.Fprintf(&b, "  <link rel=\"stylesheet\" type=\"text/css\" href=%q/>\n", href)
	}
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	if version == V2 {
		fmt.Fprintf(&b, "  <div id=%q>\n", ch.ID)
	} else {
		fmt.Fprintf(&b, "  <section id=%q epub:type=\"chapter\">\n", ch.ID)
	}
	fmt.Fprintf(&b, "    <h%d>%s</h%d>\n", level, escapeXML(ch.Title), level)
	b.WriteString("    " + ch.Content + "\n")
	if version == V2 {
		b.WriteString("  </div>\n")
	} else {
		b.WriteString("  </section>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// extractChapterContent finds the chapter body within a parsed XHTML
// document, strips the wrapper (<section> for v3, <div> for v2) and its
// first heading element, and returns the remaining markup trimmed. When no
// wrapper is found the entire body contents are returned trimmed.
func extractChapterContent(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("epub: parse chapter markup: %w", err)
	}

	body := findFirstChildElement(doc, "body")
	if body == nil {
		return "", nil
	}

	wrapper := findFirstChildElement(body, "section")
	if wrapper == nil {
		wrapper = findFirstChildElement(body, "div")
	}

	container := body
	if wrapper != nil {
		container = wrapper
	}

	stripFirstHeading(container)
	cleanNode(container)

	return renderChildren(container)
}

// stripFirstHeading removes the first h1-h6 element found among container's
// children (direct children only, matching typical chapter markup shape).
func stripFirstHeading(container *html.Node) {
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isHeadingTag(c.Data) {
			container.RemoveChild(c)
			return
		}
	}
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// extractChapterTitle determines a chapter's title by trying the sources
// named in opts.TitleExtraction, in order, until one yields a non-empty
// string. navLabel is the label supplied by the navigation document that
// pointed at this chapter, if any. counter is used to synthesize
// "Chapter <N>" when every source is empty.
func extractChapterTitle(data []byte, navLabel string, opts Options, counter int) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		if navLabel != "" {
			return navLabel
		}
		return fmt.Sprintf("Chapter %d", counter)
	}

	for _, source := range opts.TitleExtraction {
		switch source {
		case SourceHead:
			if opts.IgnoreHeadTitle {
				continue
			}
			if title := strings.TrimSpace(extractHeadTitle(doc)); title != "" {
				return title
			}
		case SourceContent:
			if h1 := strings.TrimSpace(extractHeadingText(doc, "h1")); h1 != "" {
				return h1
			}
			if h2 := strings.TrimSpace(extractHeadingText(doc, "h2")); h2 != "" {
				return h2
			}
		case SourceNav:
			if title := strings.TrimSpace(navLabel); title != "" {
				return title
			}
		}
	}

	return fmt.Sprintf("Chapter %d", counter)
}

func extractHeadTitle(doc *html.Node) string {
	head := findFirstChildElement(doc, "head")
	if head == nil {
		return ""
	}
	title := findFirstChildElement(head, "title")
	if title == nil {
		return ""
	}
	return nodeTextContent(title)
}

// extractHeadingLevel returns the lowest level number (1-6) among the
// heading elements present anywhere in the document body (an h1 anywhere
// wins over an earlier h2), defaulting to 1 when none is present.
func extractHeadingLevel(data []byte) int {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	body := findFirstChildElement(doc, "body")
	if body == nil {
		return 1
	}
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if findFirstChildElement(body, tag) != nil {
			return int(tag[1] - '0')
		}
	}
	return 1
}

func extractHeadingText(doc *html.Node, tag string) string {
	body := findFirstChildElement(doc, "body")
	if body == nil {
		return ""
	}
	h := findFirstChildElement(body, tag)
	if h == nil {
		return ""
	}
	return nodeTextContent(h)
}
