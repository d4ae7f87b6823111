package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// --- parse-side OPF structures ---

// opfPackage represents the root <package> element of a package document.
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
	Guide            opfGuide    `xml:"guide"`
}

// opfMetadata holds the raw Dublin Core elements from the package document.
type opfMetadata struct {
	Titles       []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages    []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers  []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publishers   []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Dates        []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ date"`
	Descriptions []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subjects     []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Rights       []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Contributors []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ contributor"`
	Types        []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ type"`
	Formats      []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ format"`
	Sources      []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ source"`
	Relations    []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ relation"`
	Coverages    []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ coverage"`
	Metas        []opfMeta      `xml:"meta"`
}

// opfMeta represents a bare <meta name="..." content="..."/> element, used
// to recover the ePub 2 "cover" hint.
type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

// opfDCElement holds a Dublin Core element. It accepts both the bare text
// content an ordinary parser returns and the "_" pseudo-attribute some XML
// libraries use to expose chardata alongside attributes; encoding/xml's
// `,chardata` tag already gives us the text either way.
type opfDCElement struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfManifest wraps the <manifest> element.
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents a single <item> in the manifest.
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine wraps the <spine> element.
type opfSpine struct {
	Toc      string            `xml:"toc,attr"`
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

// opfSpineItemRef represents a single <itemref> in the spine.
type opfSpineItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// opfGuide wraps the (ePub 2) <guide> element, kept to support the cover
// heuristics in cover.go.
type opfGuide struct {
	References []opfGuideReference `xml:"reference"`
}

type opfGuideReference struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// manifestItem is the processed manifest record used throughout
// deserialization.
type manifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// spineItem is the processed spine record used throughout deserialization.
type spineItem struct {
	ID     string
	Href   string
	Linear bool
	IDRef  string
}

// guideReference is the processed representation of a guide reference entry.
type guideReference struct {
	Type  string
	Title string
	Href  string
}

// parsePackageDocument parses the package document bytes.
func parsePackageDocument(data []byte) (*opfPackage, error) {
	data = preprocessHTMLEntities(data)
	data = stripBOM(data)

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package document: %v: %w", err, ErrArchiveMalformed)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

func buildManifestMaps(manifest opfManifest) (byID, byHref map[string]*manifestItem) {
	byID = make(map[string]*manifestItem, len(manifest.Items))
	byHref = make(map[string]*manifestItem, len(manifest.Items))
	for _, item := range manifest.Items {
		mi := &manifestItem{ID: item.ID, Href: item.Href, MediaType: item.MediaType, Properties: item.Properties}
		byID[item.ID] = mi
		byHref[item.Href] = mi
	}
	return byID, byHref
}

func buildSpine(spine opfSpine, manifestByID map[string]*manifestItem) []spineItem {
	items := make([]spineItem, 0, len(spine.ItemRefs))
	for _, ref := range spine.ItemRefs {
		si := spineItem{IDRef: ref.IDRef, Linear: ref.Linear != "no"}
		if mi, ok := manifestByID[ref.IDRef]; ok {
			si.ID = mi.ID
			si.Href = mi.Href
		}
		items = append(items, si)
	}
	return items
}

func buildGuide(guide opfGuide) []guideReference {
	refs := make([]guideReference, 0, len(guide.References))
	for _, r := range guide.References {
		refs = append(refs, guideReference{Type: r.Type, Title: r.Title, Href: r.Href})
	}
	return refs
}

// extractMetadata converts the raw package-document metadata into a
// DublinCoreMetadata, taking the first non-empty value for singular fields
// and defaulting title to "Untitled", creator to "Unknown", and language to "en".
func extractMetadata(opf *opfPackage) DublinCoreMetadata {
	md := DublinCoreMetadata{Language: "en"}
	om := &opf.Metadata

	md.Title = firstNonEmpty(om.Titles)
	if md.Title == "" {
		md.Title = "Untitled"
	}
	md.Creator = firstNonEmpty(om.Creators)
	if md.Creator == "" {
		md.Creator = "Unknown"
	}
	if lang := firstNonEmpty(om.Languages); lang != "" {
		md.Language = lang
	}
	md.Identifier = firstNonEmpty(om.Identifiers)
	md.Date = firstNonEmpty(om.Dates)
	md.Publisher = firstNonEmpty(om.Publishers)
	md.Description = firstNonEmpty(om.Descriptions)
	md.Rights = firstNonEmpty(om.Rights)
	md.Type = firstNonEmpty(om.Types)
	md.Format = firstNonEmpty(om.Formats)
	md.Source = firstNonEmpty(om.Sources)
	md.Relation = firstNonEmpty(om.Relations)
	md.Coverage = firstNonEmpty(om.Coverages)
	md.Subject = nonEmptyValues(om.Subjects)
	md.Contributor = nonEmptyValues(om.Contributors)

	return md
}

func firstNonEmpty(elems []opfDCElement) string {
	for _, e := range elems {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

func nonEmptyValues(elems []opfDCElement) []string {
	var out []string
	for _, e := range elems {
		if v := strings.TrimSpace(e.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// --- emission side ---

// manifestEntry and spineEntry are the inputs the serializer hands to
// emitPackageDocument; they are built by serialize.go from the Publication.
type manifestEntry struct {
	ID         string
	Href       string
	MediaType  string
	Properties string // v3 only
}

type spineEntry struct {
	IDRef      string
	Linear     bool
	Properties string // v3 only
	order      int    // Chapter.Order, used only to sort spine entries
}

// emitPackageDocument renders the package document for the given version.
// ncxManifestID is the manifest id of the v3 nav item or the v2 NCX
// item, used for the v2 spine's toc= attribute; it is ignored for v3.
func emitPackageDocument(pub *Publication, version FormatVersion, manifest []manifestEntry, spine []spineEntry, ncxManifestID string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)

	if version == V3 {
		lang := pub.Metadata.Language
		if lang == "" {
			lang = "en"
		}
		fmt.Fprintf(&b, `<package version="3.0" unique-identifier="pub-id" xml:lang=%q xmlns="http://www.idpf.org/2007/opf">`+"\n", lang)
	} else {
		b.WriteString(`<package version="2.0" unique-identifier="pub-id" xmlns="http://www.idpf.org/2007/opf">` + "\n")
	}

	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", escapeXML(pub.Metadata.Identifier))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(pub.Metadata.Title))
	fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escapeXML(pub.Metadata.Creator))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escapeXML(pub.Metadata.Language))
	if pub.Metadata.Date != "" {
		fmt.Fprintf(&b, "    <dc:date>%s</dc:date>\n", escapeXML(pub.Metadata.Date))
	}
	if version == V3 {
		fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	}
	writeOptionalDC(&b, "publisher", pub.Metadata.Publisher)
	writeOptionalDC(&b, "description", pub.Metadata.Description)
	for _, s := range pub.Metadata.Subject {
		fmt.Fprintf(&b, "    <dc:subject>%s</dc:subject>\n", escapeXML(s))
	}
	writeOptionalDC(&b, "rights", pub.Metadata.Rights)
	for _, c := range pub.Metadata.Contributor {
		fmt.Fprintf(&b, "    <dc:contributor>%s</dc:contributor>\n", escapeXML(c))
	}
	if version == V3 {
		writeOptionalDC(&b, "type", pub.Metadata.Type)
		writeOptionalDC(&b, "format", pub.Metadata.Format)
		writeOptionalDC(&b, "source", pub.Metadata.Source)
		writeOptionalDC(&b, "relation", pub.Metadata.Relation)
		writeOptionalDC(&b, "coverage", pub.Metadata.Coverage)
	}
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	for _, m := range manifest {
		if version == V3 && m.Properties != "" {
			fmt.Fprintf(&b, "    <item id=%q href=%q media-type=%q properties=%q/>\n", m.ID, m.Href, m.MediaType, m.Properties)
		} else {
			fmt.Fprintf(&b, "    <item id=%q href=%q media-type=%q/>\n", m.ID, m.Href, m.MediaType)
		}
	}
	b.WriteString("  </manifest>\n")

	if version == V2 {
		fmt.Fprintf(&b, "  <spine toc=%q>\n", ncxManifestID)
	} else {
		b.WriteString("  <spine>\n")
	}
	for _, s := range spine {
		switch {
		case version == V3 && s.Properties != "" && !s.Linear:
			fmt.Fprintf(&b, "    <itemref idref=%q linear=\"no\" properties=%q/>\n", s.IDRef, s.Properties)
		case version == V3 && s.Properties != "":
			fmt.Fprintf(&b, "    <itemref idref=%q properties=%q/>\n", s.IDRef, s.Properties)
		case !s.Linear:
			fmt.Fprintf(&b, "    <itemref idref=%q linear=\"no\"/>\n", s.IDRef)
		default:
			fmt.Fprintf(&b, "    <itemref idref=%q/>\n", s.IDRef)
		}
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")

	return []byte(b.String())
}

func writeOptionalDC(b *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "    <dc:%s>%s</dc:%s>\n", tag, escapeXML(value), tag)
}

// escapeXML escapes the five reserved XML characters.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
