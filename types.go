package epub

import "time"

// FormatVersion selects which of the two incompatible ePub flavors a
// Publication is serialized as, or was parsed from.
type FormatVersion int

const (
	// V3 is ePub 3.3: XHTML nav document, dcterms:modified, properties on
	// manifest items and spine itemrefs.
	V3 FormatVersion = iota
	// V2 is ePub 2.0.1: NCX navigation, spine toc= attribute, no properties.
	V2
)

// String renders the version the way it appears in the package document's
// version attribute.
func (v FormatVersion) String() string {
	if v == V2 {
		return "2.0"
	}
	return "3.0"
}

// DublinCoreMetadata holds the publication's bibliographic fields. Title and
// Creator are required and validated at construction; the remaining fields
// default when left empty (Language to "en", Identifier to a fresh UUID,
// Date to today).
type DublinCoreMetadata struct {
	Title       string
	Creator     string
	Language    string
	Identifier  string
	Date        string
	Publisher   string
	Description string
	Subject     []string
	Rights      string
	Contributor []string
	Type        string
	Format      string
	Source      string
	Relation    string
	Coverage    string
}

// TitleExtractionSource names one of the places a chapter title can be
// recovered from during deserialization.
type TitleExtractionSource int

const (
	// SourceHead reads the chapter markup's <title> head element.
	SourceHead TitleExtractionSource = iota
	// SourceContent reads the first <h1>/<h2> inside the chapter body.
	SourceContent
	// SourceNav reads the navigation label that pointed at this chapter.
	SourceNav
)

// Options configures Publication-wide behavior recognised at construction
// and during title extraction.
type Options struct {
	// AddDefaultStylesheet injects a built-in CSS resource at construction.
	// Defaults to true via NewOptions.
	AddDefaultStylesheet bool

	// IgnoreHeadTitle skips the <title> head element during title
	// extraction, preferring heading elements instead.
	IgnoreHeadTitle bool

	// TitleExtraction orders the sources tried when assigning a chapter
	// title during deserialization. Defaults to Head, Content, Nav.
	TitleExtraction []TitleExtractionSource
}

// NewOptions returns the default Options: a default stylesheet is added,
// head titles are honored, and title extraction prefers HEAD, then CONTENT,
// then NAV.
func NewOptions() Options {
	return Options{
		AddDefaultStylesheet: true,
		IgnoreHeadTitle:      false,
		TitleExtraction:      []TitleExtractionSource{SourceHead, SourceContent, SourceNav},
	}
}

// ExportOptions configures a single Export/ExportToFile call.
type ExportOptions struct {
	// Version selects which flavor of the archive to emit.
	Version FormatVersion

	// Validate, when true (the default), runs Publication.Validate before
	// serializing and refuses with ErrValidationRejected on any error.
	Validate bool

	// Compression is the DEFLATE level used for entries other than the
	// mimetype entry (which is always stored uncompressed). 0-9.
	Compression int
}

// NewExportOptions returns export defaults: ePub 3, validation on, maximum
// compression.
func NewExportOptions() ExportOptions {
	return ExportOptions{Version: V3, Validate: true, Compression: 9}
}

// Chapter is a node in the publication's chapter tree. A Chapter with a
// non-empty Fragment is virtual: its content lives inside the chapter named
// by SourceChapterID, at the anchor Fragment, rather than in its own Content
// field.
type Chapter struct {
	ID              string
	Title           string
	Content         string
	Filename        string
	ParentID        string // "" iff root
	Order           int
	Children        []string // ordered child ids
	HeadingLevel    int      // 1-6, default 1
	Linear          bool
	Fragment        string // "" unless this is a virtual fragment chapter
	SourceChapterID string // backing chapter id when Fragment != ""
}

// IsFragment reports whether this chapter is a virtual same-file anchor
// rather than markup of its own.
func (c *Chapter) IsFragment() bool {
	return c.Fragment != ""
}

// Image is a binary resource (cover, inline illustration, ...) owned by a
// Publication.
type Image struct {
	ID       string
	Filename string
	Data     []byte
	MimeType string
	Alt      string
	IsCover  bool
}

// Stylesheet is a CSS text resource owned by a Publication.
type Stylesheet struct {
	ID       string
	Filename string
	Content  string
}

// Publication is the single in-memory aggregate this library builds: a
// Dublin Core metadata record plus an arena of chapters, images, and
// stylesheets. A Publication is not safe for concurrent mutation; concurrent
// reads are safe only in the absence of concurrent writes.
type Publication struct {
	Metadata DublinCoreMetadata

	chapters       map[string]*Chapter
	chapterOrder   []string // insertion order, for deterministic iteration
	rootChapterIDs []string
	images         map[string]*Image
	imageOrder     []string
	stylesheets    map[string]*Stylesheet
	styleOrder     []string
	chapterCounter int
	options        Options
	warnings       []string
}

// defaultStylesheetID is the stable id of the built-in CSS resource.
const defaultStylesheetID = "style-default"

// defaultStylesheetFilename is where the built-in CSS resource lands inside
// the archive.
const defaultStylesheetFilename = "css/styles.css"

// defaultStylesheetCSS is the built-in stylesheet content injected unless
// AddDefaultStylesheet is disabled.
const defaultStylesheetCSS = `body {
  font-family: serif;
  line-height: 1.5;
  margin: 1em;
}

h1, h2, h3, h4, h5, h6 {
  font-family: sans-serif;
}
`

// ValidationReport is the result of Publication.Validate: structural,
// non-conformance-checking diagnostics.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// IsValid reports whether the report contains no errors.
func (r ValidationReport) IsValid() bool {
	return len(r.Errors) == 0
}

// today formats the current UTC date as YYYY-MM-DD, the default for
// DublinCoreMetadata.Date.
func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
