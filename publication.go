package epub

import "fmt"

// New constructs a Publication from the required Dublin Core fields,
// validating Title and Creator and filling in the remaining defaults:
// Language defaults to "en", Identifier to a freshly generated UUID, Date
// to today in YYYY-MM-DD. When opts.AddDefaultStylesheet is true (the
// default), a built-in CSS resource is injected.
func New(metadata DublinCoreMetadata, opts Options) (*Publication, error) {
	if metadata.Title == "" || metadata.Creator == "" {
		return nil, fmt.Errorf("epub: title and creator are required: %w", ErrInvalidMetadata)
	}

	if metadata.Language == "" {
		metadata.Language = "en"
	}
	if metadata.Identifier == "" {
		metadata.Identifier = newUUID()
	}
	if metadata.Date == "" {
		metadata.Date = today()
	}
	if len(opts.TitleExtraction) == 0 {
		opts.TitleExtraction = []TitleExtractionSource{SourceHead, SourceContent, SourceNav}
	}

	p := &Publication{
		Metadata:    metadata,
		chapters:    make(map[string]*Chapter),
		images:      make(map[string]*Image),
		stylesheets: make(map[string]*Stylesheet),
		options:     opts,
	}

	if opts.AddDefaultStylesheet {
		p.stylesheets[defaultStylesheetID] = &Stylesheet{
			ID:       defaultStylesheetID,
			Filename: defaultStylesheetFilename,
			Content:  defaultStylesheetCSS,
		}
		p.styleOrder = append(p.styleOrder, defaultStylesheetID)
	}

	return p, nil
}

// AddChapterOptions are the inputs to AddChapter.
type AddChapterOptions struct {
	Title        string
	Content      string
	ParentID     string // "" for a root chapter
	HeadingLevel int    // 0 defaults to 1
	Linear       *bool  // nil defaults to true
}

// AddChapter mints a new chapter, appends it under ParentID (or as a new
// root), and assigns Order = 1 + max(existing order). Fails with
// ErrUnknownParent when ParentID is non-empty and unknown, and with
// ErrInvalidHeadingLevel when HeadingLevel is set but out of 1-6.
func (p *Publication) AddChapter(opts AddChapterOptions) (string, error) {
	if opts.ParentID != "" {
		if _, ok := p.chapters[opts.ParentID]; !ok {
			return "", fmt.Errorf("epub: parent %q: %w", opts.ParentID, ErrUnknownParent)
		}
	}

	level := opts.HeadingLevel
	if level == 0 {
		level = 1
	}
	if level < 1 || level > 6 {
		return "", fmt.Errorf("epub: heading level %d: %w", level, ErrInvalidHeadingLevel)
	}

	linear := true
	if opts.Linear != nil {
		linear = *opts.Linear
	}

	id := newChapterID()
	p.chapterCounter++
	ch := &Chapter{
		ID:           id,
		Title:        opts.Title,
		Content:      opts.Content,
		Filename:     fmt.Sprintf("text/chapter-%d.xhtml", p.chapterCounter),
		ParentID:     opts.ParentID,
		Order:        p.maxOrder() + 1,
		HeadingLevel: level,
		Linear:       linear,
	}

	p.chapters[id] = ch
	p.chapterOrder = append(p.chapterOrder, id)
	if opts.ParentID == "" {
		p.rootChapterIDs = append(p.rootChapterIDs, id)
	} else {
		parent := p.chapters[opts.ParentID]
		parent.Children = append(parent.Children, id)
	}

	return id, nil
}

func (p *Publication) maxOrder() int {
	max := 0
	for _, ch := range p.chapters {
		if ch.Order > max {
			max = ch.Order
		}
	}
	return max
}

// SetChapterContent replaces a chapter's content. Fails with
// ErrUnknownChapter when id is not found.
func (p *Publication) SetChapterContent(id, content string) error {
	ch, ok := p.chapters[id]
	if !ok {
		return fmt.Errorf("epub: chapter %q: %w", id, ErrUnknownChapter)
	}
	ch.Content = content
	return nil
}

// AppendToChapter appends content to a chapter's existing markup. Fails with
// ErrUnknownChapter when id is not found.
func (p *Publication) AppendToChapter(id, content string) error {
	ch, ok := p.chapters[id]
	if !ok {
		return fmt.Errorf("epub: chapter %q: %w", id, ErrUnknownChapter)
	}
	ch.Content += content
	return nil
}

// GetChapter returns the chapter with the given id, or (nil, false).
func (p *Publication) GetChapter(id string) (*Chapter, bool) {
	ch, ok := p.chapters[id]
	return ch, ok
}

// GetRootChapters returns the top-level chapters in build order.
func (p *Publication) GetRootChapters() []*Chapter {
	out := make([]*Chapter, 0, len(p.rootChapterIDs))
	for _, id := range p.rootChapterIDs {
		out = append(out, p.chapters[id])
	}
	return out
}

// GetAllChapters returns every chapter in the publication in insertion order
// (Order is not implied by slice position: holes can appear after deletes).
func (p *Publication) GetAllChapters() []*Chapter {
	out := make([]*Chapter, 0, len(p.chapterOrder))
	for _, id := range p.chapterOrder {
		if ch, ok := p.chapters[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// DeleteChapter removes a chapter and its transitive descendants, detaching
// it from its parent's child list (or the root list). Other chapters' Order
// values are left untouched, so holes may appear.
func (p *Publication) DeleteChapter(id string) {
	ch, ok := p.chapters[id]
	if !ok {
		return
	}

	for _, childID := range append([]string(nil), ch.Children...) {
		p.DeleteChapter(childID)
	}

	if ch.ParentID == "" {
		p.rootChapterIDs = removeString(p.rootChapterIDs, id)
	} else if parent, ok := p.chapters[ch.ParentID]; ok {
		parent.Children = removeString(parent.Children, id)
	}

	delete(p.chapters, id)
	p.chapterOrder = removeString(p.chapterOrder, id)
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// AddImageOptions are the inputs to AddImage.
type AddImageOptions struct {
	Filename string
	Data     []byte
	Alt      string
	IsCover  bool
}

// AddImage sanitizes Filename and adds the image to the publication. Fails
// with ErrInvalidImageExtension when the extension is not one of
// jpg/jpeg/png/gif/svg/webp.
func (p *Publication) AddImage(opts AddImageOptions) (string, error) {
	base, ext := splitExt(opts.Filename)
	if !addImageExtensions[ext] {
		return "", fmt.Errorf("epub: extension %q: %w", ext, ErrInvalidImageExtension)
	}

	sanitizedBase := sanitizeFilename(base)
	if sanitizedBase == "" {
		sanitizedBase = "image"
	}

	id := newImageID()
	img := &Image{
		ID:       id,
		Filename: "images/" + sanitizedBase + ext,
		Data:     opts.Data,
		MimeType: imageMimeByExt[ext],
		Alt:      opts.Alt,
		IsCover:  opts.IsCover,
	}
	p.images[id] = img
	p.imageOrder = append(p.imageOrder, id)
	return id, nil
}

// GetAllImages returns every image in the publication in insertion order.
func (p *Publication) GetAllImages() []*Image {
	out := make([]*Image, 0, len(p.imageOrder))
	for _, id := range p.imageOrder {
		out = append(out, p.images[id])
	}
	return out
}

// AddStylesheetOptions are the inputs to AddStylesheet.
type AddStylesheetOptions struct {
	Filename string
	Content  string
}

// AddStylesheet sanitizes Filename identically to AddImage and adds the
// stylesheet to the publication.
func (p *Publication) AddStylesheet(opts AddStylesheetOptions) (string, error) {
	base, _ := splitExt(opts.Filename)
	sanitizedBase := sanitizeFilename(base)
	if sanitizedBase == "" {
		sanitizedBase = "style"
	}

	id := newStylesheetID()
	s := &Stylesheet{
		ID:       id,
		Filename: "css/" + sanitizedBase + ".css",
		Content:  opts.Content,
	}
	p.stylesheets[id] = s
	p.styleOrder = append(p.styleOrder, id)
	return id, nil
}

// GetAllStylesheets returns every stylesheet in the publication in insertion
// order.
func (p *Publication) GetAllStylesheets() []*Stylesheet {
	out := make([]*Stylesheet, 0, len(p.styleOrder))
	for _, id := range p.styleOrder {
		out = append(out, p.stylesheets[id])
	}
	return out
}

// SetMetadata shallow-merges partial into the publication's metadata: any
// non-zero field of partial overwrites the corresponding field of Metadata.
func (p *Publication) SetMetadata(partial DublinCoreMetadata) {
	if partial.Title != "" {
		p.Metadata.Title = partial.Title
	}
	if partial.Creator != "" {
		p.Metadata.Creator = partial.Creator
	}
	if partial.Language != "" {
		p.Metadata.Language = partial.Language
	}
	if partial.Identifier != "" {
		p.Metadata.Identifier = partial.Identifier
	}
	if partial.Date != "" {
		p.Metadata.Date = partial.Date
	}
	if partial.Publisher != "" {
		p.Metadata.Publisher = partial.Publisher
	}
	if partial.Description != "" {
		p.Metadata.Description = partial.Description
	}
	if len(partial.Subject) > 0 {
		p.Metadata.Subject = partial.Subject
	}
	if partial.Rights != "" {
		p.Metadata.Rights = partial.Rights
	}
	if len(partial.Contributor) > 0 {
		p.Metadata.Contributor = partial.Contributor
	}
	if partial.Type != "" {
		p.Metadata.Type = partial.Type
	}
	if partial.Format != "" {
		p.Metadata.Format = partial.Format
	}
	if partial.Source != "" {
		p.Metadata.Source = partial.Source
	}
	if partial.Relation != "" {
		p.Metadata.Relation = partial.Relation
	}
	if partial.Coverage != "" {
		p.Metadata.Coverage = partial.Coverage
	}
}

// Warnings returns the non-fatal diagnostics accumulated while parsing this
// publication (empty for a freshly built one).
func (p *Publication) Warnings() []string {
	return append([]string(nil), p.warnings...)
}

func (p *Publication) addWarning(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}
