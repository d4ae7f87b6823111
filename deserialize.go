package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
)

// Parse rebuilds a Publication from a complete ePub archive's bytes,
// implementing the safe-unzip/container/package-document/navigation
// orchestration pipeline.
func Parse(data []byte, opts Options) (pub *Publication, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("epub: failed to parse EPUB buffer: %w", err)
		}
	}()

	if len(opts.TitleExtraction) == 0 {
		opts.TitleExtraction = []TitleExtractionSource{SourceHead, SourceContent, SourceNav}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: open archive: %v: %w", err, ErrArchiveMalformed)
	}
	if err := checkArchiveCeilings(zr); err != nil {
		return nil, err
	}
	if err := checkEntryPaths(zr); err != nil {
		return nil, err
	}
	if findFileInsensitive(zr, mimetypePath) == nil {
		return nil, fmt.Errorf("epub: missing mimetype entry: %w", ErrArchiveMalformed)
	}

	packagePath, err := parseContainer(zr)
	if err != nil {
		return nil, err
	}

	pkgFile := findFileInsensitive(zr, packagePath)
	if pkgFile == nil {
		return nil, fmt.Errorf("epub: missing package document %s: %w", packagePath, ErrArchiveMalformed)
	}
	pkgData, err := readZipFile(pkgFile)
	if err != nil {
		return nil, err
	}
	pkg, err := parsePackageDocument(pkgData)
	if err != nil {
		return nil, err
	}

	opfDir := path.Dir(packagePath)
	if opfDir == "." {
		opfDir = ""
	}

	manifestByID, manifestByHref := buildManifestMaps(pkg.Manifest)
	spine := buildSpine(pkg.Spine, manifestByID)
	guide := buildGuide(pkg.Guide)
	metadata := extractMetadata(pkg)

	pub = &Publication{
		Metadata:    metadata,
		chapters:    make(map[string]*Chapter),
		images:      make(map[string]*Image),
		stylesheets: make(map[string]*Stylesheet),
		options:     opts,
	}
	if opts.AddDefaultStylesheet {
		pub.stylesheets[defaultStylesheetID] = &Stylesheet{
			ID:       defaultStylesheetID,
			Filename: defaultStylesheetFilename,
			Content:  defaultStylesheetCSS,
		}
		pub.styleOrder = append(pub.styleOrder, defaultStylesheetID)
	}

	ctx := &deserCtx{
		pub:          pub,
		zr:           zr,
		opfDir:       opfDir,
		spineIndex:   buildSpineIndex(spine, opfDir),
		seenFiles:    make(map[string]string),
		titleCounter: 0,
	}

	version, toc := locateAndParseNavigation(pub, zr, pkg, manifestByID, opfDir)

	for _, entry := range toc {
		ctx.walkTOCEntry(entry, "")
	}

	for i, si := range spine {
		if si.Href == "" {
			continue
		}
		file := resolveOPFPath(opfDir, si.Href)
		if _, seen := ctx.seenFiles[file]; seen {
			continue
		}
		pub.addWarning("spine item %q (position %d) is not referenced by navigation", file, i+1)
		id := ctx.createChapterFromFile(file, "", "")
		ctx.seenFiles[file] = id
	}

	extractImages(pub, zr, pkg, manifestByID, manifestByHref, guide, spine, opfDir, version)

	return pub, nil
}

// ParseFile reads the file at filePath and parses it as an ePub archive.
func ParseFile(filePath string, opts Options) (*Publication, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("epub: failed to parse EPUB file %s: %w", filePath, err)
	}
	return Parse(data, opts)
}

// locateAndParseNavigation finds the navigation resource, parses it, and
// reports the detected format version. A missing or malformed navigation
// resource degrades to a warning and an empty toc, triggering the
// spine-only fallback in the caller.
func locateAndParseNavigation(pub *Publication, zr *zip.Reader, pkg *opfPackage, byID map[string]*manifestItem, opfDir string) (FormatVersion, []navEntry) {
	if navItem := findV3NavItem(pkg, byID); navItem != nil {
		navPath := resolveOPFPath(opfDir, navItem.Href)
		navFile := findFileInsensitive(zr, navPath)
		if navFile == nil {
			pub.addWarning("nav document %q referenced but missing; falling back to spine-only extraction", navPath)
			return V3, nil
		}
		navData, err := readZipFile(navFile)
		if err != nil {
			pub.addWarning("cannot read nav document %q: %v; falling back to spine-only extraction", navPath, err)
			return V3, nil
		}
		toc, _, err := parseNavDocument(navData, navPath)
		if err != nil {
			pub.addWarning("malformed nav document %q: %v; falling back to spine-only extraction", navPath, err)
			return V3, nil
		}
		return V3, toc
	}

	if ncxItem := findNCXItem(pkg, byID); ncxItem != nil {
		ncxPath := resolveOPFPath(opfDir, ncxItem.Href)
		ncxFile := findFileInsensitive(zr, ncxPath)
		if ncxFile == nil {
			pub.addWarning("NCX document %q referenced but missing; falling back to spine-only extraction", ncxPath)
			return V2, nil
		}
		ncxData, err := readZipFile(ncxFile)
		if err != nil {
			pub.addWarning("cannot read NCX document %q: %v; falling back to spine-only extraction", ncxPath, err)
			return V2, nil
		}
		toc, err := parseNCX(ncxData, ncxPath)
		if err != nil {
			pub.addWarning("malformed NCX document %q: %v; falling back to spine-only extraction", ncxPath, err)
			return V2, nil
		}
		return V2, toc
	}

	pub.addWarning("no navigation resource found; falling back to spine-only extraction")
	version := V2
	if strings.HasPrefix(strings.TrimSpace(pkg.Version), "3") {
		version = V3
	}
	return version, nil
}

func findV3NavItem(pkg *opfPackage, byID map[string]*manifestItem) *manifestItem {
	for _, raw := range pkg.Manifest.Items {
		item, ok := byID[raw.ID]
		if ok && hasManifestProperty(item.Properties, "nav") {
			return item
		}
	}
	return nil
}

func findNCXItem(pkg *opfPackage, byID map[string]*manifestItem) *manifestItem {
	for _, raw := range pkg.Manifest.Items {
		item, ok := byID[raw.ID]
		if ok && strings.EqualFold(item.MediaType, "application/x-dtbncx+xml") {
			return item
		}
	}
	return nil
}

func hasManifestProperty(properties, name string) bool {
	for _, p := range strings.Fields(properties) {
		if p == name {
			return true
		}
	}
	return false
}

// spineEntryInfo is the processed {order, linear} pair a chapter adopts from
// its spine entry.
type spineEntryInfo struct {
	order  int
	linear bool
}

func buildSpineIndex(spine []spineItem, opfDir string) map[string]spineEntryInfo {
	idx := make(map[string]spineEntryInfo, len(spine))
	for i, si := range spine {
		if si.Href == "" {
			continue
		}
		file := resolveOPFPath(opfDir, si.Href)
		idx[file] = spineEntryInfo{order: i + 1, linear: si.Linear}
	}
	return idx
}

// deserCtx carries the mutable state threaded through the navigation tree
// walk.
type deserCtx struct {
	pub          *Publication
	zr           *zip.Reader
	opfDir       string
	spineIndex   map[string]spineEntryInfo
	seenFiles    map[string]string // zip-internal file path -> backing chapter id
	titleCounter int
}

// walkTOCEntry processes one navigation entry and its children, attaching
// new chapters under parentID.
func (c *deserCtx) walkTOCEntry(entry navEntry, parentID string) {
	if entry.Fragment != "" {
		backingID := c.ensureBackingChapter(entry.File)
		fragID := c.createFragmentChapter(entry, parentID, backingID)
		for _, child := range entry.Children {
			c.walkTOCEntry(child, fragID)
		}
		return
	}

	id := c.processNonFragmentEntry(entry, parentID)
	for _, child := range entry.Children {
		c.walkTOCEntry(child, id)
	}
}

// processNonFragmentEntry creates or reuses the chapter a non-fragment nav
// entry points at, updating its parent and (when configured) its title.
func (c *deserCtx) processNonFragmentEntry(entry navEntry, parentID string) string {
	if entry.File == "" {
		return parentID
	}

	if id, ok := c.seenFiles[entry.File]; ok {
		ch := c.pub.chapters[id]
		if ch.ParentID != parentID {
			c.reparentChapter(ch, parentID)
		}
		if containsSource(c.pub.options.TitleExtraction, SourceNav) && entry.Title != "" {
			ch.Title = entry.Title
		}
		return id
	}

	id := c.createChapterFromFile(entry.File, parentID, entry.Title)
	c.seenFiles[entry.File] = id
	return id
}

// ensureBackingChapter returns the id of the chapter backing a fragment
// entry's file, creating it if this is the first reference to it. Its
// title is derived purely from its own content, never from a fragment's
// navigation label.
func (c *deserCtx) ensureBackingChapter(file string) string {
	if id, ok := c.seenFiles[file]; ok {
		return id
	}
	id := c.createChapterFromFile(file, "", "")
	c.seenFiles[file] = id
	return id
}

// createFragmentChapter creates the virtual chapter for a nav entry whose
// href carries a "#fragment".
func (c *deserCtx) createFragmentChapter(entry navEntry, parentID, backingID string) string {
	id := newChapterID()
	ch := &Chapter{
		ID:              id,
		Title:           normalizeLabel(entry.Title),
		ParentID:        parentID,
		Order:           c.pub.maxOrder() + 1,
		HeadingLevel:    2,
		Linear:          true,
		Fragment:        entry.Fragment,
		SourceChapterID: backingID,
	}
	c.pub.chapters[id] = ch
	c.pub.chapterOrder = append(c.pub.chapterOrder, id)
	c.attachToParent(id, parentID)
	return id
}

// createChapterFromFile reads the chapter file, extracts title/body/heading
// level, and adopts order/linear from the spine (defaulting to
// order=9999, linear=false with a warning when the file is missing from
// the spine).
func (c *deserCtx) createChapterFromFile(file, parentID, navLabel string) string {
	var content, title string
	level := 1

	zf := findFileInsensitive(c.zr, file)
	if zf == nil {
		c.pub.addWarning("chapter file %q referenced but missing from archive", file)
	} else if data, err := readZipFile(zf); err != nil {
		c.pub.addWarning("cannot read chapter file %q: %v", file, err)
	} else {
		c.titleCounter++
		title = extractChapterTitle(data, navLabel, c.pub.options, c.titleCounter)
		level = extractHeadingLevel(data)
		if extracted, err := extractChapterContent(data); err == nil {
			content = extracted
		} else {
			c.pub.addWarning("cannot extract body from %q: %v", file, err)
		}
	}
	if title == "" {
		c.titleCounter++
		title = fmt.Sprintf("Chapter %d", c.titleCounter)
	}

	order := 9999
	linear := false
	if info, ok := c.spineIndex[file]; ok {
		order = info.order
		linear = info.linear
	} else {
		c.pub.addWarning("chapter file %q is not listed in the spine", file)
	}

	id := newChapterID()
	ch := &Chapter{
		ID:           id,
		Title:        title,
		Content:      content,
		Filename:     relToOPFDir(c.opfDir, file),
		ParentID:     parentID,
		Order:        order,
		HeadingLevel: level,
		Linear:       linear,
	}
	c.pub.chapters[id] = ch
	c.pub.chapterOrder = append(c.pub.chapterOrder, id)
	c.attachToParent(id, parentID)
	return id
}

func (c *deserCtx) attachToParent(id, parentID string) {
	if parentID == "" {
		c.pub.rootChapterIDs = append(c.pub.rootChapterIDs, id)
		return
	}
	if parent, ok := c.pub.chapters[parentID]; ok {
		parent.Children = append(parent.Children, id)
	} else {
		c.pub.rootChapterIDs = append(c.pub.rootChapterIDs, id)
	}
}

func (c *deserCtx) reparentChapter(ch *Chapter, newParentID string) {
	if ch.ParentID == "" {
		c.pub.rootChapterIDs = removeString(c.pub.rootChapterIDs, ch.ID)
	} else if oldParent, ok := c.pub.chapters[ch.ParentID]; ok {
		oldParent.Children = removeString(oldParent.Children, ch.ID)
	}
	ch.ParentID = newParentID
	c.attachToParent(ch.ID, newParentID)
}

func containsSource(sources []TitleExtractionSource, target TitleExtractionSource) bool {
	for _, s := range sources {
		if s == target {
			return true
		}
	}
	return false
}

// relToOPFDir strips the package directory prefix from a ZIP-internal path,
// matching the relative-to-package-directory convention Chapter.Filename,
// Image.Filename, and Stylesheet.Filename use elsewhere in the library.
func relToOPFDir(opfDir, zipPath string) string {
	if opfDir == "" {
		return zipPath
	}
	prefix := opfDir + "/"
	if strings.HasPrefix(zipPath, prefix) {
		return zipPath[len(prefix):]
	}
	return zipPath
}

// looksLikeImageExt reports whether href's extension is one mimeForImageExt
// recognises, used to decide whether a non-image-declared manifest entry is
// still extracted as an image.
func looksLikeImageExt(href string) bool {
	_, ext := splitExt(strings.ToLower(href))
	_, ok := mimeForImageExt(ext)
	return ok
}

// extractImages turns every manifest item whose media type begins "image/"
// into an Image, preserving the cover-image property when present (v3).
// When no such property is found, the multi-strategy cover heuristic in
// cover.go resolves one.
func extractImages(pub *Publication, zr *zip.Reader, pkg *opfPackage, byID, byHref map[string]*manifestItem, guide []guideReference, spine []spineItem, opfDir string, version FormatVersion) {
	hasV3Cover := false

	for _, raw := range pkg.Manifest.Items {
		item, ok := byID[raw.ID]
		if !ok {
			continue
		}

		zipPath := resolveOPFPath(opfDir, item.Href)

		if !isImageMediaType(item.MediaType) && !looksLikeImageExt(item.Href) {
			continue
		}

		data, err := readZipPath(zr, zipPath)
		if err != nil {
			pub.addWarning("cannot read image %q: %v", zipPath, err)
			continue
		}

		mimeType := item.MediaType
		if !isImageMediaType(mimeType) {
			// The declared media type isn't image/*, but the extension is:
			// archives produced by lax tooling sometimes leave media-type as
			// application/octet-stream. The extension table supplies the
			// type; the bytes are not sniffed here.
			sniffed := mimeForManifestEntry(item.Href, data)
			if !isImageMediaType(sniffed) {
				continue
			}
			mimeType = sniffed
		}

		isCover := version == V3 && hasManifestProperty(item.Properties, "cover-image")
		if isCover {
			hasV3Cover = true
		}

		img := &Image{
			ID:       newImageID(),
			Filename: relToOPFDir(opfDir, zipPath),
			Data:     data,
			MimeType: mimeType,
			IsCover:  isCover,
		}
		pub.images[img.ID] = img
		pub.imageOrder = append(pub.imageOrder, img.ID)
	}

	if hasV3Cover {
		return
	}

	coverZipPath := detectCoverHref(zr, pkg, byID, byHref, guide, spine, opfDir)
	if coverZipPath == "" {
		return
	}
	coverRel := relToOPFDir(opfDir, coverZipPath)
	for _, id := range pub.imageOrder {
		if pub.images[id].Filename == coverRel {
			pub.images[id].IsCover = true
			return
		}
	}
}
