package epub

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
)

// mimetypePath (at the archive root) and navV3Filename/ncxFilename
// (relative to packageDir) are the fixed locations this library always
// writes.
const (
	mimetypePath  = "mimetype"
	packageDir    = "EPUB"
	navV3Filename = "nav.xhtml"
	ncxFilename   = "toc.ncx"
)

// Export serializes the publication to w as a complete ePub archive. When
// opts.Validate is true (the default) and Validate() reports any error,
// Export fails with ErrValidationRejected without writing anything.
func (p *Publication) Export(w io.Writer, opts ExportOptions) error {
	if opts.Validate {
		if report := p.Validate(); !report.IsValid() {
			return fmt.Errorf("epub: %d validation error(s): %w", len(report.Errors), ErrValidationRejected)
		}
	}

	level := opts.Compression
	if level < 0 || level > 9 {
		level = 9
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	if err := writeMimetype(zw); err != nil {
		return err
	}
	if err := writeZipEntry(zw, containerPath, emitContainerXML(), zip.Deflate); err != nil {
		return err
	}

	spine := flattenSpine(p)
	manifest, ncxManifestID := buildEmitManifest(p, opts.Version)

	for _, ch := range p.GetAllChapters() {
		if ch.IsFragment() {
			continue
		}
		doc := emitChapterDocument(ch, opts.Version, chapterStylesheetHrefs(p))
		if err := writeZipEntry(zw, path.Join(packageDir, ch.Filename), doc, zip.Deflate); err != nil {
			return err
		}
	}
	for _, s := range p.GetAllStylesheets() {
		if err := writeZipEntry(zw, path.Join(packageDir, s.Filename), []byte(s.Content), zip.Deflate); err != nil {
			return err
		}
	}
	for _, img := range p.GetAllImages() {
		if err := writeZipEntry(zw, path.Join(packageDir, img.Filename), img.Data, zip.Deflate); err != nil {
			return err
		}
	}

	if opts.Version == V3 {
		if err := writeZipEntry(zw, path.Join(packageDir, navV3Filename), emitNavDocument(p), zip.Deflate); err != nil {
			return err
		}
	} else {
		if err := writeZipEntry(zw, path.Join(packageDir, ncxFilename), emitNCX(p), zip.Deflate); err != nil {
			return err
		}
	}

	opfData := emitPackageDocument(p, opts.Version, manifest, spine, ncxManifestID)
	if err := writeZipEntry(zw, path.Join(packageDir, "package.opf"), opfData, zip.Deflate); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("epub: close archive: %v: %w", err, ErrSerializationFailed)
	}
	return nil
}

// ExportToFile is a convenience wrapper around Export that creates (or
// truncates) the file at path.
func (p *Publication) ExportToFile(filePath string, opts ExportOptions) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("epub: create %s: %w", filePath, err)
	}
	defer f.Close()

	if err := p.Export(f, opts); err != nil {
		return err
	}
	return f.Close()
}

// writeMimetype writes the mandatory first entry, uncompressed, since
// readers that don't see "application/epub+zip" as entry 0 may refuse the
// file.
func writeMimetype(zw *zip.Writer) error {
	hdr := &zip.FileHeader{
		Name:   mimetypePath,
		Method: zip.Store,
	}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("epub: write mimetype entry: %v: %w", err, ErrSerializationFailed)
	}
	if _, err := fw.Write([]byte("application/epub+zip")); err != nil {
		return fmt.Errorf("epub: write mimetype entry: %v: %w", err, ErrSerializationFailed)
	}
	return nil
}

// writeZipEntry writes a single DEFLATE-compressed entry at the requested
// compression level.
func writeZipEntry(zw *zip.Writer, name string, data []byte, method uint16) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("epub: write entry %s: %v: %w", name, err, ErrSerializationFailed)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("epub: write entry %s: %v: %w", name, err, ErrSerializationFailed)
	}
	return nil
}

// flattenSpine returns one spineEntry per non-fragment chapter, ordered by
// ascending Chapter.Order: spine order tracks Order, independent of the
// tree-traversal order the navigation document follows. Chapters with equal
// Order (never produced by AddChapter, but possible after a merge) keep
// insertion order, since GetAllChapters is already insertion-ordered and
// sort.SliceStable preserves that among ties.
func flattenSpine(p *Publication) []spineEntry {
	chapters := p.GetAllChapters()
	out := make([]spineEntry, 0, len(chapters))
	for _, ch := range chapters {
		if ch.IsFragment() {
			continue
		}
		out = append(out, spineEntry{IDRef: ch.ID, Linear: ch.Linear, order: ch.Order})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// buildEmitManifest builds the manifest entries for every chapter,
// stylesheet, and image, plus the navigation resource for the requested
// version. Returns the manifest id of the nav (v3) or NCX (v2) item.
func buildEmitManifest(p *Publication, version FormatVersion) ([]manifestEntry, string) {
	var manifest []manifestEntry

	for _, ch := range p.GetAllChapters() {
		if ch.IsFragment() {
			continue
		}
		manifest = append(manifest, manifestEntry{ID: ch.ID, Href: ch.Filename, MediaType: "application/xhtml+xml"})
	}
	for _, s := range p.GetAllStylesheets() {
		manifest = append(manifest, manifestEntry{ID: s.ID, Href: s.Filename, MediaType: "text/css"})
	}
	for _, img := range p.GetAllImages() {
		entry := manifestEntry{ID: img.ID, Href: img.Filename, MediaType: img.MimeType}
		if version == V3 && img.IsCover {
			entry.Properties = "cover-image"
		}
		manifest = append(manifest, entry)
	}

	var navID string
	if version == V3 {
		navID = "nav"
		manifest = append(manifest, manifestEntry{ID: navID, Href: navV3Filename, MediaType: "application/xhtml+xml", Properties: "nav"})
	} else {
		navID = "ncx"
		manifest = append(manifest, manifestEntry{ID: navID, Href: ncxFilename, MediaType: "application/x-dtbncx+xml"})
	}

	return manifest, navID
}

// chapterStylesheetHrefs returns the hrefs every chapter document should
// link, resolved relative to the text/ directory chapters are written into.
func chapterStylesheetHrefs(p *Publication) []string {
	hrefs := make([]string, 0, len(p.styleOrder))
	for _, s := range p.GetAllStylesheets() {
		hrefs = append(hrefs, "../"+s.Filename)
	}
	return hrefs
}
