package epub

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"sort"
)

// SectionOptions configures the section chapter AddPublicationAsChapter
// creates to hold a merged-in publication's chapters.
type SectionOptions struct {
	Title        string
	HeadingLevel int
}

// AddPublicationAsChapter splices source's chapters under a new section
// chapter in p, deduplicating stylesheets and images by content hash and
// rewriting embedded references in the copied markup.
//
// seenStylesheets and seenImages map a content hash to the filename already
// assigned to it in p; callers merging several source publications in
// sequence should reuse the same maps across calls so identical resources
// are deduplicated across the whole run. bookNumber distinguishes this
// source's copied resources from another source's in the destination
// filenames.
func (p *Publication) AddPublicationAsChapter(opts SectionOptions, source *Publication, seenStylesheets, seenImages map[string]string, bookNumber int) (string, error) {
	sectionID, err := p.AddChapter(AddChapterOptions{
		Title:        opts.Title,
		HeadingLevel: opts.HeadingLevel,
	})
	if err != nil {
		return "", err
	}

	stylesheetMap := p.copyStylesheets(source, seenStylesheets, bookNumber)
	imageMap := p.copyImages(source, seenImages, bookNumber)

	idMap := make(map[string]string)
	type pendingFragment struct {
		newID         string
		origBackingID string
	}
	var pending []pendingFragment

	chapterCounter := 0
	var copyChapter func(src *Chapter, newParentID string) string
	copyChapter = func(src *Chapter, newParentID string) string {
		newID := newChapterID()
		ch := &Chapter{
			ID:           newID,
			Title:        src.Title,
			Content:      rewriteReferences(src.Content, stylesheetMap, imageMap),
			ParentID:     newParentID,
			Order:        p.maxOrder() + 1,
			HeadingLevel: src.HeadingLevel,
			Linear:       src.Linear,
			Fragment:     src.Fragment,
		}
		if !src.IsFragment() && src.Filename != "" {
			chapterCounter++
			ch.Filename = fmt.Sprintf("text/book%d-chapter-%d.xhtml", bookNumber, chapterCounter)
		}

		p.chapters[newID] = ch
		p.chapterOrder = append(p.chapterOrder, newID)
		if parent, ok := p.chapters[newParentID]; ok {
			parent.Children = append(parent.Children, newID)
		}
		idMap[src.ID] = newID
		if src.IsFragment() {
			pending = append(pending, pendingFragment{newID: newID, origBackingID: src.SourceChapterID})
		}

		for _, childID := range src.Children {
			if childCh, ok := source.chapters[childID]; ok {
				copyChapter(childCh, newID)
			}
		}
		return newID
	}

	for _, root := range source.GetRootChapters() {
		copyChapter(root, sectionID)
	}

	// Second pass: fragment chapters carried their backing chapter's
	// original source id; remap it now that every chapter has a
	// destination id.
	for _, pf := range pending {
		if newBackingID, ok := idMap[pf.origBackingID]; ok {
			p.chapters[pf.newID].SourceChapterID = newBackingID
		}
	}

	return sectionID, nil
}

func (p *Publication) copyStylesheets(source *Publication, seen map[string]string, bookNumber int) map[string]string {
	mapping := make(map[string]string)
	for _, s := range source.GetAllStylesheets() {
		if s.ID == defaultStylesheetID {
			continue
		}
		hash := contentHash([]byte(s.Content))
		if existing, ok := seen[hash]; ok {
			mapping[s.Filename] = existing
			continue
		}
		newFilename := fmt.Sprintf("styles/book%d-%s", bookNumber, path.Base(s.Filename))
		id := newStylesheetID()
		p.stylesheets[id] = &Stylesheet{ID: id, Filename: newFilename, Content: s.Content}
		p.styleOrder = append(p.styleOrder, id)
		mapping[s.Filename] = newFilename
		seen[hash] = newFilename
	}
	return mapping
}

func (p *Publication) copyImages(source *Publication, seen map[string]string, bookNumber int) map[string]string {
	mapping := make(map[string]string)
	for _, img := range source.GetAllImages() {
		hash := contentHash(img.Data)
		if existing, ok := seen[hash]; ok {
			mapping[img.Filename] = existing
			continue
		}
		newFilename := fmt.Sprintf("images/book%d-%s", bookNumber, path.Base(img.Filename))
		id := newImageID()
		p.images[id] = &Image{
			ID:       id,
			Filename: newFilename,
			Data:     img.Data,
			MimeType: img.MimeType,
			Alt:      img.Alt,
			IsCover:  false,
		}
		p.imageOrder = append(p.imageOrder, id)
		mapping[img.Filename] = newFilename
		seen[hash] = newFilename
	}
	return mapping
}

func contentHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// rewriteReferences applies the reference-rewriting patterns for every
// entry in stylesheetMap and imageMap, in that order. It operates on raw
// markup text rather than a parsed tree, a deliberate limitation: a src
// value split across markup in an unusual way will not be rewritten.
func rewriteReferences(content string, stylesheetMap, imageMap map[string]string) string {
	content = applyReferenceMap(content, stylesheetMap)
	content = applyReferenceMap(content, imageMap)
	return content
}

func applyReferenceMap(content string, mapping map[string]string) string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, oldPath := range keys {
		content = rewriteOnePath(content, oldPath, mapping[oldPath])
	}
	return content
}

// rewriteOnePath applies the four ordered src= replacement patterns for a
// single (old_path, new_path) pair.
func rewriteOnePath(content, oldPath, newPath string) string {
	base := path.Base(oldPath)
	replacement := `src="../` + newPath + `"`

	patterns := []string{
		`src=["']\.\./` + regexp.QuoteMeta(oldPath) + `["']`,
		`src=["']` + regexp.QuoteMeta(oldPath) + `["']`,
		`src=["']\.\./` + regexp.QuoteMeta(base) + `["']`,
		`src=["']` + regexp.QuoteMeta(base) + `["']`,
	}
	for _, pattern := range patterns {
		content = regexp.MustCompile(pattern).ReplaceAllString(content, replacement)
	}
	return content
}
