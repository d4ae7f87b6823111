package epub

import (
	"strings"
	"testing"
)

// buildMergeSource builds a small publication with one image and one
// stylesheet, suitable as a merge source.
func buildMergeSource(t *testing.T, title string, chapterTitles []string, imgFilename string, imgData []byte) *Publication {
	t.Helper()
	pub, err := New(DublinCoreMetadata{Title: title, Creator: "Author"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, ct := range chapterTitles {
		if _, err := pub.AddChapter(AddChapterOptions{Title: ct, Content: "<p>" + ct + "</p>"}); err != nil {
			t.Fatalf("AddChapter(%q) error = %v", ct, err)
		}
	}
	if imgFilename != "" {
		if _, err := pub.AddImage(AddImageOptions{Filename: imgFilename, Data: imgData}); err != nil {
			t.Fatalf("AddImage(%q) error = %v", imgFilename, err)
		}
	}
	return pub
}

// TestAddPublicationAsChapter_MergesTwoPublications covers two sources, each
// with its own image sharing the filename "img.png" but different bytes,
// merged under two distinct sections.
func TestAddPublicationAsChapter_MergesTwoPublications(t *testing.T) {
	dest, err := New(DublinCoreMetadata{Title: "Anthology", Creator: "Editor"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p1 := buildMergeSource(t, "Book One", []string{"A", "B"}, "img.png", []byte("bytes-one"))
	p2 := buildMergeSource(t, "Book Two", []string{"C"}, "img.png", []byte("bytes-two"))

	seenStyles := make(map[string]string)
	seenImages := make(map[string]string)

	section1, err := dest.AddPublicationAsChapter(SectionOptions{Title: "Book 1"}, p1, seenStyles, seenImages, 1)
	if err != nil {
		t.Fatalf("AddPublicationAsChapter(book 1) error = %v", err)
	}
	section2, err := dest.AddPublicationAsChapter(SectionOptions{Title: "Book 2"}, p2, seenStyles, seenImages, 2)
	if err != nil {
		t.Fatalf("AddPublicationAsChapter(book 2) error = %v", err)
	}

	roots := dest.GetRootChapters()
	if len(roots) != 2 {
		t.Fatalf("GetRootChapters() len = %d, want 2", len(roots))
	}
	sec1, ok := dest.GetChapter(section1)
	if !ok {
		t.Fatalf("section 1 chapter %q not found", section1)
	}
	if len(sec1.Children) != 2 {
		t.Errorf("section 1 children len = %d, want 2", len(sec1.Children))
	}
	sec2, ok := dest.GetChapter(section2)
	if !ok {
		t.Fatalf("section 2 chapter %q not found", section2)
	}
	if len(sec2.Children) != 1 {
		t.Errorf("section 2 children len = %d, want 1", len(sec2.Children))
	}

	images := dest.GetAllImages()
	if len(images) != 2 {
		t.Fatalf("GetAllImages() len = %d, want 2", len(images))
	}
	var names []string
	for _, img := range images {
		names = append(names, img.Filename)
	}
	wantNames := map[string]bool{"images/book1-img.png": true, "images/book2-img.png": true}
	for _, n := range names {
		if !wantNames[n] {
			t.Errorf("unexpected image filename %q, want one of %v", n, names)
		}
		delete(wantNames, n)
	}
	if len(wantNames) != 0 {
		t.Errorf("missing expected image filenames: %v", wantNames)
	}
}

// TestAddPublicationAsChapter_DeduplicatesIdenticalStylesheets covers two
// sources sharing a stylesheet with identical content; the merge must add
// it only once and rewrite both sources' references to the same
// destination path.
func TestAddPublicationAsChapter_DeduplicatesIdenticalStylesheets(t *testing.T) {
	dest, err := New(DublinCoreMetadata{Title: "Anthology", Creator: "Editor"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	css := "body { color: black; }"
	p1, err := New(DublinCoreMetadata{Title: "Book One", Creator: "Author"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p1.AddStylesheet(AddStylesheetOptions{Filename: "s.css", Content: css}); err != nil {
		t.Fatalf("AddStylesheet() error = %v", err)
	}
	if _, err := p1.AddChapter(AddChapterOptions{Title: "A", Content: `<p><img src="../css/s.css"/></p>`}); err != nil {
		t.Fatalf("AddChapter() error = %v", err)
	}

	p2, err := New(DublinCoreMetadata{Title: "Book Two", Creator: "Author"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p2.AddStylesheet(AddStylesheetOptions{Filename: "s.css", Content: css}); err != nil {
		t.Fatalf("AddStylesheet() error = %v", err)
	}
	if _, err := p2.AddChapter(AddChapterOptions{Title: "C", Content: `<p><img src="../css/s.css"/></p>`}); err != nil {
		t.Fatalf("AddChapter() error = %v", err)
	}

	seenStyles := make(map[string]string)
	seenImages := make(map[string]string)

	if _, err := dest.AddPublicationAsChapter(SectionOptions{Title: "Book 1"}, p1, seenStyles, seenImages, 1); err != nil {
		t.Fatalf("AddPublicationAsChapter(book 1) error = %v", err)
	}
	if _, err := dest.AddPublicationAsChapter(SectionOptions{Title: "Book 2"}, p2, seenStyles, seenImages, 2); err != nil {
		t.Fatalf("AddPublicationAsChapter(book 2) error = %v", err)
	}

	var nonDefaultStyles []*Stylesheet
	for _, s := range dest.GetAllStylesheets() {
		if s.ID != defaultStylesheetID {
			nonDefaultStyles = append(nonDefaultStyles, s)
		}
	}
	if len(nonDefaultStyles) != 1 {
		t.Fatalf("non-default stylesheets len = %d, want 1 (deduplicated)", len(nonDefaultStyles))
	}
	wantFilename := "styles/book1-s.css"
	if nonDefaultStyles[0].Filename != wantFilename {
		t.Errorf("deduplicated stylesheet filename = %q, want %q", nonDefaultStyles[0].Filename, wantFilename)
	}

	for _, ch := range dest.GetAllChapters() {
		if !strings.Contains(ch.Content, "<p><img") {
			continue
		}
		wantRef := `src="../` + wantFilename + `"`
		if !strings.Contains(ch.Content, wantRef) {
			t.Errorf("chapter %q content = %q, want reference rewritten to %q", ch.ID, ch.Content, wantRef)
		}
	}
}

// TestAddPublicationAsChapter_RemapsFragmentSourceChapterID verifies that a
// fragment chapter copied during merge has its SourceChapterID remapped to
// the copy of its backing chapter, not the source publication's id.
func TestAddPublicationAsChapter_RemapsFragmentSourceChapterID(t *testing.T) {
	dest, err := New(DublinCoreMetadata{Title: "Anthology", Creator: "Editor"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	src, err := New(DublinCoreMetadata{Title: "Source", Creator: "Author"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	backingID, err := src.AddChapter(AddChapterOptions{Title: "Backing", Content: "<p>backing</p>"})
	if err != nil {
		t.Fatalf("AddChapter() error = %v", err)
	}
	fragID := newChapterID()
	frag := &Chapter{
		ID:              fragID,
		Title:           "Section",
		ParentID:        backingID,
		Order:           src.maxOrder() + 1,
		HeadingLevel:    2,
		Linear:          true,
		Fragment:        "anchor-1",
		SourceChapterID: backingID,
	}
	src.chapters[fragID] = frag
	src.chapterOrder = append(src.chapterOrder, fragID)
	backing := src.chapters[backingID]
	backing.Children = append(backing.Children, fragID)

	seenStyles := make(map[string]string)
	seenImages := make(map[string]string)
	sectionID, err := dest.AddPublicationAsChapter(SectionOptions{Title: "Section Root"}, src, seenStyles, seenImages, 1)
	if err != nil {
		t.Fatalf("AddPublicationAsChapter() error = %v", err)
	}

	section, ok := dest.GetChapter(sectionID)
	if !ok || len(section.Children) != 1 {
		t.Fatalf("section has %d children, want 1", len(section.Children))
	}
	newBackingID := section.Children[0]
	newBacking, ok := dest.GetChapter(newBackingID)
	if !ok || len(newBacking.Children) != 1 {
		t.Fatalf("copied backing chapter has %d children, want 1", len(newBacking.Children))
	}
	newFragID := newBacking.Children[0]
	newFrag, ok := dest.GetChapter(newFragID)
	if !ok {
		t.Fatalf("copied fragment chapter %q not found", newFragID)
	}
	if !newFrag.IsFragment() {
		t.Fatal("copied chapter lost its Fragment field")
	}
	if newFrag.SourceChapterID != newBackingID {
		t.Errorf("SourceChapterID = %q, want %q (remapped to the copy, not %q)", newFrag.SourceChapterID, newBackingID, backingID)
	}
}

func TestContentHash_SameBytesSameHash(t *testing.T) {
	a := contentHash([]byte("hello"))
	b := contentHash([]byte("hello"))
	c := contentHash([]byte("world"))
	if a != b {
		t.Errorf("contentHash(%q) = %q, contentHash(%q) = %q, want equal", "hello", a, "hello", b)
	}
	if a == c {
		t.Errorf("contentHash(%q) = contentHash(%q) = %q, want different", "hello", "world", a)
	}
}

func TestRewriteOnePath_AllFourPatterns(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dotdot-old-path", `<img src="../images/old.png"/>`},
		{"bare-old-path", `<img src="images/old.png"/>`},
		{"dotdot-basename", `<img src="../old.png"/>`},
		{"bare-basename", `<img src="old.png"/>`},
		{"single-quoted", `<img src='../images/old.png'/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rewriteOnePath(tt.content, "images/old.png", "images/new.png")
			want := `src="../images/new.png"`
			if !strings.Contains(got, want) {
				t.Errorf("rewriteOnePath(%q) = %q, want it to contain %q", tt.content, got, want)
			}
		})
	}
}
