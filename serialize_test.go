package epub

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildSamplePublication(t *testing.T) *Publication {
	t.Helper()
	pub, err := New(DublinCoreMetadata{Title: "Sample Book", Creator: "Sample Author"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	root, err := pub.AddChapter(AddChapterOptions{Title: "Chapter One", Content: "<p>First chapter.</p>"})
	if err != nil {
		t.Fatalf("AddChapter() error = %v", err)
	}
	if _, err := pub.AddChapter(AddChapterOptions{Title: "Chapter Two", Content: "<p>Second chapter.</p>", ParentID: root}); err != nil {
		t.Fatalf("AddChapter() error = %v", err)
	}
	if _, err := pub.AddImage(AddImageOptions{Filename: "cover.jpg", Data: []byte("jpegdata"), IsCover: true}); err != nil {
		t.Fatalf("AddImage() error = %v", err)
	}
	return pub
}

func TestExport_WritesMimetypeFirstAndUncompressed(t *testing.T) {
	pub := buildSamplePublication(t)
	var buf bytes.Buffer
	if err := pub.Export(&buf, NewExportOptions()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open exported archive: %v", err)
	}
	if len(zr.File) == 0 {
		t.Fatal("exported archive has no entries")
	}
	first := zr.File[0]
	if first.Name != mimetypePath {
		t.Errorf("first entry = %q, want %q", first.Name, mimetypePath)
	}
	if first.Method != zip.Store {
		t.Errorf("mimetype entry Method = %d, want zip.Store", first.Method)
	}
}

func TestExport_RejectsInvalidPublicationWhenValidating(t *testing.T) {
	pub := &Publication{chapters: make(map[string]*Chapter)}
	opts := NewExportOptions()
	var buf bytes.Buffer
	err := pub.Export(&buf, opts)
	if err == nil {
		t.Fatal("Export() error = nil, want ErrValidationRejected")
	}
}

func TestExport_SkipsValidationWhenDisabled(t *testing.T) {
	pub := &Publication{chapters: make(map[string]*Chapter), images: make(map[string]*Image), stylesheets: make(map[string]*Stylesheet)}
	opts := NewExportOptions()
	opts.Validate = false
	var buf bytes.Buffer
	if err := pub.Export(&buf, opts); err != nil {
		t.Fatalf("Export() error = %v, want nil with validation disabled", err)
	}
}

func TestExport_V3HasNavDocument(t *testing.T) {
	pub := buildSamplePublication(t)
	var buf bytes.Buffer
	opts := NewExportOptions()
	opts.Version = V3
	if err := pub.Export(&buf, opts); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if findFileInsensitive(zr, "EPUB/nav.xhtml") == nil {
		t.Error("exported v3 archive missing EPUB/nav.xhtml")
	}
	if findFileInsensitive(zr, "EPUB/toc.ncx") != nil {
		t.Error("exported v3 archive should not contain toc.ncx")
	}
}

func TestExport_V2HasNCX(t *testing.T) {
	pub := buildSamplePublication(t)
	var buf bytes.Buffer
	opts := NewExportOptions()
	opts.Version = V2
	if err := pub.Export(&buf, opts); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if findFileInsensitive(zr, "EPUB/toc.ncx") == nil {
		t.Error("exported v2 archive missing EPUB/toc.ncx")
	}
	if findFileInsensitive(zr, "EPUB/nav.xhtml") != nil {
		t.Error("exported v2 archive should not contain nav.xhtml")
	}

	f := findFileInsensitive(zr, "EPUB/package.opf")
	data, err := readZipFile(f)
	if err != nil {
		t.Fatalf("read package.opf: %v", err)
	}
	if !strings.Contains(string(data), `version="2.0"`) {
		t.Error("v2 package document missing version=\"2.0\"")
	}
}

func TestExport_CompressionLevelClamped(t *testing.T) {
	pub := buildSamplePublication(t)
	opts := NewExportOptions()
	opts.Compression = 42
	var buf bytes.Buffer
	if err := pub.Export(&buf, opts); err != nil {
		t.Fatalf("Export() error = %v, want nil (level should clamp, not fail)", err)
	}
}

func TestFlattenSpine_OrdersByChapterOrderNotTreeWalk(t *testing.T) {
	pub, err := New(DublinCoreMetadata{Title: "T", Creator: "A"}, NewOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, err := pub.AddChapter(AddChapterOptions{Title: "A"})
	if err != nil {
		t.Fatalf("AddChapter(A) error = %v", err)
	}
	b, err := pub.AddChapter(AddChapterOptions{Title: "B"})
	if err != nil {
		t.Fatalf("AddChapter(B) error = %v", err)
	}
	c, err := pub.AddChapter(AddChapterOptions{Title: "C", ParentID: a})
	if err != nil {
		t.Fatalf("AddChapter(C, parent=A) error = %v", err)
	}

	spine := flattenSpine(pub)
	var got []string
	for _, entry := range spine {
		got = append(got, entry.IDRef)
	}
	want := []string{a, b, c}
	if len(got) != len(want) {
		t.Fatalf("flattenSpine() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flattenSpine() = %v, want %v (ascending Order, not tree-walk order)", got, want)
		}
	}
}

func TestFlattenSpine_SkipsFragments(t *testing.T) {
	pub := buildSamplePublication(t)
	root := pub.GetRootChapters()[0]
	frag := &Chapter{ID: "frag1", Title: "Fragment", ParentID: root.ID, Fragment: "anchor", SourceChapterID: root.ID}
	pub.chapters[frag.ID] = frag
	pub.chapterOrder = append(pub.chapterOrder, frag.ID)
	root.Children = append(root.Children, frag.ID)

	spine := flattenSpine(pub)
	for _, entry := range spine {
		if entry.IDRef == "frag1" {
			t.Error("flattenSpine() included a fragment chapter")
		}
	}
}
