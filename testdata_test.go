package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

// buildTestZip creates an in-memory ZIP archive from the provided files map
// (path -> content) and returns a *zip.Reader over the resulting bytes.
// It calls t.Fatal on any error.
func buildTestZip(t *testing.T, files map[string]string) *zip.Reader {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("buildTestZip: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("buildTestZip: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestZip: close writer: %v", err)
	}

	data := buf.Bytes()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("buildTestZip: open reader: %v", err)
	}
	return r
}

// minimalV3EPub returns the bytes of a complete, well-formed ePub 3 archive
// with two chapters, one image, and one stylesheet, suitable as Parse input.
func minimalV3EPub(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="EPUB/package.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"EPUB/package.opf": `<?xml version="1.0"?>
<package version="3.0" unique-identifier="pub-id" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>Test Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="c1" href="text/chapter-1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/chapter-2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="css/styles.css" media-type="text/css"/>
    <item id="img1" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`,
		"EPUB/nav.xhtml": `<?xml version="1.0"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Test Book</title></head>
<body>
  <nav epub:type="toc" id="toc">
    <ol>
      <li><a href="text/chapter-1.xhtml">Chapter One</a></li>
      <li><a href="text/chapter-2.xhtml">Chapter Two</a></li>
    </ol>
  </nav>
</body>
</html>`,
		"EPUB/text/chapter-1.xhtml": `<?xml version="1.0"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter One</title></head>
<body><section epub:type="chapter"><h1>Chapter One</h1><p>First chapter content.</p></section></body>
</html>`,
		"EPUB/text/chapter-2.xhtml": `<?xml version="1.0"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter Two</title></head>
<body><section epub:type="chapter"><h1>Chapter Two</h1><p>Second chapter content.</p></section></body>
</html>`,
		"EPUB/css/styles.css": "body { font-family: serif; }",
		"EPUB/images/cover.jpg": "not-a-real-jpeg-but-good-enough-for-tests",
	}
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	mtw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("minimalV3EPub: create mimetype: %v", err)
	}
	if _, err := io.WriteString(mtw, files["mimetype"]); err != nil {
		t.Fatalf("minimalV3EPub: write mimetype: %v", err)
	}
	for name, content := range files {
		if name == "mimetype" {
			continue
		}
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("minimalV3EPub: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("minimalV3EPub: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("minimalV3EPub: close writer: %v", err)
	}
	return buf.Bytes()
}
