package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// containerPath is the well-known location of container.xml in an ePub
// archive.
const containerPath = "META-INF/container.xml"

// packageDocumentPath is where this library always writes the package
// document; the container bootstrap it emits always points here.
const packageDocumentPath = "EPUB/package.opf"

// containerXML models the META-INF/container.xml file used to locate the
// package document.
type containerXML struct {
	XMLName   xml.Name   `xml:"urn:oasis:names:tc:opendocument:xmlns:container container"`
	Version   string     `xml:"version,attr"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

// rootFile represents a single <rootfile> element inside container.xml.
type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// emitContainerXML renders the container.xml bootstrap for a freshly
// serialized archive: a single root-file pointing at EPUB/package.opf.
func emitContainerXML() []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">` + "\n")
	b.WriteString("  <rootfiles>\n")
	b.WriteString(fmt.Sprintf("    <rootfile full-path=%q media-type=\"application/oebps-package+xml\"/>\n", packageDocumentPath))
	b.WriteString("  </rootfiles>\n")
	b.WriteString("</container>\n")
	return []byte(b.String())
}

// parseContainer locates the package document's path from a parsed archive's
// container.xml. Missing container.xml or rootfile entries fail with
// ErrArchiveMalformed.
func parseContainer(zr *zip.Reader) (string, error) {
	f := findFileInsensitive(zr, containerPath)
	if f == nil {
		return "", fmt.Errorf("epub: missing META-INF/container.xml: %w", ErrArchiveMalformed)
	}

	data, err := readZipFile(f)
	if err != nil {
		return "", err
	}
	data = stripBOM(data)

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %v: %w", err, ErrArchiveMalformed)
	}

	if len(c.RootFiles) == 0 {
		return "", fmt.Errorf("epub: container.xml has no rootfile entries: %w", ErrArchiveMalformed)
	}

	var fallbackPath string
	for _, rf := range c.RootFiles {
		fullPath := strings.TrimSpace(rf.FullPath)
		if fullPath == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
			return fullPath, nil
		}
		if fallbackPath == "" {
			fallbackPath = fullPath
		}
	}

	if fallbackPath == "" {
		return "", fmt.Errorf("epub: container.xml rootfile has empty full-path: %w", ErrArchiveMalformed)
	}
	return fallbackPath, nil
}
