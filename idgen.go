package epub

import "github.com/google/uuid"

// newUUID generates a random (version 4) UUID string. It backs both the
// default dc:identifier and the opaque chapter/image/stylesheet ids minted
// by the build API.
func newUUID() string {
	return uuid.NewString()
}

// newChapterID mints a stable, opaque chapter identifier.
func newChapterID() string {
	return "chapter-" + newUUID()
}

// newImageID mints a stable, opaque image identifier.
func newImageID() string {
	return "image-" + newUUID()
}

// newStylesheetID mints a stable, opaque stylesheet identifier.
func newStylesheetID() string {
	return "style-" + newUUID()
}
