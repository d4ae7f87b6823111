package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrInvalidMetadata indicates required metadata (title or creator) is empty.
	ErrInvalidMetadata = errors.New("epub: invalid metadata")

	// ErrUnknownParent indicates a chapter was added or reparented with a
	// parent_id that does not name an existing chapter.
	ErrUnknownParent = errors.New("epub: unknown parent chapter")

	// ErrUnknownChapter indicates an operation referenced a chapter id that
	// does not exist in the publication.
	ErrUnknownChapter = errors.New("epub: unknown chapter")

	// ErrUnknownImage indicates an operation referenced an image id that does
	// not exist in the publication.
	ErrUnknownImage = errors.New("epub: unknown image")

	// ErrInvalidImageExtension indicates add_image was called with a filename
	// whose extension is not one of the recognised image types.
	ErrInvalidImageExtension = errors.New("epub: invalid image extension")

	// ErrInvalidHeadingLevel indicates a heading_level outside the 1-6 range.
	ErrInvalidHeadingLevel = errors.New("epub: invalid heading level")

	// ErrArchiveMalformed indicates a missing mimetype, missing container,
	// missing package document, or unparseable XML.
	ErrArchiveMalformed = errors.New("epub: archive malformed")

	// ErrArchiveUnsafe indicates path traversal or a resource ceiling
	// (entry count, uncompressed size) was exceeded.
	ErrArchiveUnsafe = errors.New("epub: archive unsafe")

	// ErrSerializationFailed indicates a downstream XML-emit or ZIP-write
	// failure during Export.
	ErrSerializationFailed = errors.New("epub: serialization failed")

	// ErrValidationRejected is raised by Export when validation is enabled
	// and the publication's ValidationReport contains errors.
	ErrValidationRejected = errors.New("epub: validation rejected export")
)
