// Package epub builds, parses, and merges ePub 2.0.1 and ePub 3.3 archives.
//
// A Publication is the in-memory document: Dublin Core metadata plus a tree
// of chapters, a set of images, and a set of stylesheets. Build one with
// New, grow it with AddChapter/AddImage/AddStylesheet, and check it with
// Validate before writing it out with Export or ExportToFile. Parse and
// ParseFile reconstruct a Publication from an existing archive, and
// AddPublicationAsChapter splices one Publication's chapters into another,
// deduplicating shared resources by content hash.
package epub
