package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxEntries and maxTotalSize are anti-zip-bomb guards, not user
// preferences, so they stay compile-time constants rather than Options
// fields.
const (
	maxEntries   = 10_000
	maxTotalSize = 1_000_000_000
)

// maxEntryDecompressSize additionally bounds any single entry's declared
// uncompressed size, guarding against a single forged entry claiming the
// entire maxTotalSize budget before the running total check can catch it.
const maxEntryDecompressSize int64 = 256 * 1024 * 1024

// checkArchiveCeilings enforces the entry-count and total-uncompressed-size
// ceilings. Violations fail with ErrArchiveUnsafe.
func checkArchiveCeilings(zr *zip.Reader) error {
	if len(zr.File) > maxEntries {
		return fmt.Errorf("epub: archive has %d entries (max %d): %w", len(zr.File), maxEntries, ErrArchiveUnsafe)
	}

	var total uint64
	for _, f := range zr.File {
		total += f.UncompressedSize64
		if total > maxTotalSize {
			return fmt.Errorf("epub: archive exceeds %d uncompressed bytes: %w", maxTotalSize, ErrArchiveUnsafe)
		}
	}
	return nil
}

// checkEntryPaths enforces the path-traversal guard: every entry's
// normalized target must stay within the notional extraction root.
// Violations fail with ErrArchiveUnsafe.
func checkEntryPaths(zr *zip.Reader) error {
	for _, f := range zr.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("epub: unsafe entry path %q: %w", f.Name, ErrArchiveUnsafe)
		}
	}
	return nil
}

// isSafePath reports whether p is a ZIP-internal path that cannot escape the
// archive root via path traversal (e.g. "../../../etc/passwd") or an
// absolute path.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF) from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// readZipFile reads the full contents of a ZIP entry, bounding the read at
// maxEntryDecompressSize to guard against a single entry whose declared size
// understates its actual decompressed size.
func readZipFile(f *zip.File) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("epub: unsafe zip entry path %q: %w", f.Name, ErrArchiveUnsafe)
	}
	if f.UncompressedSize64 > uint64(maxEntryDecompressSize) {
		return nil, fmt.Errorf("epub: zip entry %s too large: %d bytes: %w", f.Name, f.UncompressedSize64, ErrArchiveUnsafe)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	lr := io.LimitReader(rc, maxEntryDecompressSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("epub: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxEntryDecompressSize {
		return nil, fmt.Errorf("epub: zip entry %s decompressed size exceeds limit: %w", f.Name, ErrArchiveUnsafe)
	}
	return data, nil
}

// findFileInsensitive looks up a ZIP entry by path, first trying an exact
// match, then a case-insensitive comparison. Returns nil if no match is found.
func findFileInsensitive(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	lower := strings.ToLower(name)
	for _, f := range zr.File {
		if strings.ToLower(f.Name) == lower {
			return f
		}
	}
	return nil
}

// resolveRelativePath resolves href relative to the directory of basePath.
// Both are ZIP-internal, forward-slash-separated paths. Returns "" when the
// resolved path would escape the archive root or is absolute.
func resolveRelativePath(basePath, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return ""
	}
	dir := path.Dir(basePath)
	joined := path.Join(dir, href)
	cleaned := path.Clean(joined)
	if !isSafePath(cleaned) {
		return ""
	}
	return cleaned
}
