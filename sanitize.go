package epub

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nonAllowedChars matches any run of characters outside the set a sanitized
// filename permits: alphanumerics, dot, underscore, hyphen.
var nonAllowedChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeFilename keeps alphanumerics, dot, underscore, and hyphen;
// lower-cases the result; and strips leading/trailing dots.
//
// Before the charset filter runs, the input is NFD-normalized and stripped of
// combining marks, so accented input degrades gracefully to its closest ASCII
// form (e.g. "Résumé.png" -> "resume.png") instead of losing the letter
// entirely to the charset filter.
func sanitizeFilename(name string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isCombiningMark))
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	lower := strings.ToLower(stripped)
	cleaned := nonAllowedChars.ReplaceAllString(lower, "-")
	cleaned = strings.Trim(cleaned, ".")
	return cleaned
}

// isCombiningMark reports whether r is a Unicode non-spacing mark, i.e. an
// accent left behind by NFD decomposition.
func isCombiningMark(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// splitExt splits name into (base, ext) where ext includes the leading dot
// and is lower-cased. Returns ext == "" when name has no extension.
func splitExt(name string) (base, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], strings.ToLower(name[idx:])
}
