package util

import (
	"regexp"
	"strings"

	"github.com/kennygrant/sanitize"
)

var (
	reIllegal    = regexp.MustCompile(`[\\/:*?"<>|]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a chapter title into a name that is safe on every
// common filesystem. It never returns an empty string.
func SanitizeFilename(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}

	s = sanitize.Accents(s)
	s = reIllegal.ReplaceAllString(s, "_")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s == "" {
		return "unknown"
	}
	return s
}
