package portfolio

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const fallbackSlugPrefix = "project-"

// Slugify lowercases value and collapses every run of non-alphanumeric runes into a single hyphen.
func Slugify(value string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return b.String()
}

// ProjectSlug derives a slug from a project title. Titles without any ASCII letter or digit get
// a stable slug built from a hash of the title, so distinct titles never share the empty slug.
func ProjectSlug(title string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(title)))
	return fallbackSlugPrefix + hex.EncodeToString(sum[:4])
}
