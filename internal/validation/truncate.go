package validation

import (
	"strings"
	"unicode/utf8"
)

// Truncate drops invalid UTF-8 from value and shortens it to at most limit bytes without
// splitting a rune.
func Truncate(value string, limit int) string {
	value = strings.ToValidUTF8(value, "")
	if limit <= 0 {
		return ""
	}
	if len(value) <= limit {
		return value
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
