// Package sanitize normalizes free-form user strings before they enter box
// state: competitor names, club names, and contest categories.
package sanitize

import (
	"fmt"
	"strings"
)

// dangerousRunes are ASCII punctuation stripped from competitor names after
// trimming; letters, including diacritics, are never touched.
const dangerousRunes = "<>{}[]\\|;()&$`\"*"

// String trims surrounding whitespace, drops embedded null bytes, and
// truncates to maxLen runes. Non-string input is coerced to its textual form
// first, matching the permissive source behavior.
func String(v any, maxLen int) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if maxLen > 0 {
		r := []rune(s)
		if len(r) > maxLen {
			s = string(r[:maxLen])
		}
	}
	return s
}

// CompetitorName applies String(_, 255) then strips shell/HTML/SQL-hostile
// punctuation and C0/DEL control characters, preserving Unicode letters
// (including Romanian diacritics) so legitimate names never get mangled.
func CompetitorName(v any) string {
	s := String(v, 255)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0x1F || r == 0x7F {
			continue
		}
		if strings.ContainsRune(dangerousRunes, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Category applies String(_, 100).
func Category(v any) string {
	return String(v, 100)
}
