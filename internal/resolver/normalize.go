package resolver

import (
	"strings"
	"unicode/utf8"

	"github.com/mramzani/barghalarm/internal/calendar"
)

// letterVariants unifies look-alike Arabic code points to their Persian form
var letterVariants = strings.NewReplacer(
	"ي", "ی", // Arabic yeh
	"ى", "ی", // alef maksura
	"ئ", "ی",
	"ك", "ک", // Arabic kaf
	"ة", "ه",
	"ۀ", "ه",
	"أ", "ا",
	"إ", "ا",
	"ٱ", "ا",
	"ؤ", "و",
)

// separators split an address into fragments
const separators = "-–—,،:;؛()[]"

// Normalize canonicalizes an address for comparison. Letter variants and
// digits are unified, invisible joiners, diacritics and tatweel removed,
// and whitespace collapsed. Punctuation is kept.
func Normalize(s string) string {
	s = letterVariants.Replace(s)
	s = calendar.ASCIIDigits(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isIgnorable(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fold normalizes s and turns separators into spaces, so that
// "خیابان امام، کوچه بهار" and "خیابان امام کوچه بهار" compare equal.
func Fold(s string) string {
	n := Normalize(s)
	n = strings.Map(func(r rune) rune {
		if isSeparator(r) || r == '.' || r == '/' || r == '«' || r == '»' {
			return ' '
		}
		return r
	}, n)
	return strings.Join(strings.Fields(n), " ")
}

// LongestFragment splits the normalized text on separators and returns
// the longest trimmed fragment.
func LongestFragment(s string) string {
	parts := strings.FieldsFunc(Normalize(s), isSeparator)
	longest := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > utf8.RuneCountInString(longest) {
			longest = p
		}
	}
	return longest
}

func isSeparator(r rune) bool {
	return strings.ContainsRune(separators, r)
}

func isIgnorable(r rune) bool {
	switch {
	case r == '\u200b', r == '\u200c', r == '\u200d', r == '\u200e', r == '\u200f', r == '\ufeff':
		return true
	case r == '\u0640': // tatweel
		return true
	case r >= '\u064b' && r <= '\u065f', r == '\u0670': // harakat
		return true
	}
	return false
}
