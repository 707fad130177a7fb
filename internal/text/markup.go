package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bft-labs/feedrelay/internal/domain"
)

var reTag = regexp.MustCompile(`<[^>]*>`)

// StripTags removes every <...> tag. Nested markup is not interpreted;
// each tag is removed on its own.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return reTag.ReplaceAllString(s, "")
}

// Truncate clamps s to max characters. Longer input keeps its first max-3
// characters followed by "...". Length is counted in runes.
func Truncate(s string, max int) string {
	if max < len(domain.Ellipsis) {
		max = len(domain.Ellipsis)
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - len(domain.Ellipsis)
	i := 0
	for pos := range s {
		if i == keep {
			return s[:pos] + domain.Ellipsis
		}
		i++
	}
	return s
}

// Normalize runs the title pipeline: decode entities, strip tags, trim,
// and compose to NFC so accented letters count as one character.
func Normalize(s string) string {
	s = DecodeEntities(s)
	s = StripTags(s)
	s = strings.TrimSpace(s)
	return norm.NFC.String(s)
}

// NormalizeDescription runs Normalize and clamps the result to
// domain.MaxDescriptionLen characters.
func NormalizeDescription(s string) string {
	return Truncate(Normalize(s), domain.MaxDescriptionLen)
}
