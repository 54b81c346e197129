package topic

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator joins the words of an identifier
const Separator = '_'

// Normalize canonicalizes a free-text label into a topic identifier:
// lower-cased, runs of whitespace, hyphens and underscores collapsed into a
// single underscore, every other non-alphanumeric rune dropped, no leading or
// trailing separator. The result is empty when the label has no letters or digits.
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteRune(Separator)
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == Separator:
			pendingSep = true
		}
	}
	return b.String()
}

// Humanize turns an identifier back into a display name: "react_basics" -> "React Basics"
func Humanize(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, string(Separator), " "))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// humanForm is the lower-cased, whitespace-collapsed text compared against display names
func humanForm(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
