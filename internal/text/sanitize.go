// Package text cleans model-generated text before it is sent to chat.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	controlCharsRegex     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multipleNewlinesRegex = regexp.MustCompile(`\n{3,}`)

	invisibleReplacer = strings.NewReplacer(
		"\u2060", "", // word joiner
		"\uFEFF", "", // zero width no-break space (BOM)
		"\u00AD", "", // soft hyphen
		"\u200E", "", // left-to-right mark
		"\u200F", "", // right-to-left mark
		"\u200B", " ", // zero width space
		"\u200C", " ", // zero width non-joiner
		"\u2028", "\n", // line separator
		"\u2029", "\n\n", // paragraph separator
		"\u00A0", " ", // no-break space
		"\u202F", " ", // narrow no-break space
		"\u3000", " ", // ideographic space
	)
)

// Sanitize normalizes model output for Telegram: unifies line endings, strips
// control and invisible Unicode characters, and collapses runs of whitespace
// within each line. Returns "" when nothing printable remains; callers fall
// back to a canned reply in that case.
func Sanitize(input string) string {
	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = invisibleReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = collapseSpaces(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = multipleNewlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func collapseSpaces(line string) string {
	var b strings.Builder
	space := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(b.String())
}
