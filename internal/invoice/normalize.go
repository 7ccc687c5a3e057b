package invoice

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// Full-width punctuation shows up inconsistently in OCR output; the
	// pattern tables only deal with the ASCII forms.
	fullWidthReplacer = strings.NewReplacer(
		"：", ":",
		"（", "(",
		"）", ")",
	)
)

// NormalizeText canonicalizes raw document text before pattern search:
// runs of whitespace collapse to a single space and full-width colon and
// parentheses are replaced by their ASCII equivalents.
func NormalizeText(text string) string {
	text = fullWidthReplacer.Replace(text)
	return whitespaceRun.ReplaceAllString(text, " ")
}
