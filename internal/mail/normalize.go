package mail

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	brRe          = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe  = regexp.MustCompile(`(?i)</(p|div|tr|li|h[1-6]|blockquote|table)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	spaceRe       = regexp.MustCompile(`[ \t]+`)
	blankRe       = regexp.MustCompile(`\n{3,}`)
)

// Normalize converts raw HTML (or already-plain text) into plain text
// suitable for chunking. It is a pure function: junk input yields an empty
// string, never an error.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := scriptStyleRe.ReplaceAllString(raw, "")
	text = brRe.ReplaceAllString(text, "\n")
	text = blockCloseRe.ReplaceAllString(text, "\n\n")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	// Collapse horizontal whitespace, then runs of blank lines.
	text = spaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
