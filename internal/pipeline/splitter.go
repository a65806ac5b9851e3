package pipeline

import (
	"regexp"
	"strings"
)

// horizontalRule matches markdown-style rules that act as paragraph
// boundaries in normalized email bodies.
var horizontalRule = regexp.MustCompile(`^\s*(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)

// sentence terminators considered when force-splitting an oversized
// paragraph.
const sentenceTerminators = ".!?"

// Split breaks text into ordered chunks of at most maxChars characters,
// cutting along semantic boundaries: paragraphs first, then sentences,
// then a hard cut as last resort. Every input character lands in exactly
// one chunk and concatenation order is preserved. Input that already fits
// comes back as a single chunk.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range splitParagraphs(text) {
		need := len(para)
		if current.Len() > 0 {
			need += 2 // joining separator
		}
		if current.Len()+need > maxChars {
			flush()
		}

		if len(para) > maxChars {
			// Paragraph alone exceeds the limit; force-split on
			// sentence boundaries.
			for _, piece := range splitOversized(para, maxChars) {
				if current.Len() > 0 {
					flush()
				}
				current.WriteString(piece)
				if len(piece) >= maxChars {
					flush()
				}
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks
}

// splitParagraphs splits text on blank lines and horizontal rules,
// dropping the separators but keeping every non-blank line.
func splitParagraphs(text string) []string {
	lines := strings.Split(text, "\n")
	var paras []string
	var buf []string

	flush := func() {
		if len(buf) > 0 {
			paras = append(paras, strings.Join(buf, "\n"))
			buf = buf[:0]
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" || horizontalRule.MatchString(line) {
			flush()
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return paras
}

// splitOversized cuts a single paragraph that exceeds limit into pieces,
// preferring a sentence boundary in the last 30% of each window and
// falling back to a hard cut at the limit.
func splitOversized(para string, limit int) []string {
	var pieces []string
	rest := para
	for len(rest) > limit {
		cut := sentenceCut(rest, limit)
		pieces = append(pieces, rest[:cut])
		rest = strings.TrimLeft(rest[cut:], " \n")
	}
	if rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

// sentenceCut returns the cut position for a window of at most limit
// characters: just after the last sentence terminator (followed by a space
// or newline) found in the final 30% of the window, or limit when none
// exists.
func sentenceCut(s string, limit int) int {
	floor := limit * 7 / 10
	for i := limit - 1; i > floor; i-- {
		if strings.ContainsRune(sentenceTerminators, rune(s[i])) {
			if i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\n') {
				return i + 1
			}
		}
	}
	return limit
}
