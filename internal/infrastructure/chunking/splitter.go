package chunking

import (
	"strings"
	"unicode"
)

// minSentenceLen filters out fragments left behind by page numbers,
// verse markers and stray punctuation.
const minSentenceLen = 3

// SentenceSplitter segments extracted text into sentences for indexing.
// Texts that are already one-thought-per-line (scripture, poetry, verse
// lists) split on newlines; prose splits on terminal punctuation.
type SentenceSplitter struct{}

func NewSentenceSplitter() *SentenceSplitter {
	return &SentenceSplitter{}
}

func (s *SentenceSplitter) Split(text string) []string {
	text = cleanText(text)
	if text == "" {
		return nil
	}

	var parts []string
	if looksLineDelimited(text) {
		parts = strings.Split(text, "\n")
	} else {
		parts = splitOnPunctuation(text)
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if isIndexable(part) {
			out = append(out, part)
		}
	}
	return out
}

// cleanText collapses runs of spaces and tabs but preserves line breaks,
// which carry structure in line-delimited sources.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// looksLineDelimited reports whether most lines lack terminal
// punctuation, which marks one-thought-per-line material.
func looksLineDelimited(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 5 {
		return false
	}
	unterminated := 0
	nonEmpty := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		nonEmpty++
		if !strings.HasSuffix(line, ".") && !strings.HasSuffix(line, "!") && !strings.HasSuffix(line, "?") {
			unterminated++
		}
	}
	return nonEmpty > 0 && float64(unterminated) > 0.5*float64(nonEmpty)
}

func splitOnPunctuation(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	var parts []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			parts = append(parts, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

func isIndexable(sentence string) bool {
	if len(sentence) < minSentenceLen {
		return false
	}
	for _, r := range sentence {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
