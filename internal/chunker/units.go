package chunker

import (
	"strings"
	"unicode"
)

// Unit is one atomic piece of text at the active granularity.
type Unit struct {
	Text  string
	Words int
}

// NewUnit builds a Unit, counting its whitespace-separated words.
func NewUnit(text string) Unit {
	return Unit{Text: text, Words: CountWords(text)}
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SplitWords splits text into words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// SplitSentences splits text after '.', '!' or '?' when followed by whitespace.
// The punctuation stays with its sentence; the whitespace run is dropped.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// SplitParagraphs splits text on runs of blank or whitespace-only lines.
// Lines within a paragraph keep their line breaks.
func SplitParagraphs(text string) []string {
	var paragraphs []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(strings.TrimSpace(line))
	}
	flush()

	return paragraphs
}
