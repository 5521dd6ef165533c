package chunker

import (
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// Separators used when joining units of each granularity.
const (
	wordSep      = " "
	sentenceSep  = " "
	paragraphSep = "\n"
)

// Pack greedily packs units, in order, into chunks of at most maxWords words.
// A chunk is flushed before a unit that would push it over budget; the unit is
// then appended unconditionally, so a single unit larger than maxWords becomes
// its own oversized chunk instead of being split. Blank units are skipped.
func Pack(units []Unit, maxWords int, sep string) ([]string, error) {
	if err := validateMaxWords(maxWords); err != nil {
		return nil, err
	}
	return pack(units, maxWords, sep), nil
}

func pack(units []Unit, maxWords int, sep string) []string {
	var result []string
	var current strings.Builder
	currentWords := 0

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			result = append(result, t)
		}
		current.Reset()
		currentWords = 0
	}

	for _, u := range units {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		if currentWords+u.Words > maxWords && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(u.Text)
		currentWords += u.Words
	}
	flush()

	return result
}

// PackWords packs words into chunks of exactly maxWords words (the last may be
// shorter). Each word weighs one, so no chunk ever exceeds the budget.
func PackWords(words []string, maxWords int) ([]string, error) {
	if err := validateMaxWords(maxWords); err != nil {
		return nil, err
	}
	return pack(wordUnits(words), maxWords, wordSep), nil
}

func wordUnits(words []string) []Unit {
	units := make([]Unit, 0, len(words))
	for _, w := range words {
		units = append(units, Unit{Text: w, Words: 1})
	}
	return units
}

// PackDocument packs a linear document at the given granularity.
func PackDocument(doc *doctree.Document, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return packDocument(doc, cfg), nil
}

func packDocument(doc *doctree.Document, cfg Config) []string {
	if doc == nil {
		return nil
	}
	switch cfg.Granularity {
	case GranularityWord:
		return pack(wordUnits(doc.Words()), cfg.MaxWords, wordSep)
	case GranularitySentence:
		// Sentences are split over the whole page, so a paragraph without
		// terminal punctuation runs into the next one.
		var units []Unit
		for _, p := range doc.Pages {
			for _, s := range SplitSentences(strings.Join(p.Paragraphs, "\n\n")) {
				units = append(units, NewUnit(s))
			}
		}
		return pack(units, cfg.MaxWords, sentenceSep)
	case GranularityParagraph:
		var units []Unit
		for _, p := range doc.Pages {
			for _, para := range p.Paragraphs {
				units = append(units, NewUnit(strings.TrimSpace(para)))
			}
		}
		return pack(units, cfg.MaxWords, paragraphSep)
	case GranularityPage:
		// Page boundaries always split; the budget applies within a page.
		var result []string
		for _, p := range doc.Pages {
			var words []string
			for _, para := range p.Paragraphs {
				words = append(words, strings.Fields(para)...)
			}
			result = append(result, pack(wordUnits(words), cfg.MaxWords, wordSep)...)
		}
		return result
	}
	return nil
}
