package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages; runs of
// blank lines separate paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	for i, raw := range strings.Split(string(src), "\f") {
		paras := chunker.SplitParagraphs(raw)
		if len(paras) == 0 {
			continue
		}
		doc.Pages = append(doc.Pages, &doctree.Page{Number: i + 1, Paragraphs: paras})
	}

	return doc, nil
}
