package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// MarkdownParser handles Markdown files. The source is rendered to HTML with
// goldmark and then read as a markup tree, so headings and lists act as
// structure for the aggregator.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	var rendered bytes.Buffer
	if err := goldmark.New().Convert(src, &rendered); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	root, err := html.Parse(&rendered)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown: %w", err)
	}

	// Markdown has no <title>; keep the filename.
	doc := &doctree.Document{
		Title: titleFromFilename(filename),
		Root:  convertNode(root),
	}
	return doc, nil
}
