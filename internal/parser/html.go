package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTMLParser handles HTML files. The whole markup tree is kept for the
// aggregator; nothing is filtered here.
type HTMLParser struct {
	// ContentType, when known, supplies the charset. Otherwise it is sniffed
	// from a BOM or <meta> tag, defaulting to UTF-8.
	ContentType string
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	utf8, err := charset.NewReader(r, p.ContentType)
	if err != nil {
		return nil, fmt.Errorf("detect html charset: %w", err)
	}
	root, err := html.Parse(utf8)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return newHTMLDocument(root, filename), nil
}

func newHTMLDocument(root *html.Node, filename string) *doctree.Document {
	doc := &doctree.Document{
		Title: titleFromFilename(filename),
		Root:  convertNode(root),
	}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}
	return doc
}

// convertNode copies an x/net/html tree into a doctree.Node tree. Doctype
// declarations become comments so they are never chunked.
func convertNode(n *html.Node) *doctree.Node {
	var out *doctree.Node
	switch n.Type {
	case html.DocumentNode:
		out = &doctree.Node{Kind: doctree.KindDocument}
	case html.ElementNode:
		out = &doctree.Node{Kind: doctree.KindElement, Tag: strings.ToLower(n.Data)}
		for _, a := range n.Attr {
			out.Attrs = append(out.Attrs, doctree.Attr{Key: a.Key, Val: a.Val})
		}
	case html.TextNode, html.RawNode:
		return &doctree.Node{Kind: doctree.KindText, Text: n.Data}
	case html.CommentNode, html.DoctypeNode:
		return &doctree.Node{Kind: doctree.KindComment, Text: n.Data}
	default:
		return nil
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := convertNode(c); child != nil {
			out.Children = append(out.Children, child)
		}
	}
	return out
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
