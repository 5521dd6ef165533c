package doctree

import "strings"

// Document is the parsed form of an input file, ready for chunking.
// Markup formats fill Root; linear formats fill Pages.
type Document struct {
	Title string  // Document title (from metadata or filename)
	Root  *Node   // Markup tree (HTML, Markdown); nil for linear formats
	Pages []*Page // Linear content in reading order
}

// IsTree reports whether the document carries a markup tree.
func (d *Document) IsTree() bool {
	return d != nil && d.Root != nil
}

// Page is one page (or page-like group) of a linear document.
type Page struct {
	Number     int      // 1-based page number (0 if N/A)
	Paragraphs []string // Non-blank paragraphs in reading order
}

// Kind is the type of a markup node.
type Kind int

const (
	KindDocument Kind = iota // Synthetic root wrapper produced by the parser
	KindElement
	KindText
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComment:
		return "comment"
	}
	return "unknown"
}

// Attr is a single markup attribute.
type Attr struct {
	Key string
	Val string
}

// Node is a node of a parsed markup tree. The parser builds the tree once;
// everything downstream only reads it.
type Node struct {
	Kind     Kind
	Tag      string // Lowercase element name; empty for text, comment and document nodes
	Attrs    []Attr
	Text     string // Raw character content of text and comment nodes
	Children []*Node
}

// Attr returns the value of the named attribute, or "" if absent.
func (n *Node) Attr(key string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// Classes returns the whitespace-separated tokens of the class attribute.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attr("class"))
}

// Element is a convenience constructor for element nodes.
func Element(tag string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: strings.ToLower(tag), Children: children}
}

// Text is a convenience constructor for text nodes.
func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

// WithClass sets the class attribute and returns n.
func (n *Node) WithClass(class string) *Node {
	n.Attrs = append(n.Attrs, Attr{Key: "class", Val: class})
	return n
}

// Words returns every whitespace-separated word of the document in order.
// Excluded markup is not filtered here; callers needing that walk the tree.
func (d *Document) Words() []string {
	var words []string
	for _, p := range d.Pages {
		for _, para := range p.Paragraphs {
			words = append(words, strings.Fields(para)...)
		}
	}
	return words
}
