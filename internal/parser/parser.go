package parser

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// ErrUnsupported is returned when no parser handles a file type.
var ErrUnsupported = errors.New("unsupported document type")

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Paragraphs per page-like group for formats without real pages.
const paragraphsPerPage = 20

// Options tune the parsers handed out by a Registry.
type Options struct {
	PDFFallbackPdftotext bool // Shell out to pdftotext when the Go PDF reader fails.
}

// Registry resolves parsers by filename or MIME type.
type Registry struct {
	opts Options
}

// NewRegistry returns a Registry using opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return NewRegistry(Options{}).ForFile(filename)
}

// ForFile returns the appropriate parser for a filename.
func (reg *Registry) ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: reg.opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: file extension %q", ErrUnsupported, ext)
	}
}

// ForContentType returns the parser for a MIME type such as "text/html; charset=utf-8".
func (reg *Registry) ForContentType(contentType string) (Parser, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupported, contentType)
	}
	switch mediaType {
	case "text/plain":
		return &TextParser{}, nil
	case "text/markdown", "text/x-markdown":
		return &MarkdownParser{}, nil
	case "text/csv":
		return &CSVParser{}, nil
	case "text/html", "application/xhtml+xml":
		return &HTMLParser{ContentType: contentType}, nil
	case "application/pdf":
		return &PDFParser{FallbackPdftotext: reg.opts.PDFFallbackPdftotext}, nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return &DOCXParser{}, nil
	}
	return nil, fmt.Errorf("%w: content type %q", ErrUnsupported, mediaType)
}

// Resolve picks a parser by extension, falling back to the content type when
// the filename has no supported extension.
func (reg *Registry) Resolve(filename, contentType string) (Parser, error) {
	if IsSupportedExtension(filename) {
		p, err := reg.ForFile(filename)
		if err != nil {
			return nil, err
		}
		if hp, ok := p.(*HTMLParser); ok {
			hp.ContentType = contentType
		}
		return p, nil
	}
	if contentType == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, filename)
	}
	return reg.ForContentType(contentType)
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// paginate groups paragraphs into pages of paragraphsPerPage.
func paginate(paragraphs []string) []*doctree.Page {
	var pages []*doctree.Page
	for i := 0; i < len(paragraphs); i += paragraphsPerPage {
		end := min(i+paragraphsPerPage, len(paragraphs))
		pages = append(pages, &doctree.Page{
			Number:     len(pages) + 1,
			Paragraphs: paragraphs[i:end:end],
		})
	}
	return pages
}
