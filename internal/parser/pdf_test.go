package parser

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// buildPDF writes a minimal uncompressed PDF. An empty string yields a
// page with no content stream.
func buildPDF(pageTexts ...string) []byte {
	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	catalog := add("")
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var kids []string
	for _, text := range pageTexts {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]"
		if text != "" {
			stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
			content := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
			page += fmt.Sprintf(" /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R", font, content)
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", add(page+" >>")))
	}
	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return buf.Bytes()
}

func TestPDFParser_ExtractsText(t *testing.T) {
	p := &PDFParser{}
	doc, err := p.Parse(bytes.NewReader(buildPDF("Hello page one.")), "report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "report" {
		t.Errorf("expected title %q, got %q", "report", doc.Title)
	}
	if doc.IsTree() {
		t.Error("expected a linear document")
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Number != 1 {
		t.Errorf("expected page number 1, got %d", doc.Pages[0].Number)
	}
	if got := strings.Join(doc.Pages[0].Paragraphs, " "); !strings.Contains(got, "Hello page one.") {
		t.Errorf("expected page text to contain %q, got %q", "Hello page one.", got)
	}
}

func TestPDFParser_KeepsPageNumbersAcrossBlankPages(t *testing.T) {
	p := &PDFParser{}
	doc, err := p.Parse(bytes.NewReader(buildPDF("First page.", "", "Third page.")), "report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 non-blank pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Number != 1 || doc.Pages[1].Number != 3 {
		t.Errorf("expected page numbers 1 and 3, got %d and %d", doc.Pages[0].Number, doc.Pages[1].Number)
	}
	if !strings.Contains(strings.Join(doc.Pages[1].Paragraphs, " "), "Third page.") {
		t.Errorf("unexpected third page text: %q", doc.Pages[1].Paragraphs)
	}
}

func TestPDFParser_BlankDocument(t *testing.T) {
	orig := pdftotextCommand
	pdftotextCommand = "docchunk-missing-pdftotext"
	defer func() { pdftotextCommand = orig }()

	tests := []struct {
		name     string
		fallback bool
	}{
		{"no fallback", false},
		{"fallback unavailable", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PDFParser{FallbackPdftotext: tt.fallback}
			doc, err := p.Parse(bytes.NewReader(buildPDF("")), "blank.pdf")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Title != "blank" {
				t.Errorf("expected title %q, got %q", "blank", doc.Title)
			}
			if len(doc.Pages) != 0 {
				t.Errorf("expected no pages, got %d", len(doc.Pages))
			}
		})
	}
}

func TestPDFParser_InvalidInput(t *testing.T) {
	orig := pdftotextCommand
	pdftotextCommand = "docchunk-missing-pdftotext"
	defer func() { pdftotextCommand = orig }()

	for _, fallback := range []bool{false, true} {
		p := &PDFParser{FallbackPdftotext: fallback}
		if _, err := p.Parse(strings.NewReader("not a pdf"), "broken.pdf"); err == nil {
			t.Errorf("fallback=%v: expected error for invalid PDF", fallback)
		}
	}
}
