package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// CSVParser handles CSV files. The first row is the header; every data row
// becomes one "header: cell" paragraph and rows are grouped 20 per page.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &doctree.Document{Title: titleFromFilename(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	headers := records[0]
	var rows []string
	for _, row := range records[1:] {
		if text := rowText(headers, row); text != "" {
			rows = append(rows, text)
		}
	}
	doc.Pages = paginate(rows)

	return doc, nil
}

func rowText(headers, row []string) string {
	var parts []string
	for j, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
			parts = append(parts, strings.TrimSpace(headers[j])+": "+cell)
		} else {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, ", ")
}
