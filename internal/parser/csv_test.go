package parser

import (
	"fmt"
	"strings"
	"testing"
)

func TestCSVParser_RowsBecomeParagraphs(t *testing.T) {
	input := "name,age\nAlice,30\nBob,\n,\n"
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(input), "people.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "people" {
		t.Errorf("expected title %q, got %q", "people", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	want := []string{"name: Alice, age: 30", "name: Bob"}
	got := doc.Pages[0].Paragraphs
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCSVParser_GroupsRowsIntoPages(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 45; i++ {
		fmt.Fprintf(&b, "%d,v%d\n", i, i)
	}
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(b.String()), "big.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantSizes := []int{20, 20, 5}
	if len(doc.Pages) != len(wantSizes) {
		t.Fatalf("expected %d pages, got %d", len(wantSizes), len(doc.Pages))
	}
	for i, n := range wantSizes {
		if len(doc.Pages[i].Paragraphs) != n {
			t.Errorf("page %d: expected %d rows, got %d", i+1, n, len(doc.Pages[i].Paragraphs))
		}
		if doc.Pages[i].Number != i+1 {
			t.Errorf("page %d: expected number %d, got %d", i, i+1, doc.Pages[i].Number)
		}
	}
}

func TestCSVParser_Empty(t *testing.T) {
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected no pages, got %d", len(doc.Pages))
	}
}
