package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/dgallion1/docchunk/internal/pipeline"
)

const (
	defaultWidth = 100
	minPreview   = 20
)

type printer struct {
	w     io.Writer
	width int
	full  bool
}

func (p printer) print(out output) {
	res := out.Result
	title := res.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(p.w, "%s: %s, %d chunks\n", out.Source, title, len(res.Chunks))

	if len(out.Batches) == 0 {
		for _, c := range res.Chunks {
			p.chunk(c, "  ")
		}
		return
	}
	idx := 0
	for b, batch := range out.Batches {
		fmt.Fprintf(p.w, "  batch %d (%d chunks)\n", b+1, len(batch))
		for range batch {
			p.chunk(res.Chunks[idx], "    ")
			idx++
		}
	}
}

func (p printer) chunk(c pipeline.Chunk, indent string) {
	prefix := fmt.Sprintf("%s[%d] %dw %dt  ", indent, c.Index, c.Words, c.Tokens)
	if p.full {
		fmt.Fprintf(p.w, "%s\n%s\n", strings.TrimRight(prefix, " "), c.Text)
		return
	}
	avail := p.width - runewidth.StringWidth(prefix)
	if avail < minPreview {
		avail = minPreview
	}
	fmt.Fprintf(p.w, "%s%s\n", prefix, preview(c.Text, avail))
}

// preview collapses whitespace and truncates s to width terminal cells.
func preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

func terminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}
