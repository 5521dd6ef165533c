package tokenizer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Counter reports how many model tokens a piece of text uses.
type Counter interface {
	Count(text string) int
}

// BPECounter counts tokens with a tiktoken BPE encoding.
type BPECounter struct {
	encoding *tiktoken.Tiktoken
}

// NewBPECounter loads the named encoding.
func NewBPECounter(name string) (*BPECounter, error) {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", name, err)
	}
	return &BPECounter{encoding: encoding}, nil
}

func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateCounter approximates tokens from words, roughly 1.33 tokens per
// English word.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// NewCounter returns a BPE counter for encoding, or the word estimate when
// encoding is empty or cannot be loaded.
func NewCounter(encoding string, log *slog.Logger) Counter {
	if encoding == "" {
		return EstimateCounter{}
	}
	c, err := NewBPECounter(encoding)
	if err != nil {
		log.Warn("token encoding unavailable, estimating from words", "encoding", encoding, "error", err)
		return EstimateCounter{}
	}
	return c
}
