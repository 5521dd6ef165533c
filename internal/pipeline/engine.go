package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/doctree"
	"github.com/dgallion1/docchunk/internal/fetch"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/tokenizer"
)

// Fetcher downloads remote documents.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Resource, error)
}

// Settings are the per-request chunking overrides. Zero values fall back to
// the service defaults.
type Settings struct {
	MaxWords    int    `json:"max_words,omitempty"`
	Granularity string `json:"granularity,omitempty"`
	Greedy      *bool  `json:"greedy,omitempty"`
}

// Chunk is one output passage with its sizes.
type Chunk struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Words  int    `json:"words"`
	Tokens int    `json:"tokens"`
}

// Result is the outcome of chunking one document.
type Result struct {
	Title       string        `json:"title"`
	Filename    string        `json:"filename"`
	ContentHash string        `json:"content_hash"`
	Chunks      []Chunk       `json:"chunks"`
	Duration    time.Duration `json:"-"`
}

// Texts returns the chunk texts in order.
func (r *Result) Texts() []string {
	texts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		texts[i] = c.Text
	}
	return texts
}

// Engine parses and chunks documents with the service defaults. It holds no
// per-call state and is shared by the HTTP handlers and the workers.
type Engine struct {
	registry *parser.Registry
	fetcher  Fetcher
	counter  tokenizer.Counter
	stats    *Stats
	log      *slog.Logger

	defaults chunker.Config
	options  []chunker.Option

	retry RetryPolicy
}

// NewEngine builds an Engine. defaults must already be valid.
func NewEngine(registry *parser.Registry, fetcher Fetcher, counter tokenizer.Counter, stats *Stats,
	log *slog.Logger, defaults chunker.Config, options ...chunker.Option) *Engine {
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if counter == nil {
		counter = tokenizer.EstimateCounter{}
	}
	return &Engine{
		registry: registry,
		fetcher:  fetcher,
		counter:  counter,
		stats:    stats,
		log:      log,
		defaults: defaults,
		options:  options,
		retry:    DefaultRetryPolicy(),
	}
}

// SetRetryPolicy replaces the URL retrieval retry policy. Call it before the
// engine is shared.
func (e *Engine) SetRetryPolicy(p RetryPolicy) {
	e.retry = p
}

// Stats returns the chunking latency tracker.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Chunker builds a Chunker from s layered over the defaults. Invalid settings
// fail with chunker.ErrInvalidArgument or chunker.ErrUnsupportedGranularity.
func (e *Engine) Chunker(s Settings) (*chunker.Chunker, error) {
	cfg := e.defaults
	if s.MaxWords != 0 {
		cfg.MaxWords = s.MaxWords
	}
	if s.Granularity != "" {
		g, err := chunker.ParseGranularity(s.Granularity)
		if err != nil {
			return nil, err
		}
		cfg.Granularity = g
	}
	opts := e.options
	if s.Greedy != nil {
		opts = append(opts[:len(opts):len(opts)], chunker.WithGreedySiblingMerge(*s.Greedy))
	}
	return chunker.New(cfg, opts...)
}

// Parse picks a parser from the filename, or the content type when the
// filename has no known extension, and parses data.
func (e *Engine) Parse(data []byte, filename, contentType string) (*doctree.Document, error) {
	p, err := e.registry.Resolve(filename, contentType)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return doc, nil
}

// CanParse reports whether a parser exists for filename or contentType.
func (e *Engine) CanParse(filename, contentType string) error {
	_, err := e.registry.Resolve(filename, contentType)
	return err
}

// Chunk runs c over doc and sizes every chunk.
func (e *Engine) Chunk(c *chunker.Chunker, doc *doctree.Document) ([]Chunk, time.Duration) {
	start := time.Now()
	texts := c.Chunk(doc)
	elapsed := time.Since(start)
	e.stats.Record(elapsed.Milliseconds(), len(texts))

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{
			Index:  i,
			Text:   t,
			Words:  chunker.CountWords(t),
			Tokens: e.counter.Count(t),
		}
	}
	return chunks, elapsed
}

// Run validates s, then parses and chunks data.
func (e *Engine) Run(data []byte, filename, contentType string, s Settings) (*Result, error) {
	c, err := e.Chunker(s)
	if err != nil {
		return nil, err
	}
	doc, err := e.Parse(data, filename, contentType)
	if err != nil {
		return nil, err
	}
	chunks, elapsed := e.Chunk(c, doc)
	return &Result{
		Title:       doc.Title,
		Filename:    filename,
		ContentHash: ContentHashHex([]byte(documentText(doc))),
		Chunks:      chunks,
		Duration:    elapsed,
	}, nil
}

// Fetch downloads url, retrying transient failures with backoff.
func (e *Engine) Fetch(ctx context.Context, url string) (*fetch.Resource, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("url retrieval is not configured")
	}
	var lastErr error
	attempts := e.retry.attempts()
	for attempt := range attempts {
		res, err := e.fetcher.Get(ctx, url)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}
		e.log.Warn("retryable fetch error", "url", url, "attempt", attempt, "error", err)
		select {
		case <-time.After(e.retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// RunURL validates s, then fetches, parses and chunks url.
func (e *Engine) RunURL(ctx context.Context, url string, s Settings) (*Result, error) {
	if _, err := e.Chunker(s); err != nil {
		return nil, err
	}
	res, err := e.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return e.Run(res.Body, res.Filename, res.ContentType, s)
}

// documentText flattens a document's text for content hashing.
func documentText(doc *doctree.Document) string {
	var sb strings.Builder
	if doc.IsTree() {
		var walk func(n *doctree.Node)
		walk = func(n *doctree.Node) {
			if n.Kind == doctree.KindText {
				sb.WriteString(n.Text)
			}
			for _, c := range n.Children {
				walk(c)
			}
		}
		walk(doc.Root)
		return sb.String()
	}
	for _, p := range doc.Pages {
		for _, para := range p.Paragraphs {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(para)
		}
	}
	return sb.String()
}
