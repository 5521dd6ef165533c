package chunker

import (
	"github.com/dgallion1/docchunk/internal/doctree"
)

// Chunker splits parsed documents into word-bounded passages. Markup trees go
// through the tree aggregator; linear documents are packed at the configured
// granularity. A Chunker is read-only after New and safe for concurrent use.
type Chunker struct {
	cfg       Config
	greedy    bool
	exclusion ExclusionPolicy
	breaks    TagSet
}

// Option customizes a Chunker.
type Option func(*Chunker)

// WithGreedySiblingMerge toggles merging consecutive small siblings. When off,
// every mergeable child of a split container becomes its own passage.
func WithGreedySiblingMerge(on bool) Option {
	return func(c *Chunker) { c.greedy = on }
}

// WithExcludedTags replaces the set of excluded element names.
func WithExcludedTags(tags ...string) Option {
	return func(c *Chunker) { c.exclusion.Tags = NewTagSet(tags...) }
}

// WithExcludedClasses replaces the set of excluded class names.
func WithExcludedClasses(classes ...string) Option {
	return func(c *Chunker) { c.exclusion.Classes = NewTagSet(classes...) }
}

// WithSectionBreakTags replaces the set of section-break element names.
func WithSectionBreakTags(tags ...string) Option {
	return func(c *Chunker) { c.breaks = NewTagSet(tags...) }
}

// New validates cfg and builds a Chunker.
func New(cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{
		cfg:       cfg,
		greedy:    true,
		exclusion: DefaultExclusionPolicy(),
		breaks:    NewTagSet(DefaultSectionBreakTags...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the Chunker was built with.
func (c *Chunker) Config() Config { return c.cfg }

// Chunk returns the passages of doc in document order. Tree documents ignore
// the configured granularity.
func (c *Chunker) Chunk(doc *doctree.Document) []string {
	if doc.IsTree() {
		a := &Aggregator{
			MaxWords:      c.cfg.MaxWords,
			Greedy:        c.greedy,
			IsExcluded:    c.exclusion.Excludes,
			SectionBreaks: c.breaks,
		}
		return a.aggregate(doc.Root)
	}
	return packDocument(doc, c.cfg)
}

// ChunkBatches chunks doc and groups the result into batches of size chunks.
// The size is checked before any chunking happens.
func (c *Chunker) ChunkBatches(doc *doctree.Document, size int) ([][]string, error) {
	if err := validateBatchSize(size); err != nil {
		return nil, err
	}
	return batch(c.Chunk(doc), size), nil
}
