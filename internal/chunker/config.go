package chunker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument reports a caller contract violation such as a
	// non-positive word budget or batch size.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedGranularity reports an unrecognized granularity value.
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
)

// Granularity is the atomic unit used for linear packing.
type Granularity int

const (
	GranularityWord Granularity = iota + 1
	GranularitySentence
	GranularityParagraph
	GranularityPage
)

func (g Granularity) String() string {
	switch g {
	case GranularityWord:
		return "word"
	case GranularitySentence:
		return "sentence"
	case GranularityParagraph:
		return "paragraph"
	case GranularityPage:
		return "page"
	}
	return fmt.Sprintf("granularity(%d)", int(g))
}

// Valid reports whether g is one of the known granularities.
func (g Granularity) Valid() bool {
	return g >= GranularityWord && g <= GranularityPage
}

// ParseGranularity converts a case-insensitive name into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "words":
		return GranularityWord, nil
	case "sentence", "sentences":
		return GranularitySentence, nil
	case "paragraph", "paragraphs":
		return GranularityParagraph, nil
	case "page", "pages":
		return GranularityPage, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, s)
}

// Config is the word budget and granularity requested for a chunking call.
type Config struct {
	MaxWords    int         // Word budget per chunk.
	Granularity Granularity // Unit used by the linear packer.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWords:    200,
		Granularity: GranularityParagraph,
	}
}

// Validate checks the configuration before any input is touched.
func (c Config) Validate() error {
	if err := validateMaxWords(c.MaxWords); err != nil {
		return err
	}
	if !c.Granularity.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedGranularity, c.Granularity)
	}
	return nil
}

func validateMaxWords(maxWords int) error {
	if maxWords <= 0 {
		return fmt.Errorf("%w: max words per chunk must be positive, got %d", ErrInvalidArgument, maxWords)
	}
	return nil
}
