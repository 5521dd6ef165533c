package chunker

import (
	"strings"

	"github.com/dgallion1/docchunk/internal/doctree"
)

// TagSet is a case-insensitive set of element or class names.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet, lowercasing and trimming each name. Blank names
// are ignored.
func NewTagSet(names ...string) TagSet {
	s := make(TagSet, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Has reports whether name is in the set, ignoring case.
func (s TagSet) Has(name string) bool {
	if len(s) == 0 || name == "" {
		return false
	}
	_, ok := s[strings.ToLower(name)]
	return ok
}

// DefaultExcludedTags are elements whose content is never chunked.
var DefaultExcludedTags = []string{"noscript", "script", "style"}

// DefaultSectionBreakTags end a greedy sibling run even when the merged text
// would still fit the budget.
var DefaultSectionBreakTags = []string{
	"article", "br", "div", "footer",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"header", "hr", "main", "nav",
}

// ExclusionPolicy decides which markup nodes are dropped with their subtree.
type ExclusionPolicy struct {
	Tags    TagSet
	Classes TagSet
}

// DefaultExclusionPolicy excludes script, style and noscript, and no classes.
func DefaultExclusionPolicy() ExclusionPolicy {
	return ExclusionPolicy{Tags: NewTagSet(DefaultExcludedTags...), Classes: NewTagSet()}
}

// Excludes reports whether n is a comment, has an excluded tag, or carries an
// excluded class.
func (p ExclusionPolicy) Excludes(n *doctree.Node) bool {
	switch n.Kind {
	case doctree.KindComment:
		return true
	case doctree.KindElement:
		if p.Tags.Has(n.Tag) {
			return true
		}
		for _, c := range n.Classes() {
			if p.Classes.Has(c) {
				return true
			}
		}
	}
	return false
}

// Aggregator turns a markup tree into passages. Small adjacent subtrees are
// merged up to MaxWords; a subtree that fits the budget as a whole is kept
// as one unit so its parent can keep merging it.
type Aggregator struct {
	MaxWords      int
	Greedy        bool                       // Merge consecutive small siblings into one passage.
	IsExcluded    func(n *doctree.Node) bool // nil excludes nothing but comments.
	SectionBreaks TagSet
}

// NewAggregator returns an Aggregator with the default exclusion policy and
// section-break tags and greedy sibling merging enabled.
func NewAggregator(maxWords int) *Aggregator {
	return &Aggregator{
		MaxWords:      maxWords,
		Greedy:        true,
		IsExcluded:    DefaultExclusionPolicy().Excludes,
		SectionBreaks: NewTagSet(DefaultSectionBreakTags...),
	}
}

// Aggregate walks root post-order and returns its passages in document order.
// A nil root or a fully excluded tree yields no passages.
func (a *Aggregator) Aggregate(root *doctree.Node) ([]string, error) {
	if err := validateMaxWords(a.MaxWords); err != nil {
		return nil, err
	}
	return a.aggregate(root), nil
}

func (a *Aggregator) aggregate(root *doctree.Node) []string {
	if root == nil {
		return nil
	}
	u := a.visit(root, nil)
	if len(u.passages) > 0 {
		return u.passages
	}
	if p := u.passage(); p != "" {
		return []string{p}
	}
	return nil
}

// aggregateUnit is the working value built for one visited node. Segments
// hold the whole subtree text while it still fits; passages are filled only
// once the subtree had to split.
type aggregateUnit struct {
	tag      string
	segments []string
	words    int
	passages []string
}

// add appends other's segments. Units without text are ignored.
func (u *aggregateUnit) add(other *aggregateUnit) {
	if len(other.segments) == 0 {
		return
	}
	u.segments = append(u.segments, other.segments...)
	u.words += other.words
}

func (u *aggregateUnit) passage() string {
	return strings.TrimSpace(strings.Join(u.segments, " "))
}

// flushInto appends u's text to passages when it is not blank.
func (u *aggregateUnit) flushInto(passages []string) []string {
	if p := u.passage(); p != "" {
		passages = append(passages, p)
	}
	return passages
}

func (u *aggregateUnit) clone() *aggregateUnit {
	return &aggregateUnit{
		tag:      u.tag,
		segments: append([]string(nil), u.segments...),
		words:    u.words,
	}
}

func (a *Aggregator) excluded(n *doctree.Node) bool {
	if n.Kind == doctree.KindComment {
		return true
	}
	return a.IsExcluded != nil && a.IsExcluded(n)
}

func (a *Aggregator) visit(n, parent *doctree.Node) *aggregateUnit {
	unit := &aggregateUnit{tag: n.Tag}
	if a.excluded(n) {
		return unit
	}

	if n.Kind == doctree.KindText {
		if parent != nil && parent.Kind == doctree.KindDocument {
			return unit
		}
		if text := strings.TrimSpace(n.Text); text != "" {
			unit.segments = append(unit.segments, text)
			unit.words = CountWords(text)
		}
		return unit
	}

	whole := &aggregateUnit{}
	greedy := &aggregateUnit{}
	var passages []string
	mergeable := true

	for _, c := range n.Children {
		child := a.visit(c, n)

		if len(child.passages) > 0 {
			mergeable = false
			if a.Greedy {
				passages = greedy.flushInto(passages)
				greedy = &aggregateUnit{}
			}
			passages = append(passages, child.passages...)
			continue
		}

		whole.add(child)
		if !a.Greedy {
			passages = child.flushInto(passages)
			continue
		}
		if !a.SectionBreaks.Has(child.tag) && greedy.words+child.words <= a.MaxWords {
			greedy.add(child)
			continue
		}
		passages = greedy.flushInto(passages)
		greedy = child.clone()
	}
	if a.Greedy {
		passages = greedy.flushInto(passages)
	}

	if !mergeable || unit.words+whole.words > a.MaxWords {
		unit.passages = unit.flushInto(nil)
		unit.passages = append(unit.passages, passages...)
		return unit
	}

	unit.add(whole)
	return unit
}
