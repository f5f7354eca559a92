// Package span flattens a parse tree into sorted leaf spans and
// answers point and range queries over them, per spec.md §4.6.
package span

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/binscope/binscope/parse"
)

func compareOffset(a, b Span) int {
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

// Span is a leaf projection of a ParsedNode, per spec.md §3.
type Span struct {
	Offset          int64
	Length          int64
	Path            string
	Group           parse.Group
	EffectiveEndian string
	EndianSource    string
	ColorOverride   string
}

func (s Span) End() int64 { return s.Offset + s.Length }

// OverlapError flags two sibling ranges within the same struct/array
// scope whose resolved byte ranges overlap, per spec.md §3 and §4.11.
// Unlike grammar.Load's load-time check (grammar/loader.go), which
// only sees statically-known widths, this one runs against the
// parser's actually-resolved offsets and lengths, so it also catches
// a length_from-sized field that dynamically collides with a later
// explicit-offset sibling.
type OverlapError struct {
	A, B         string
	AStart, AEnd int64
	BStart, BEnd int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlap: field %q [%d,%d) overlaps field %q [%d,%d)",
		e.A, e.AStart, e.AEnd, e.B, e.BStart, e.BEnd)
}

// FromTree flattens root's leaves (length > 0) into Spans, in
// left-to-right order, and separately reports any overlapping sibling
// ranges found within each struct/array scope while walking the same
// tree. Spans are always returned in full, even when overlaps are
// reported (spec.md §4.11: "report as validation-level errors while
// still producing spans").
func FromTree(root *parse.ParsedNode) ([]Span, []*OverlapError) {
	leaves := parse.Flatten(root)
	spans := make([]Span, 0, len(leaves))
	for _, n := range leaves {
		spans = append(spans, Span{
			Offset:          n.Offset,
			Length:          n.Length,
			Path:            n.Path,
			Group:           n.Group,
			EffectiveEndian: n.Endian,
			EndianSource:    n.EndianSource,
			ColorOverride:   n.ColorOverride,
		})
	}
	return spans, checkOverlap(root)
}

// checkOverlap walks the tree and, for every container node, checks
// its direct children's ranges against each other -- the "single
// struct scope" spec.md §4.11 describes. A nested struct or array
// child is treated as one opaque range at its parent's scope; its own
// children are checked separately when the walk reaches it.
func checkOverlap(root *parse.ParsedNode) []*OverlapError {
	var errs []*OverlapError
	var walk func(n *parse.ParsedNode)
	walk = func(n *parse.ParsedNode) {
		errs = append(errs, siblingOverlaps(n.Children)...)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return errs
}

type namedRange struct {
	path       string
	start, end int64
}

func siblingOverlaps(children []*parse.ParsedNode) []*OverlapError {
	ranges := make([]namedRange, 0, len(children))
	for _, c := range children {
		if c.Length <= 0 {
			continue
		}
		ranges = append(ranges, namedRange{c.Path, c.Offset, c.Offset + c.Length})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	var errs []*OverlapError
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start < ranges[i-1].end {
			errs = append(errs, &OverlapError{
				A: ranges[i-1].path, AStart: ranges[i-1].start, AEnd: ranges[i-1].end,
				B: ranges[i].path, BStart: ranges[i].start, BEnd: ranges[i].end,
			})
		}
	}
	return errs
}

// Index supports binary-search point queries over a sorted span set,
// per spec.md §4.6.
type Index struct {
	spans  []Span
	starts []int64
}

// NewIndex sorts spans by offset and builds the parallel starts
// array used for binary search.
func NewIndex(spans []Span) *Index {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	slices.SortFunc(sorted, compareOffset)

	starts := make([]int64, len(sorted))
	for i, s := range sorted {
		starts[i] = s.Offset
	}
	return &Index{spans: sorted, starts: starts}
}

// Len returns the number of spans in the index.
func (ix *Index) Len() int { return len(ix.spans) }

// All returns the sorted span slice.
func (ix *Index) All() []Span { return ix.spans }

// Find returns the span owning offset, or false if no span covers
// it. When spans overlap, the first match by start offset wins, per
// spec.md §4.6.
func (ix *Index) Find(offset int64) (Span, bool) {
	// upper-bound: index of first start strictly greater than offset.
	i := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset })
	i--
	if i < 0 {
		return Span{}, false
	}
	s := ix.spans[i]
	if offset >= s.Offset && offset < s.End() {
		return s, true
	}
	return Span{}, false
}
