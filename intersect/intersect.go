// Package intersect combines field spans with diff spans, per
// spec.md §4.8.
package intersect

import (
	"sort"

	"github.com/binscope/binscope/diffengine"
	"github.com/binscope/binscope/span"
)

// FieldChange pairs a field span with the number of bytes within it
// that a diff pass reported as changed.
type FieldChange struct {
	Span         span.Span
	ChangedBytes int64
}

// Compute performs a two-pointer sweep over fields (sorted by
// offset) and diffs (sorted by offset), accumulating changed_bytes
// per field as the sum of overlap widths with diff ranges. Linear in
// the total number of spans, per spec.md §4.8.
func Compute(fields []span.Span, diffs []diffengine.DiffSpan) []FieldChange {
	sortedFields := make([]span.Span, len(fields))
	copy(sortedFields, fields)
	sort.Slice(sortedFields, func(i, j int) bool { return sortedFields[i].Offset < sortedFields[j].Offset })

	sortedDiffs := make([]diffengine.DiffSpan, len(diffs))
	copy(sortedDiffs, diffs)
	sort.Slice(sortedDiffs, func(i, j int) bool { return sortedDiffs[i].Offset < sortedDiffs[j].Offset })

	out := make([]FieldChange, len(sortedFields))
	d := 0
	for i, f := range sortedFields {
		fStart, fEnd := f.Offset, f.End()
		// advance past diffs that end at or before this field starts
		for d < len(sortedDiffs) && sortedDiffs[d].End() <= fStart {
			d++
		}
		var changed int64
		for j := d; j < len(sortedDiffs) && sortedDiffs[j].Offset < fEnd; j++ {
			ds := sortedDiffs[j]
			start := max64(fStart, ds.Offset)
			end := min64(fEnd, ds.End())
			if end > start {
				changed += end - start
			}
		}
		out[i] = FieldChange{Span: f, ChangedBytes: changed}
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
