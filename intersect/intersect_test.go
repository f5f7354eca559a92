package intersect

import (
	"testing"

	"github.com/binscope/binscope/diffengine"
	"github.com/binscope/binscope/span"
)

// TestComputeAccumulatesOverlapWidths covers spec.md §4.8: each
// field's changed_bytes is the sum of overlap widths with diff
// ranges, across possibly multiple diff spans per field.
func TestComputeAccumulatesOverlapWidths(t *testing.T) {
	fields := []span.Span{
		{Path: "a", Offset: 0, Length: 10},  // [0,10)
		{Path: "b", Offset: 10, Length: 10}, // [10,20)
		{Path: "c", Offset: 20, Length: 5},  // [20,25)
	}
	diffs := []diffengine.DiffSpan{
		{Offset: 4, Length: 4},   // [4,8) entirely within 'a'
		{Offset: 9, Length: 3},   // [9,12) straddles a/b: 1 byte in a, 2 in b
		{Offset: 15, Length: 10}, // [15,25) straddles b/c: 5 bytes in b [15,20), 5 in c [20,25)
	}

	got := Compute(fields, diffs)
	want := map[string]int64{"a": 5, "b": 7, "c": 5}
	for _, fc := range got {
		if fc.ChangedBytes != want[fc.Span.Path] {
			t.Fatalf("field %q changed_bytes = %d, want %d", fc.Span.Path, fc.ChangedBytes, want[fc.Span.Path])
		}
	}
}

// TestComputeNoDiffsYieldsZero ensures an empty diff set leaves every
// field's changed_bytes at zero.
func TestComputeNoDiffsYieldsZero(t *testing.T) {
	fields := []span.Span{{Path: "a", Offset: 0, Length: 10}}
	got := Compute(fields, nil)
	if len(got) != 1 || got[0].ChangedBytes != 0 {
		t.Fatalf("got %+v, want a single zero-change field", got)
	}
}

// TestComputeIsLinearOrderIndependent checks the sweep is correct
// regardless of input ordering (Compute sorts internally).
func TestComputeIsLinearOrderIndependent(t *testing.T) {
	fields := []span.Span{
		{Path: "late", Offset: 10, Length: 5},
		{Path: "early", Offset: 0, Length: 5},
	}
	diffs := []diffengine.DiffSpan{
		{Offset: 12, Length: 1},
		{Offset: 2, Length: 1},
	}
	got := Compute(fields, diffs)
	byPath := map[string]int64{}
	for _, fc := range got {
		byPath[fc.Span.Path] = fc.ChangedBytes
	}
	if byPath["early"] != 1 || byPath["late"] != 1 {
		t.Fatalf("got %+v, want each field to see its own 1-byte diff", byPath)
	}
}
