package viewport

import (
	"testing"

	"github.com/binscope/binscope/parse"
)

func record(offset, size int64, fieldPath string) *parse.ParsedRecord {
	return &parse.ParsedRecord{
		Offset: offset, Size: size, TypeName: "Item",
		Fields: []*parse.ParsedNode{{Path: fieldPath, Offset: offset, Length: size}},
	}
}

// TestSpansOnlyExpandsWindowIntersectingRecords covers spec.md §4.6:
// only records whose range intersects the window are expanded.
func TestSpansOnlyExpandsWindowIntersectingRecords(t *testing.T) {
	records := []*parse.ParsedRecord{
		record(0, 10, "r0.v"),
		record(10, 10, "r1.v"),
		record(20, 10, "r2.v"),
		record(30, 10, "r3.v"),
	}
	m := NewManager(records)

	spans := m.Spans(Window{Start: 15, End: 25})
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2 (r1 and r2)", len(spans))
	}
	paths := map[string]bool{}
	for _, s := range spans {
		paths[s.Path] = true
	}
	if !paths["r1.v"] || !paths["r2.v"] {
		t.Fatalf("spans = %+v, want r1.v and r2.v", spans)
	}
}

// TestSpansCachesUnchangedWindow covers the cache invariant: a second
// call with the same window and no Replace returns the identical
// slice without recomputation.
func TestSpansCachesUnchangedWindow(t *testing.T) {
	records := []*parse.ParsedRecord{record(0, 10, "r0.v")}
	m := NewManager(records)

	win := Window{Start: 0, End: 10}
	first := m.Spans(win)
	second := m.Spans(win)

	if len(first) != len(second) {
		t.Fatalf("cached result differs in length: %d vs %d", len(first), len(second))
	}
	if &first[0] != &second[0] {
		t.Fatal("expected the identical cached slice to be returned for an unchanged window")
	}
}

// TestReplaceInvalidatesCache ensures Replace forces a rebuild even
// for an unchanged window.
func TestReplaceInvalidatesCache(t *testing.T) {
	m := NewManager([]*parse.ParsedRecord{record(0, 10, "old.v")})
	win := Window{Start: 0, End: 10}
	_ = m.Spans(win)

	m.Replace([]*parse.ParsedRecord{record(0, 10, "new.v")})
	spans := m.Spans(win)
	if len(spans) != 1 || spans[0].Path != "new.v" {
		t.Fatalf("spans = %+v, want the replaced record's span", spans)
	}
}
