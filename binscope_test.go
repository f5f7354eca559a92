package binscope

import (
	"testing"

	"github.com/binscope/binscope/parse"
	"github.com/binscope/binscope/reader"
)

const twoByteFields = `
fields:
  - name: a
    type: u8
  - name: b
    type: u8
`

func findVal(n *parse.ParsedNode, path string) parse.Value {
	var found parse.Value
	n.Walk(func(c *parse.ParsedNode) {
		if c.Path == path {
			found = c.Value
		}
	})
	return found
}

// TestRunProfileParsesFullFileWhenSet covers SPEC_FULL.md §9's
// execution_profiles.py supplement: ParseFullFile true reads from the
// start of the underlying reader and the enable flags gate span
// generation and coverage analysis.
func TestRunProfileParsesFullFileWhenSet(t *testing.T) {
	g, err := LoadGrammar(twoByteFields)
	if err != nil {
		t.Fatalf("LoadGrammar: %v", err)
	}
	r := reader.BytesReader([]byte{10, 20, 30, 40})

	res := RunProfile(r, g, ExecutionProfile{
		ParseFullFile:          true,
		EnableSpanGeneration:   true,
		EnableCoverageAnalysis: true,
	}, nil)

	if v := findVal(res.Tree, "a"); v != parse.IntValue(10) {
		t.Fatalf("a = %v, want 10", v)
	}
	if len(res.Spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(res.Spans))
	}
	if len(res.Coverage.Unmapped) == 0 {
		t.Fatal("expected an unmapped tail past byte 2")
	}
}

// TestRunProfileWindowsByOffsetAndLimit covers the offset/limit
// fields: with ParseFullFile false, the parser only ever sees
// [Offset, Offset+Limit) of the underlying reader, re-based to 0.
func TestRunProfileWindowsByOffsetAndLimit(t *testing.T) {
	g, err := LoadGrammar(twoByteFields)
	if err != nil {
		t.Fatalf("LoadGrammar: %v", err)
	}
	r := reader.BytesReader([]byte{10, 20, 30, 40})

	res := RunProfile(r, g, ExecutionProfile{
		Offset: 2,
		Limit:  2,
	}, nil)

	if v := findVal(res.Tree, "a"); v != parse.IntValue(30) {
		t.Fatalf("a = %v, want 30 (byte at offset 2)", v)
	}
	if v := findVal(res.Tree, "b"); v != parse.IntValue(40) {
		t.Fatalf("b = %v, want 40 (byte at offset 3)", v)
	}
}

// TestRunProfileCachesWhenEnabled covers cache_parse_results: a
// second call with an identical profile returns the cached result
// without re-parsing, even against a different reader.
func TestRunProfileCachesWhenEnabled(t *testing.T) {
	g, err := LoadGrammar(twoByteFields)
	if err != nil {
		t.Fatalf("LoadGrammar: %v", err)
	}
	cache := NewProfileCache()
	profile := ExecutionProfile{Name: "tab1", ParseFullFile: true, CacheParseResults: true}

	first := RunProfile(reader.BytesReader([]byte{1, 2}), g, profile, cache)
	second := RunProfile(reader.BytesReader([]byte{99, 99}), g, profile, cache)

	if first != second {
		t.Fatal("expected the second RunProfile call to hit the cache and return the same *ProfileResult")
	}
}
