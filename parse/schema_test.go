package parse

import (
	"strings"
	"testing"

	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/reader"
)

func mustLoadGrammar(t *testing.T, text string) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Load(text)
	if err != nil {
		t.Fatalf("grammar.Load() error = %v", err)
	}
	return g
}

func findPath(root *ParsedNode, path string) *ParsedNode {
	var found *ParsedNode
	root.Walk(func(n *ParsedNode) {
		if n.Path == path {
			found = n
		}
	})
	return found
}

// TestParseStructAndArray covers spec.md §8 scenario S1: a header
// struct, an explicitly-offset count, and a length_from array whose
// element count comes from that earlier sibling.
func TestParseStructAndArray(t *testing.T) {
	text := `
endian: little
types:
  Item:
    fields:
      - name: id
        type: u8
      - name: qty
        type: u8
fields:
  - name: header
    fields:
      - name: magic
        type: bytes
        length: 4
      - name: ver
        type: u16
  - name: count
    type: u8
    offset: 0x30
  - name: items
    type: array of Item
    length_from: count
    offset: 0x40
`
	g := mustLoadGrammar(t, text)

	buf := make([]byte, 0x46)
	copy(buf[0:4], "MAGC")
	buf[4], buf[5] = 5, 0 // ver = 5 little-endian
	buf[0x30] = 3         // count = 3
	items := []byte{1, 9, 2, 8, 3, 7}
	copy(buf[0x40:], items)

	tree := ParseSchema(reader.BytesReader(buf), g, nil)
	if errs := CollectErrors(tree); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	ver := findPath(tree, "header.ver")
	if ver == nil || ver.Value != IntValue(5) {
		t.Fatalf("header.ver = %+v, want 5", ver)
	}

	qty2 := findPath(tree, "items[2].qty")
	if qty2 == nil || qty2.Value != IntValue(7) {
		t.Fatalf("items[2].qty = %+v, want 7", qty2)
	}
	if qty2.Offset != 0x40+4+1 {
		t.Fatalf("items[2].qty offset = %#x, want %#x", qty2.Offset, 0x40+4+1)
	}
}

// TestParseNullTerminatedString covers spec.md §8 scenario S2.
func TestParseNullTerminatedString(t *testing.T) {
	text := `
fields:
  - name: name
    type: string
    null_terminated: true
    max_length: 8
    offset: 0x10
`
	g := mustLoadGrammar(t, text)

	buf := make([]byte, 0x20)
	copy(buf[0x10:], "HELLO\x00\xff\xff")

	tree := ParseSchema(reader.BytesReader(buf), g, nil)
	name := findPath(tree, "name")
	if name == nil {
		t.Fatal("name field not found")
	}
	if name.Error != nil {
		t.Fatalf("unexpected error: %v", name.Error)
	}
	if name.Value != StringValue("HELLO") {
		t.Fatalf("name = %+v, want HELLO", name.Value)
	}
	if name.Length != 6 {
		t.Fatalf("consumed length = %d, want 6", name.Length)
	}
	if name.Capped {
		t.Fatal("name should not be capped: terminator was found")
	}
}

// TestParseNullTerminatedStringCapped exercises the no-terminator path.
func TestParseNullTerminatedStringCapped(t *testing.T) {
	text := `
fields:
  - name: name
    type: string
    null_terminated: true
    max_length: 4
`
	g := mustLoadGrammar(t, text)
	tree := ParseSchema(reader.BytesReader([]byte("ABCD")), g, nil)
	name := findPath(tree, "name")
	if !name.Capped {
		t.Fatal("expected Capped = true when no terminator is found within max_length")
	}
	if name.Length != 4 {
		t.Fatalf("consumed length = %d, want 4", name.Length)
	}
}

// TestUnresolvedLengthReference covers spec.md §8 scenario S5: a
// length_from reference to a name that is not a sibling in scope.
func TestUnresolvedLengthReference(t *testing.T) {
	text := `
fields:
  - name: data
    type: bytes
    length_from: rows_count
`
	g := mustLoadGrammar(t, text)
	tree := ParseSchema(reader.BytesReader([]byte{1, 2, 3, 4}), g, nil)

	data := findPath(tree, "data")
	if data == nil || data.Error == nil {
		t.Fatalf("expected a NodeError on data, got %+v", data)
	}
	if !strings.Contains(data.Error.Message, "length ref unresolved") {
		t.Fatalf("error = %q, want it to mention 'length ref unresolved'", data.Error.Message)
	}
}

// TestStaticOverlapIsRejectedAtLoad covers spec.md §8 scenario S6 for
// two explicitly-offset siblings whose static byte ranges overlap --
// caught before a single byte is parsed. The length_from variant,
// which grammar.Load cannot see statically, is covered at flatten
// time by span.TestFromTreeDetectsDynamicOverlap.
func TestStaticOverlapIsRejectedAtLoad(t *testing.T) {
	text := `
fields:
  - name: a
    type: u32
    offset: 0
  - name: b
    type: u16
    offset: 2
`
	_, err := grammar.Load(text)
	if err == nil {
		t.Fatal("expected a SchemaError for overlapping fields")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "overlap") {
		t.Fatalf("error = %q, want it to mention overlap", err.Error())
	}
}

// TestSafetyCapRejectsOversizedField exercises spec.md §3's
// configurable length cap.
func TestSafetyCapRejectsOversizedField(t *testing.T) {
	text := `
fields:
  - name: blob
    type: bytes
    length: 100
`
	g := mustLoadGrammar(t, text)
	cfg := NewConfig(WithMaxFieldBytes(10))
	tree := ParseSchema(reader.BytesReader(make([]byte, 200)), g, cfg)

	blob := findPath(tree, "blob")
	if blob == nil || blob.Error == nil {
		t.Fatalf("expected a NodeError when length exceeds the configured cap, got %+v", blob)
	}
}

// TestSoALayoutInterleavesByColumn covers spec.md §4.4's struct-of-
// arrays layout.
func TestSoALayoutInterleavesByColumn(t *testing.T) {
	text := `
types:
  Point:
    fields:
      - name: x
        type: u8
      - name: y
        type: u8
fields:
  - name: points
    type: array of Point
    length: 3
    layout: soa
`
	g := mustLoadGrammar(t, text)
	// column-major: x0 x1 x2 y0 y1 y2
	buf := []byte{10, 11, 12, 20, 21, 22}
	tree := ParseSchema(reader.BytesReader(buf), g, nil)

	y1 := findPath(tree, "points[1].y")
	if y1 == nil || y1.Value != IntValue(21) {
		t.Fatalf("points[1].y = %+v, want 21", y1)
	}
	if y1.Offset != 4 {
		t.Fatalf("points[1].y offset = %d, want 4", y1.Offset)
	}
}

// TestSwitchFieldDispatchesOnSibling exercises the struct-field form
// of switch dispatch (KindSwitch), as distinct from record-stream
// dispatch covered in stream_test.go.
func TestSwitchFieldDispatchesOnSibling(t *testing.T) {
	text := `
types:
  Header:
    fields:
      - name: tag
        type: u8
  A:
    fields:
      - name: val
        type: u8
  B:
    fields:
      - name: val
        type: u16
fields:
  - name: tag
    type: u8
  - name: body
    switch:
      expr: Header.tag
      cases:
        "1": A
        "2": B
      default: A
`
	g := mustLoadGrammar(t, text)
	tree := ParseSchema(reader.BytesReader([]byte{2, 0x34, 0x12}), g, nil)

	val := findPath(tree, "body.val")
	if val == nil || val.Value != IntValue(0x1234) {
		t.Fatalf("body.val = %+v, want 0x1234 (case 2 selects type B)", val)
	}
}
