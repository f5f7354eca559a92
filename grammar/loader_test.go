package grammar

import (
	"strings"
	"testing"

	"github.com/binscope/binscope/decode"
)

func mustLoad(t *testing.T, text string) *Grammar {
	t.Helper()
	g, err := Load(text)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return g
}

func TestLoadSchemaShape(t *testing.T) {
	text := `
endian: little
fields:
  - name: magic
    type: bytes
    length: 4
  - name: ver
    type: u16
`
	g := mustLoad(t, text)
	if g.Format != FormatSchema {
		t.Fatalf("format = %v, want schema", g.Format)
	}
	if len(g.Fields) != 2 || g.Fields[1].Primitive != decode.U16 {
		t.Fatalf("fields = %+v", g.Fields)
	}
}

// TestTypeAliasChaining covers DESIGN NOTES §9's fixed-point alias walk.
func TestTypeAliasChaining(t *testing.T) {
	text := `
types:
  Byte4:
    type: bytes
    length: 4
  Magic:
    type: Byte4
fields:
  - name: m
    type: Magic
`
	g := mustLoad(t, text)
	if g.Fields[0].Primitive != decode.Bytes || g.Fields[0].Length == nil || *g.Fields[0].Length.Value != 4 {
		t.Fatalf("alias chain did not resolve: %+v", g.Fields[0])
	}
}

func TestTypeCycleIsError(t *testing.T) {
	text := `
types:
  A:
    type: B
  B:
    type: A
fields:
  - name: f
    type: A
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("error %v does not mention cycle", err)
	}
}

func TestUnknownTypeReferenceIsError(t *testing.T) {
	text := `
fields:
  - name: f
    type: NoSuchType
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected unknown-type error")
	}
}

func TestNullTerminatedRequiresMaxLength(t *testing.T) {
	text := `
fields:
  - name: s
    type: string
    null_terminated: true
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected validation error for missing max_length")
	}
}

func TestArrayShorthandRequiresLength(t *testing.T) {
	text := `
fields:
  - name: items
    type: array of u8
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected validation error for missing length")
	}
}

func TestArrayOfForbidsConcurrentElement(t *testing.T) {
	text := `
fields:
  - name: items
    type: array of u8
    length: 3
    element:
      type: u16
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected validation error for concurrent element key")
	}
}

// TestStaticOffsetOverlapRejectedAtLoad covers scenario S6 from
// spec.md §8 for the case checkOffsetOverlap can actually see: both
// siblings have statically-known widths. The length_from variant of
// S6 is covered at flatten time in span.TestFromTreeDetectsDynamicOverlap.
func TestStaticOffsetOverlapRejectedAtLoad(t *testing.T) {
	text := `
fields:
  - name: a
    type: u32
    offset: 0
  - name: b
    type: u16
    offset: 2
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected overlap error")
	}
	if !strings.Contains(err.Error(), "Overlap") && !strings.Contains(err.Error(), "overlap") {
		t.Fatalf("error %v does not mention overlap", err)
	}
}

func TestSwitchCaseKeyNormalization(t *testing.T) {
	text := `
format: record_stream
framing:
  repeat: until_eof
types:
  Header:
    fields:
      - name: type_raw
        type: u16
  NTRecord:
    fields:
      - name: id
        type: u16
  GenericRecord:
    fields:
      - name: id
        type: u16
record:
  switch:
    expr: Header.type_raw
    cases:
      "0x4E54": NTRecord
      "20000": GenericRecord
    default: GenericRecord
`
	g := mustLoad(t, text)
	if g.Record == nil || g.Record.Switch == nil {
		t.Fatal("expected a switch record rule")
	}
	if g.Record.Switch.Cases["20052"] != "NTRecord" {
		t.Fatalf("hex key not normalized: %+v", g.Record.Switch.Cases)
	}
	if g.Record.Switch.Cases["20000"] != "GenericRecord" {
		t.Fatalf("decimal key not normalized: %+v", g.Record.Switch.Cases)
	}
}

func TestSwitchWithoutDefaultIsError(t *testing.T) {
	text := `
format: record_stream
framing:
  repeat: until_eof
types:
  Header:
    fields:
      - name: t
        type: u8
  A:
    fields:
      - name: x
        type: u8
record:
  switch:
    expr: Header.t
    cases:
      "1": A
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected error for switch with no default")
	}
}

func TestAggregatesMultipleErrors(t *testing.T) {
	text := `
fields:
  - name: a
    type: string
    null_terminated: true
  - name: b
    type: array of u8
`
	_, err := Load(text)
	if err == nil {
		t.Fatal("expected aggregated errors")
	}
	se, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("error is %T, want *SchemaError", err)
	}
	if len(se.Errors) < 2 {
		t.Fatalf("expected the loader to aggregate both problems, got %v", se.Errors)
	}
}
