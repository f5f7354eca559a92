package grammar

import "github.com/binscope/binscope/decode"

// Format selects between the two grammar shapes spec.md §6 describes.
type Format string

const (
	FormatSchema       Format = "schema"
	FormatRecordStream Format = "record_stream"
)

// FieldKind is the positional kind of a Field, per spec.md §3.
type FieldKind string

const (
	KindPrimitive FieldKind = "primitive"
	KindStruct    FieldKind = "struct"
	KindArray     FieldKind = "array"
	KindTypeRef   FieldKind = "type-reference"
	// KindSwitch generalizes spec.md §3's TypeDef switch variant so a
	// struct field may also resolve (through an alias) to a
	// discriminated type, using the same dispatch machinery as a
	// record-stream record rule (spec.md §4.5). A TypeDef's Kind is
	// never type-reference once the loader has fully resolved it, but
	// may be KindSwitch.
	KindSwitch FieldKind = "switch"
)

// ArrayLayout selects row-major ("array of structs") or column-major
// ("struct of arrays") element placement, per spec.md §4.4.
type ArrayLayout string

const (
	LayoutAoS ArrayLayout = "aos"
	LayoutSoA ArrayLayout = "soa"
)

// Length describes one of the three length sources spec.md §3 ranks in
// priority order: a compile-time literal (decimal or hex, already
// resolved by the loader into Value) or a runtime reference to an
// earlier sibling field's decoded value.
type Length struct {
	Value      *int64 // literal integer or hex string, resolved at load time
	FromSibling string // length_from: <sibling field name>
}

// IsLiteral reports whether the length was fully resolved at load
// time.
func (l *Length) IsLiteral() bool { return l != nil && l.Value != nil }

// TypeDef is a named entry in a Grammar's type registry. Exactly one
// of the Kind-specific attribute groups below is meaningful, selected
// by Kind.
type TypeDef struct {
	Name string
	Kind FieldKind

	// primitive alias
	Primitive        decode.Kind
	Length           *Length
	Encoding         decode.Encoding
	Endian           *decode.Endian
	NullTerminated   bool
	MaxLength        int64
	StripTrailingNUL *bool

	// struct
	StructFields []*Field
	StructEndian *decode.Endian

	// array shorthand ("array of T")
	ElementKind     decode.Kind // set when T is a primitive keyword
	ElementTypeName string      // set when T names a registry entry
	Count           *Length
	Stride          *int64
	Layout          ArrayLayout

	// switch
	SwitchExpr    string
	SwitchCases   map[string]string // normalized decimal-string key -> TypeDef name
	SwitchDefault string

	// Color is an optional presentation hint passed through for the
	// external UI; the core never interprets it.
	Color string
}

// Field is a positional entry within a struct's field list (or the
// schema root). Its attributes mirror TypeDef's, since a field either
// carries them directly or inherits them from an aliased TypeDef,
// merged by the loader (use-site attributes win per attribute, per
// spec.md §4.3 step 4).
type Field struct {
	Name   string
	Offset *int64
	Kind   FieldKind

	// set when Kind == KindTypeRef and the field's shape comes from a
	// registry entry resolved at parse time. The loader produces this
	// only for array elements shaped by `array of <NamedType>`; any
	// other named-type reference is inlined at load time.
	TypeName string

	Primitive      decode.Kind
	Length         *Length
	Encoding       decode.Encoding
	// Endian is this field's own declaration: either an explicit
	// use-site override, or (when the field has no alias indirection)
	// its inline declaration. TypeEndian is only set when the field's
	// type came from a named alias and carries that alias's own
	// default, for use as the "type" level of decode.Resolve's
	// four-level hierarchy when Endian is nil.
	Endian           *decode.Endian
	TypeEndian       *decode.Endian
	NullTerminated   bool
	MaxLength        int64
	StripTrailingNUL *bool

	StructFields []*Field
	StructEndian *decode.Endian

	Element *Field
	Count   *Length
	Stride  *int64
	Layout  ArrayLayout

	// set when Kind == KindSwitch (spec.md §3's TypeDef switch variant,
	// generalized to ordinary fields per the note on FieldKind above).
	SwitchExpr    string
	SwitchCases   map[string]string
	SwitchDefault string

	Color string
}

// Framing describes record-stream repetition, per spec.md §4.5.
type Framing struct {
	RepeatUntilEOF bool
	Count          *int64
}

// SwitchRule dispatches record decoding on a value read from a header
// sub-parse, per spec.md §4.5.
type SwitchRule struct {
	HeaderType string
	FieldName  string
	Cases      map[string]string // normalized decimal-string key -> TypeDef name
	Default    string
}

// RecordRule selects how each record-stream record is decoded: either
// a fixed TypeDef, or a discriminated Switch.
type RecordRule struct {
	Use    string
	Switch *SwitchRule
}

// Grammar is the immutable, loaded result of a grammar document. It is
// either schema-shaped (Fields populated) or record-stream-shaped
// (Framing and Record populated).
type Grammar struct {
	Format  Format
	Endian  *decode.Endian
	Types   map[string]*TypeDef
	Fields  []*Field
	Framing *Framing
	Record  *RecordRule
}
