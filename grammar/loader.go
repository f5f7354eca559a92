package grammar

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/binscope/binscope/decode"
)

var arrayOfPattern = regexp.MustCompile(`^array of (.+)$`)

var primitiveKeywords = map[string]decode.Kind{
	"u8": decode.U8, "u16": decode.U16, "u32": decode.U32, "u64": decode.U64,
	"i8": decode.I8, "i16": decode.I16, "i32": decode.I32, "i64": decode.I64,
	"f32": decode.F32, "f64": decode.F64,
	"bytes": decode.Bytes, "string": decode.String,
}

// Load parses a grammar document written in the YAML-shaped text
// format spec.md §6 defines, returning the resolved Grammar. A
// malformed document or one that fails validation returns a
// *SchemaError bundling every problem found.
func Load(text string) (*Grammar, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &SchemaError{Errors: []string{"yaml: " + err.Error()}}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	l := &loader{doc: doc, c: &collector{}, registry: map[string]*TypeDef{}}
	g := l.load()
	if err := l.c.asError(); err != nil {
		return nil, err
	}
	return g, nil
}

type loader struct {
	doc      map[string]any
	c        *collector
	rawTypes map[string]any
	registry map[string]*TypeDef
}

func (l *loader) load() *Grammar {
	g := &Grammar{Types: l.registry}

	if v, ok := stringVal(l.doc["format"]); ok && v == "record_stream" {
		g.Format = FormatRecordStream
	} else {
		g.Format = FormatSchema
	}

	g.Endian = l.parseEndianKey(l.doc, "endian")

	l.rawTypes, _ = l.doc["types"].(map[string]any)
	l.buildRegistry()

	switch g.Format {
	case FormatSchema:
		fieldsVal, ok := l.doc["fields"]
		if !ok {
			l.c.add("schema grammar requires a top-level 'fields' list")
			break
		}
		g.Fields = l.parseFieldList(fieldsVal, nil)
	case FormatRecordStream:
		g.Framing = l.parseFraming()
		g.Record = l.parseRecordRule()
	}

	l.checkOffsetOverlap(g.Fields, "")
	return g
}

// --- registry construction -------------------------------------------------

func (l *loader) buildRegistry() {
	names := maps.Keys(l.rawTypes)
	sort.Strings(names)
	for _, name := range names {
		if _, ok := l.registry[name]; ok {
			continue
		}
		l.resolveNamedType(name, nil)
	}
}

func (l *loader) resolveNamedType(name string, visiting []string) *TypeDef {
	if td, ok := l.registry[name]; ok {
		return td
	}
	for _, v := range visiting {
		if v == name {
			l.c.add("type cycle detected: %s -> %s", strings.Join(visiting, " -> "), name)
			stub := &TypeDef{Name: name, Kind: KindPrimitive, Primitive: decode.Bytes}
			l.registry[name] = stub
			return stub
		}
	}
	raw, ok := l.rawTypes[name].(map[string]any)
	if !ok {
		l.c.add("unknown type reference: %s", name)
		return nil
	}

	// Add this name to the visiting path before recursing so a
	// self-reference inside this type's own definition is caught as a
	// cycle rather than infinite recursion.
	nextVisiting := append(append([]string{}, visiting...), name)
	sh := l.resolveShape(raw, name, nextVisiting)
	td := sh.toTypeDef(name)
	l.registry[name] = td
	return td
}

// shape is the fully-resolved, kind-tagged attribute bag shared by
// TypeDef and Field construction, so alias resolution logic is written
// exactly once (spec.md §4.3 step 4: use-site attributes merge with,
// and override, alias defaults).
type shape struct {
	kind FieldKind

	primitive      decode.Kind
	length         *Length
	encoding       decode.Encoding
	endian         *decode.Endian // own/inline declaration
	aliasEndian    *decode.Endian // alias's default, set only via shapeFromTypeDef
	nullTerminated bool
	maxLength        int64
	stripTrailingNUL *bool

	structFields []*Field
	structEndian *decode.Endian

	elementKind     decode.Kind
	elementTypeName string
	count           *Length
	stride          *int64
	layout          ArrayLayout

	switchExpr    string
	switchCases   map[string]string
	switchDefault string

	color string
}

func shapeFromTypeDef(td *TypeDef) shape {
	if td == nil {
		return shape{}
	}
	return shape{
		kind: td.Kind,

		primitive:        td.Primitive,
		length:           td.Length,
		encoding:         td.Encoding,
		aliasEndian:      td.Endian,
		nullTerminated:   td.NullTerminated,
		maxLength:        td.MaxLength,
		stripTrailingNUL: td.StripTrailingNUL,

		structFields: td.StructFields,
		structEndian: td.StructEndian,

		elementKind:     td.ElementKind,
		elementTypeName: td.ElementTypeName,
		count:           td.Count,
		stride:          td.Stride,
		layout:          td.Layout,

		switchExpr:    td.SwitchExpr,
		switchCases:   td.SwitchCases,
		switchDefault: td.SwitchDefault,

		color: td.Color,
	}
}

func (s shape) toTypeDef(name string) *TypeDef {
	endian := s.endian
	if endian == nil {
		endian = s.aliasEndian // chained alias: inherit the referenced type's default
	}
	return &TypeDef{
		Name: name, Kind: s.kind,
		Primitive: s.primitive, Length: s.length, Encoding: s.encoding,
		Endian: endian, NullTerminated: s.nullTerminated, MaxLength: s.maxLength,
		StripTrailingNUL: s.stripTrailingNUL,
		StructFields:     s.structFields, StructEndian: s.structEndian,
		ElementKind: s.elementKind, ElementTypeName: s.elementTypeName,
		Count: s.count, Stride: s.stride, Layout: s.layout,
		SwitchExpr: s.switchExpr, SwitchCases: s.switchCases, SwitchDefault: s.switchDefault,
		Color: s.color,
	}
}

func (s shape) toField(name string, offset *int64) *Field {
	return &Field{
		Name: name, Offset: offset, Kind: s.kind,
		Primitive: s.primitive, Length: s.length, Encoding: s.encoding,
		Endian: s.endian, TypeEndian: s.aliasEndian,
		NullTerminated: s.nullTerminated, MaxLength: s.maxLength,
		StripTrailingNUL: s.stripTrailingNUL,
		StructFields:     s.structFields, StructEndian: s.structEndian,
		Element: s.elementAsField(), Count: s.count, Stride: s.stride, Layout: s.layout,
		SwitchExpr: s.switchExpr, SwitchCases: s.switchCases, SwitchDefault: s.switchDefault,
		Color: s.color,
	}
}

func (s shape) elementAsField() *Field {
	if s.kind != KindArray {
		return nil
	}
	if s.elementTypeName != "" {
		return &Field{Name: "element", Kind: KindTypeRef, TypeName: s.elementTypeName}
	}
	return &Field{Name: "element", Kind: KindPrimitive, Primitive: s.elementKind}
}

// resolveShape interprets one raw YAML mapping (a types: entry, or an
// inline field/element definition) into a fully-resolved shape,
// merging alias defaults with use-site overrides and chasing `type:`
// references through the registry.
func (l *loader) resolveShape(raw map[string]any, ctxName string, visiting []string) shape {
	var sh shape

	if switchRaw, ok := raw["switch"].(map[string]any); ok {
		return l.resolveSwitchShape(switchRaw, ctxName)
	}

	if fieldsVal, hasFields := raw["fields"]; hasFields {
		sh.kind = KindStruct
		sh.structFields = l.parseFieldList(fieldsVal, visiting)
		sh.structEndian = l.parseEndianKey(raw, "endian")
		sh.color, _ = stringVal(raw["color"])
		return sh
	}

	typeVal, hasType := stringVal(raw["type"])
	if !hasType {
		l.c.add("%s: missing 'type' (and no 'fields' or 'switch')", ctxName)
		return sh
	}

	if primKind, ok := primitiveKeywords[typeVal]; ok {
		sh.kind = KindPrimitive
		sh.primitive = primKind
		l.fillPrimitiveAttrs(&sh, raw, ctxName)
		return sh
	}

	if m := arrayOfPattern.FindStringSubmatch(typeVal); m != nil {
		elemName := strings.TrimSpace(m[1])
		if _, hasElement := raw["element"]; hasElement {
			l.c.add("%s: 'array of %s' forbids a concurrent 'element' key", ctxName, elemName)
		}
		sh.kind = KindArray
		if primKind, ok := primitiveKeywords[elemName]; ok {
			sh.elementKind = primKind
		} else {
			sh.elementTypeName = elemName
			l.resolveNamedType(elemName, visiting)
		}
		count, ok := l.parseLength(raw, "length", "length_from")
		if !ok {
			l.c.add("%s: array shorthand requires 'length' or 'length_from'", ctxName)
		}
		sh.count = count
		sh.stride = parseStride(raw)
		sh.layout = parseLayout(raw)
		sh.color, _ = stringVal(raw["color"])
		return sh
	}

	// Reference to another named type: start from its resolved shape,
	// then overlay any attributes this use-site also specifies.
	referenced := l.resolveNamedType(typeVal, visiting)
	sh = shapeFromTypeDef(referenced)
	l.overlay(&sh, raw, ctxName)
	return sh
}

func (l *loader) resolveSwitchShape(switchRaw map[string]any, ctxName string) shape {
	sh := shape{kind: KindSwitch}
	expr, _ := stringVal(switchRaw["expr"])
	headerType, fieldName, ok := splitExpr(expr)
	if !ok {
		l.c.add("%s: switch 'expr' must be of the form <Type>.<field>, got %q", ctxName, expr)
	}
	sh.switchExpr = expr
	_ = headerType
	_ = fieldName

	casesRaw, _ := switchRaw["cases"].(map[string]any)
	sh.switchCases = map[string]string{}
	for key, val := range casesRaw {
		norm, ok := normalizeSwitchKey(key)
		if !ok {
			l.c.add("%s: switch case key %q is neither an integer nor a quoted hex literal", ctxName, key)
			continue
		}
		name, _ := stringVal(val)
		sh.switchCases[norm] = name
	}
	sh.switchDefault, _ = stringVal(switchRaw["default"])
	if sh.switchDefault == "" {
		l.c.add("%s: switch has no 'default' case", ctxName)
	}
	return sh
}

func splitExpr(expr string) (typeName, field string, ok bool) {
	idx := strings.LastIndex(expr, ".")
	if idx <= 0 || idx == len(expr)-1 {
		return "", "", false
	}
	return expr[:idx], expr[idx+1:], true
}

// normalizeSwitchKey implements DESIGN NOTES §9(c): switch case keys
// mix integers and quoted hex; both are normalized to a canonical
// decimal string before comparison.
func normalizeSwitchKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	v, err := parseIntLiteral(key)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(v, 10), true
}

func parseIntLiteral(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func (l *loader) fillPrimitiveAttrs(sh *shape, raw map[string]any, ctxName string) {
	if length, ok := l.parseLength(raw, "length", "length_from"); ok {
		sh.length = length
	}
	if enc, ok := stringVal(raw["encoding"]); ok {
		sh.encoding = decode.Encoding(enc)
	}
	sh.endian = l.parseEndianKey(raw, "endian")
	sh.nullTerminated, _ = boolVal(raw["null_terminated"])
	if ml, ok := intVal(raw["max_length"]); ok {
		sh.maxLength = ml
	}
	if strip, present := raw["strip_trailing_nul"]; present {
		b, _ := boolVal(strip)
		sh.stripTrailingNUL = &b
	}
	sh.color, _ = stringVal(raw["color"])

	if sh.nullTerminated && sh.maxLength == 0 {
		l.c.add("%s: null_terminated string requires 'max_length'", ctxName)
	}
}

// overlay applies any attribute explicitly present in raw on top of an
// already-resolved alias shape, per spec.md §4.3 step 4.
func (l *loader) overlay(sh *shape, raw map[string]any, ctxName string) {
	if length, ok := l.parseLength(raw, "length", "length_from"); ok {
		sh.length = length
	}
	if enc, ok := stringVal(raw["encoding"]); ok {
		sh.encoding = decode.Encoding(enc)
	}
	if e := l.parseEndianKey(raw, "endian"); e != nil {
		sh.endian = e
	}
	if _, present := raw["null_terminated"]; present {
		sh.nullTerminated, _ = boolVal(raw["null_terminated"])
	}
	if ml, ok := intVal(raw["max_length"]); ok {
		sh.maxLength = ml
	}
	if strip, present := raw["strip_trailing_nul"]; present {
		b, _ := boolVal(strip)
		sh.stripTrailingNUL = &b
	}
	if c, ok := stringVal(raw["color"]); ok {
		sh.color = c
	}
	if count, ok := l.parseLength(raw, "length", "length_from"); ok && sh.kind == KindArray {
		sh.count = count
	}
	if stride := parseStride(raw); stride != nil {
		sh.stride = stride
	}
	if layout := parseLayout(raw); layout != "" {
		sh.layout = layout
	}

	if sh.kind == KindPrimitive && sh.nullTerminated && sh.maxLength == 0 {
		l.c.add("%s: null_terminated string requires 'max_length'", ctxName)
	}
}

// --- field lists ------------------------------------------------------------

func (l *loader) parseFieldList(raw any, visiting []string) []*Field {
	items, ok := raw.([]any)
	if !ok {
		l.c.add("'fields' must be a list")
		return nil
	}
	fields := make([]*Field, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			l.c.add("field entry must be a mapping")
			continue
		}
		name, _ := stringVal(m["name"])
		if name == "" {
			l.c.add("field entry missing 'name'")
			continue
		}

		var offset *int64
		if v, ok := intVal(m["offset"]); ok {
			if v < 0 {
				l.c.add("field %s: offset must be non-negative, got %d", name, v)
			} else {
				offset = &v
			}
		}

		sh := l.resolveShape(m, name, visiting)
		fields = append(fields, sh.toField(name, offset))
	}
	return fields
}

// checkOffsetOverlap is an early, best-effort pass at spec.md §3's
// "sibling fields in a struct do not overlap unless explicit offsets
// are given" validation: it only sees fields whose byte length is
// statically known (fixed-width primitives and fixed-length
// bytes/arrays), so it can reject an obviously-bad grammar before a
// single byte is read. A field sized by length_from can only be
// checked once its length is resolved against real data; that
// authoritative check runs at flatten time over the parsed tree
// (span.FromTree, spec.md §4.11), not here.
func (l *loader) checkOffsetOverlap(fields []*Field, structName string) {
	type span struct {
		name        string
		start, end  int64
		haveOffsets bool
	}
	var explicit []span
	for _, f := range fields {
		if f.Kind == KindStruct {
			l.checkOffsetOverlap(f.StructFields, f.Name)
		}
		if f.Offset == nil {
			continue
		}
		width := staticWidth(f)
		if width < 0 {
			continue
		}
		explicit = append(explicit, span{name: f.Name, start: *f.Offset, end: *f.Offset + width, haveOffsets: true})
	}
	sort.Slice(explicit, func(i, j int) bool { return explicit[i].start < explicit[j].start })
	for i := 1; i < len(explicit); i++ {
		if explicit[i].start < explicit[i-1].end {
			l.c.add("overlap: field %q [%d,%d) overlaps field %q [%d,%d)",
				explicit[i].name, explicit[i].start, explicit[i].end,
				explicit[i-1].name, explicit[i-1].start, explicit[i-1].end)
		}
	}
}

// staticWidth returns the field's byte width when it is knowable
// without parsing (fixed primitive widths, literal-length bytes), or
// -1 when it depends on runtime data.
func staticWidth(f *Field) int64 {
	switch f.Kind {
	case KindPrimitive:
		if w := decode.Width(f.Primitive); w > 0 {
			return int64(w)
		}
		if f.Length != nil && f.Length.IsLiteral() {
			return *f.Length.Value
		}
	case KindArray:
		if f.Stride != nil && f.Count != nil && f.Count.IsLiteral() {
			return *f.Stride * *f.Count.Value
		}
	}
	return -1
}

// --- record-stream ----------------------------------------------------------

func (l *loader) parseFraming() *Framing {
	raw, ok := l.doc["framing"].(map[string]any)
	if !ok {
		l.c.add("record_stream grammar requires a 'framing' section")
		return nil
	}
	f := &Framing{}
	if v, ok := stringVal(raw["repeat"]); ok && v == "until_eof" {
		f.RepeatUntilEOF = true
	}
	if v, ok := intVal(raw["count"]); ok {
		f.Count = &v
	}
	if !f.RepeatUntilEOF && f.Count == nil {
		l.c.add("framing must specify either 'repeat: until_eof' or 'count: N'")
	}
	return f
}

func (l *loader) parseRecordRule() *RecordRule {
	raw, ok := l.doc["record"].(map[string]any)
	if !ok {
		l.c.add("record_stream grammar requires a 'record' section")
		return nil
	}
	rr := &RecordRule{}
	if use, ok := stringVal(raw["use"]); ok {
		rr.Use = use
		l.resolveNamedType(use, nil)
		return rr
	}
	switchRaw, ok := raw["switch"].(map[string]any)
	if !ok {
		l.c.add("record section requires either 'use' or 'switch'")
		return rr
	}
	sh := l.resolveSwitchShape(switchRaw, "record")
	headerType, fieldName, _ := splitExpr(sh.switchExpr)
	rr.Switch = &SwitchRule{
		HeaderType: headerType,
		FieldName:  fieldName,
		Cases:      sh.switchCases,
		Default:    sh.switchDefault,
	}
	l.resolveNamedType(headerType, nil)
	for _, name := range sh.switchCases {
		l.resolveNamedType(name, nil)
	}
	if sh.switchDefault != "" {
		l.resolveNamedType(sh.switchDefault, nil)
	}
	return rr
}

// --- scalar helpers ----------------------------------------------------------

func (l *loader) parseEndianKey(m map[string]any, key string) *decode.Endian {
	v, ok := stringVal(m[key])
	if !ok {
		return nil
	}
	switch v {
	case "little":
		return decode.Ptr(decode.Little)
	case "big":
		return decode.Ptr(decode.Big)
	default:
		l.c.add("invalid endian value %q", v)
		return nil
	}
}

// parseLength resolves a length/count attribute against the priority
// order from spec.md §3: literal integer, hex string, then
// length_from a sibling field name.
func (l *loader) parseLength(m map[string]any, literalKey, fromKey string) (*Length, bool) {
	if v, ok := intVal(m[literalKey]); ok {
		return &Length{Value: &v}, true
	}
	if from, ok := stringVal(m[fromKey]); ok && from != "" {
		return &Length{FromSibling: from}, true
	}
	return nil, false
}

func parseStride(m map[string]any) *int64 {
	if v, ok := intVal(m["stride"]); ok {
		return &v
	}
	return nil
}

func parseLayout(m map[string]any) ArrayLayout {
	v, ok := stringVal(m["layout"])
	if !ok {
		return ""
	}
	if v == "soa" {
		return LayoutSoA
	}
	return LayoutAoS
}

func stringVal(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case nil:
		return "", false
	default:
		return "", false
	}
}

func boolVal(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// intVal accepts both YAML integers and quoted decimal/hex strings, so
// that "length: 0x10" and "length: \"0x10\"" are both accepted, per
// spec.md §6's literal conventions.
func intVal(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case string:
		n, err := parseIntLiteral(x)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
