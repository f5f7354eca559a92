package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/binscope/binscope/decode"
	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/reader"
)

// ParseSchema implements spec.md §4.4: a recursive, best-effort parse
// of g's root field list against r, starting at offset 0. Errors are
// attached to the nodes that produced them; parsing always continues
// with the best-effort cursor.
func ParseSchema(r reader.Reader, g *grammar.Grammar, cfg *Config) *ParsedNode {
	if cfg == nil {
		cfg = NewConfig()
	}
	p := &schemaParser{r: r, g: g, cfg: cfg}
	children, end := p.parseFieldList(g.Fields, 0, nil, "", 0)
	return &ParsedNode{Type: "root", Offset: 0, Length: end, Children: children}
}

type schemaParser struct {
	r   reader.Reader
	g   *grammar.Grammar
	cfg *Config
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// parseFieldList parses fields in order starting at base, maintaining
// a per-struct-scope symbol table for length_from/switch references
// (spec.md §4.4, §5's left-to-right ordering rule). It returns the
// produced nodes and the cursor position after the last field.
func (p *schemaParser) parseFieldList(fields []*grammar.Field, base int64, parentEndian *decode.Endian, pathPrefix string, depth int) ([]*ParsedNode, int64) {
	cursor := base
	symtab := map[string]Value{}
	nodes := make([]*ParsedNode, 0, len(fields))
	for _, f := range fields {
		if p.cfg.cancelled() {
			break
		}
		offset := cursor
		if f.Offset != nil {
			offset = *f.Offset
		}
		path := joinPath(pathPrefix, f.Name)
		node, consumed := p.parseField(f, offset, parentEndian, path, symtab, depth)
		nodes = append(nodes, node)
		if node.Value != nil {
			symtab[f.Name] = node.Value
		}
		cursor = offset + consumed
	}
	return nodes, cursor
}

func (p *schemaParser) parseField(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, symtab map[string]Value, depth int) (*ParsedNode, int64) {
	if depth > p.cfg.MaxDepth {
		return &ParsedNode{Path: path, Offset: offset, Type: string(f.Kind),
			Error: &NodeError{Path: path, Message: "max parse depth exceeded"}}, 0
	}

	switch f.Kind {
	case grammar.KindPrimitive:
		return p.parsePrimitive(f, offset, parentEndian, path, symtab)
	case grammar.KindStruct:
		return p.parseStruct(f, offset, parentEndian, path, depth)
	case grammar.KindArray:
		return p.parseArray(f, offset, parentEndian, path, symtab, depth)
	case grammar.KindTypeRef:
		merged := *grammar.FieldFromTypeDef(p.g.Types[f.TypeName])
		merged.Name = f.Name
		merged.Offset = f.Offset
		return p.parseField(&merged, offset, parentEndian, path, symtab, depth)
	case grammar.KindSwitch:
		return p.parseSwitchField(f, offset, parentEndian, path, symtab, depth)
	default:
		return &ParsedNode{Path: path, Offset: offset, Type: string(f.Kind),
			Error: &NodeError{Path: path, Message: fmt.Sprintf("unsupported field kind %q", f.Kind)}}, 0
	}
}

func (p *schemaParser) parsePrimitive(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, symtab map[string]Value) (*ParsedNode, int64) {
	endian, source := decode.Resolve(f.Endian, f.TypeEndian, parentEndian, p.g.Endian)
	node := &ParsedNode{Path: path, Offset: offset, Type: string(f.Primitive),
		Endian: endian.String(), EndianSource: string(source), ColorOverride: f.Color}

	switch f.Primitive {
	case decode.U8, decode.U16, decode.U32, decode.U64:
		v, w, err := decode.DecodeUint(p.r, offset, f.Primitive, endian)
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		node.Value, node.Length, node.Group = IntValue(v), int64(w), GroupInt
		return node, int64(w)

	case decode.I8, decode.I16, decode.I32, decode.I64:
		v, w, err := decode.DecodeInt(p.r, offset, f.Primitive, endian)
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		node.Value, node.Length, node.Group = IntValue(v), int64(w), GroupInt
		return node, int64(w)

	case decode.F32, decode.F64:
		v, w, err := decode.DecodeFloat(p.r, offset, f.Primitive, endian)
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		node.Value, node.Length, node.Group = FloatValue(v), int64(w), GroupFloat
		return node, int64(w)

	case decode.Bytes:
		length, err := p.resolveLength(f.Length, symtab, path)
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		if length > p.cfg.MaxFieldBytes {
			node.Error = &NodeError{Path: path, Message: fmt.Sprintf("length %d exceeds the field byte cap %d", length, p.cfg.MaxFieldBytes)}
			return node, 0
		}
		raw, n, err := decode.DecodeBytes(p.r, offset, int(length))
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		node.Value, node.Length, node.Group = BytesValue(raw), int64(n), GroupBytes
		if int64(n) < length {
			node.Error = &NodeError{Path: path, Message: fmt.Sprintf("truncated at EOF: read %d of %d bytes", n, length)}
		}
		return node, int64(n)

	case decode.String:
		return p.parseString(f, offset, path, symtab)

	default:
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("unknown primitive kind %q", f.Primitive)}
		return node, 0
	}
}

func (p *schemaParser) parseString(f *grammar.Field, offset int64, path string, symtab map[string]Value) (*ParsedNode, int64) {
	node := &ParsedNode{Path: path, Offset: offset, Type: "string", Group: GroupString, ColorOverride: f.Color}

	if f.NullTerminated {
		maxLen := f.MaxLength
		if maxLen > p.cfg.MaxFieldBytes {
			maxLen = p.cfg.MaxFieldBytes
		}
		res, err := decode.DecodeNullTerminatedString(p.r, offset, int(maxLen), f.Encoding)
		if err != nil {
			node.Error = &NodeError{Path: path, Message: err.Error()}
			return node, 0
		}
		node.Value = StringValue(res.Value)
		node.Length = int64(res.Consumed)
		node.Capped = res.Capped
		return node, int64(res.Consumed)
	}

	length, err := p.resolveLength(f.Length, symtab, path)
	if err != nil {
		node.Error = &NodeError{Path: path, Message: err.Error()}
		return node, 0
	}
	if length > p.cfg.MaxFieldBytes {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("length %d exceeds the field byte cap %d", length, p.cfg.MaxFieldBytes)}
		return node, 0
	}
	stripNUL := f.StripTrailingNUL == nil || *f.StripTrailingNUL
	res, err := decode.DecodeFixedString(p.r, offset, int(length), f.Encoding, stripNUL)
	if err != nil {
		node.Error = &NodeError{Path: path, Message: err.Error()}
		return node, 0
	}
	node.Value = StringValue(res.Value)
	node.Length = int64(res.Consumed)
	if int64(res.Consumed) < length {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("truncated at EOF: read %d of %d bytes", res.Consumed, length)}
	}
	return node, int64(res.Consumed)
}

func (p *schemaParser) parseStruct(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, depth int) (*ParsedNode, int64) {
	childParent := f.StructEndian
	if childParent == nil {
		childParent = parentEndian
	}
	children, end := p.parseFieldList(f.StructFields, offset, childParent, path, depth+1)
	return &ParsedNode{Path: path, Offset: offset, Type: "struct", Children: children,
		Length: end - offset, ColorOverride: f.Color}, end - offset
}

func (p *schemaParser) parseArray(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, symtab map[string]Value, depth int) (*ParsedNode, int64) {
	node := &ParsedNode{Path: path, Offset: offset, Type: "array", ColorOverride: f.Color}

	count, err := p.resolveLength(f.Count, symtab, path)
	if err != nil {
		node.Error = &NodeError{Path: path, Message: err.Error()}
		return node, 0
	}
	if count > int64(p.cfg.MaxRecords) {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("array count %d exceeds the configured record cap", count)}
		return node, 0
	}

	if f.Layout == grammar.LayoutSoA {
		return p.parseArraySoA(f, offset, parentEndian, path, count, depth)
	}
	return p.parseArrayAoS(f, offset, parentEndian, path, count, depth)
}

func (p *schemaParser) parseArrayAoS(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, count int64, depth int) (*ParsedNode, int64) {
	cursor := offset
	children := make([]*ParsedNode, 0, count)
	for i := int64(0); i < count; i++ {
		elemOffset := cursor
		if f.Stride != nil {
			elemOffset = offset + i*(*f.Stride)
		}
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		elem := p.resolvedElement(f)
		elemSymtab := map[string]Value{}
		childNode, consumed := p.parseField(elem, elemOffset, parentEndian, elemPath, elemSymtab, depth+1)
		children = append(children, childNode)
		if f.Stride != nil {
			cursor = offset + (i+1)*(*f.Stride)
		} else {
			cursor = elemOffset + consumed
		}
	}
	end := cursor
	return &ParsedNode{Path: path, Offset: offset, Type: "array", Children: children, Length: end - offset, ColorOverride: f.Color}, end - offset
}

// parseArraySoA implements spec.md §4.4's struct-of-arrays layout: for
// a field list {f1..fk} with resolved element sizes s1..sk and count
// N, column j occupies N consecutive fixed-size elements starting at
// offset + Σ_{m<j}(sm·N).
func (p *schemaParser) parseArraySoA(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, count int64, depth int) (*ParsedNode, int64) {
	elem := p.resolvedElement(f)
	if elem.Kind != grammar.KindStruct {
		node := &ParsedNode{Path: path, Offset: offset, Type: "array",
			Error: &NodeError{Path: path, Message: "layout: soa requires a struct element"}}
		return node, 0
	}

	columnWidths := make([]int64, len(elem.StructFields))
	for j, cf := range elem.StructFields {
		w := staticFieldWidth(cf)
		if w < 0 {
			node := &ParsedNode{Path: path, Offset: offset, Type: "array",
				Error: &NodeError{Path: path, Message: fmt.Sprintf("layout: soa requires fixed-size columns; %q is not fixed-size", cf.Name)}}
			return node, 0
		}
		columnWidths[j] = w
	}

	children := make([]*ParsedNode, count)
	for i := int64(0); i < count; i++ {
		children[i] = &ParsedNode{Path: fmt.Sprintf("%s[%d]", path, i), Offset: offset, Type: "struct"}
	}

	base := offset
	for j, cf := range elem.StructFields {
		for i := int64(0); i < count; i++ {
			elemOffset := base + i*columnWidths[j]
			elemPath := fmt.Sprintf("%s[%d].%s", path, i, cf.Name)
			childNode, _ := p.parseField(cf, elemOffset, parentEndian, elemPath, map[string]Value{}, depth+1)
			children[i].Children = append(children[i].Children, childNode)
		}
		base += columnWidths[j] * count
	}

	end := base
	return &ParsedNode{Path: path, Offset: offset, Type: "array", Children: children, Length: end - offset, ColorOverride: f.Color}, end - offset
}

func (p *schemaParser) resolvedElement(f *grammar.Field) *grammar.Field {
	elem := f.Element
	if elem != nil && elem.Kind == grammar.KindTypeRef {
		merged := *grammar.FieldFromTypeDef(p.g.Types[elem.TypeName])
		merged.Name = elem.Name
		return &merged
	}
	return elem
}

// staticFieldWidth returns a field's fixed byte width when known
// without parsing (primitive width, or a literal bytes/string
// length), or -1 when the width depends on runtime data.
func staticFieldWidth(f *grammar.Field) int64 {
	switch f.Kind {
	case grammar.KindPrimitive:
		if w := decode.Width(f.Primitive); w > 0 {
			return int64(w)
		}
		if f.Length != nil && f.Length.IsLiteral() {
			return *f.Length.Value
		}
		return -1
	default:
		return -1
	}
}

func (p *schemaParser) parseSwitchField(f *grammar.Field, offset int64, parentEndian *decode.Endian, path string, symtab map[string]Value, depth int) (*ParsedNode, int64) {
	node := &ParsedNode{Path: path, Offset: offset, Type: "switch", ColorOverride: f.Color}

	_, fieldName, ok := splitSwitchExpr(f.SwitchExpr)
	if !ok {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("switch 'expr' must be of the form <Type>.<field>, got %q", f.SwitchExpr)}
		return node, 0
	}
	disc, ok := symtab[fieldName]
	if !ok {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("switch discriminator %q is not a sibling in scope", fieldName)}
		return node, 0
	}
	key, ok := discriminatorKey(disc)
	if !ok {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("switch discriminator %q did not decode to an integer", fieldName)}
		return node, 0
	}

	typeName, ok := f.SwitchCases[key]
	if !ok {
		typeName = f.SwitchDefault
	}
	if typeName == "" {
		node.Error = &NodeError{Path: path, Message: fmt.Sprintf("no switch case matches %q and there is no default", key)}
		return node, 0
	}

	merged := *grammar.FieldFromTypeDef(p.g.Types[typeName])
	merged.Name = f.Name
	merged.Offset = f.Offset
	return p.parseField(&merged, offset, parentEndian, path, symtab, depth)
}

func splitSwitchExpr(expr string) (typeName, field string, ok bool) {
	i := strings.LastIndex(expr, ".")
	if i < 0 {
		return "", "", false
	}
	return expr[:i], expr[i+1:], true
}

func discriminatorKey(v Value) (string, bool) {
	switch x := v.(type) {
	case IntValue:
		return strconv.FormatInt(int64(x), 10), true
	default:
		return "", false
	}
}

// resolveLength implements spec.md §4.4's length priority chain:
// literal value first, else a named sibling already in scope.
func (p *schemaParser) resolveLength(l *grammar.Length, symtab map[string]Value, path string) (int64, error) {
	if l == nil {
		return 0, fmt.Errorf("length ref unresolved: no length specified for %s", path)
	}
	if l.IsLiteral() {
		return *l.Value, nil
	}
	v, ok := symtab[l.FromSibling]
	if !ok {
		return 0, fmt.Errorf("length ref unresolved: %q is not a sibling in scope", l.FromSibling)
	}
	iv, ok := v.(IntValue)
	if !ok || iv < 0 {
		return 0, fmt.Errorf("length ref unresolved: %q did not decode to a non-negative integer", l.FromSibling)
	}
	return int64(iv), nil
}
