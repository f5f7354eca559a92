package grammar

// FieldFromTypeDef builds a standalone Field carrying the same
// decode-relevant attributes as td, for callers (the parse package)
// that need to resolve a KindTypeRef Field — currently only array
// elements shaped by the `array of <NamedType>` shorthand, since the
// loader inlines any other named-type reference eagerly (spec.md
// §4.3 step 4).
func FieldFromTypeDef(td *TypeDef) *Field {
	if td == nil {
		return &Field{Kind: KindPrimitive, Primitive: "bytes"}
	}
	return &Field{
		Name: td.Name, Kind: td.Kind,

		Primitive: td.Primitive, Length: td.Length, Encoding: td.Encoding,
		TypeEndian: td.Endian, NullTerminated: td.NullTerminated, MaxLength: td.MaxLength,
		StripTrailingNUL: td.StripTrailingNUL,

		StructFields: td.StructFields, StructEndian: td.StructEndian,

		Element: elementFieldForTypeDef(td), Count: td.Count, Stride: td.Stride, Layout: td.Layout,

		SwitchExpr: td.SwitchExpr, SwitchCases: td.SwitchCases, SwitchDefault: td.SwitchDefault,

		Color: td.Color,
	}
}

func elementFieldForTypeDef(td *TypeDef) *Field {
	if td.Kind != KindArray {
		return nil
	}
	if td.ElementTypeName != "" {
		return &Field{Name: "element", Kind: KindTypeRef, TypeName: td.ElementTypeName}
	}
	return &Field{Name: "element", Kind: KindPrimitive, Primitive: td.ElementKind}
}
