package parse

import (
	"fmt"

	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/reader"
)

// ParsedRecord is one record emitted by record-stream parsing, per
// spec.md §4.5 step 3.
type ParsedRecord struct {
	Offset   int64
	Size     int64
	TypeName string
	Fields   []*ParsedNode
	Error    *NodeError
}

// RecordIterator is a pull-style iterator over a record-stream parse,
// per DESIGN NOTES §9: callers may window or paginate without
// materializing the full record list. It keeps a cumulative offset
// and a terminal flag internally.
type RecordIterator struct {
	p         *streamParser
	cursor    int64
	size      int64
	limit     int64 // -1 means unbounded
	emitted   int64
	done      bool
	fatal     *FatalStreamError
}

// ParseStream implements spec.md §4.5: repeated record decoding at
// the running cursor until EOF, the grammar's framing count, or
// cfg.MaxRecords is reached. Records are produced lazily as Next is
// called.
func ParseStream(r reader.Reader, g *grammar.Grammar, cfg *Config) *RecordIterator {
	if cfg == nil {
		cfg = NewConfig()
	}
	limit := int64(-1)
	if g.Framing != nil && g.Framing.Count != nil {
		limit = *g.Framing.Count
	}
	return &RecordIterator{
		p:      &streamParser{r: r, g: g, cfg: cfg},
		size:   r.Size(),
		limit:  limit,
	}
}

// Next returns the next record, or ok=false once the stream is
// exhausted (EOF, framing count reached, MaxRecords reached, or
// cancellation). After a FatalStreamError, Next returns ok=false and
// Err reports it.
func (it *RecordIterator) Next() (rec *ParsedRecord, ok bool) {
	if it.done {
		return nil, false
	}
	if it.cursor >= it.size {
		it.done = true
		return nil, false
	}
	if it.limit >= 0 && it.emitted >= it.limit {
		it.done = true
		return nil, false
	}
	if it.emitted >= it.p.cfg.MaxRecords {
		it.done = true
		return nil, false
	}
	if it.p.cfg.cancelled() {
		it.done = true
		return nil, false
	}

	r, fatal := it.p.parseOneRecord(it.cursor)
	if fatal != nil {
		it.fatal = fatal
		it.done = true
		return nil, false
	}

	it.emitted++
	it.cursor = r.Offset + r.Size
	if r.Size <= 0 {
		it.fatal = &FatalStreamError{Offset: r.Offset, Message: "record consumed zero bytes"}
		it.done = true
		return nil, false
	}
	return r, true
}

// Err returns the terminal FatalStreamError, if the stream stopped
// because of one rather than exhaustion.
func (it *RecordIterator) Err() *FatalStreamError { return it.fatal }

// Drain consumes the remainder of the iterator into a slice, for
// callers (the viewport manager, batch CLI output) that need the
// full record set materialized.
func (it *RecordIterator) Drain() ([]*ParsedRecord, *FatalStreamError) {
	var out []*ParsedRecord
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out, it.fatal
}

type streamParser struct {
	r   reader.Reader
	g   *grammar.Grammar
	cfg *Config
}

// parseOneRecord decodes the record starting at cursor, resolving a
// switch discriminator via a speculative header sub-parse when the
// grammar's record rule requires it (spec.md §4.5 step 1). A partial
// trailing record is emitted with its node error set, not treated as
// fatal.
func (p *streamParser) parseOneRecord(cursor int64) (*ParsedRecord, *FatalStreamError) {
	rule := p.g.Record
	if rule == nil {
		return nil, &FatalStreamError{Offset: cursor, Message: "grammar has no record rule"}
	}

	var typeName string
	if rule.Use != "" {
		typeName = rule.Use
	} else if rule.Switch != nil {
		var err error
		typeName, err = p.resolveSwitchTypeName(rule.Switch, cursor)
		if err != nil {
			return nil, &FatalStreamError{Offset: cursor, Message: err.Error()}
		}
	} else {
		return nil, &FatalStreamError{Offset: cursor, Message: "record rule has neither 'use' nor 'switch'"}
	}

	td := p.g.Types[typeName]
	if td == nil {
		return nil, &FatalStreamError{Offset: cursor, Message: fmt.Sprintf("record type %q is not in the registry", typeName)}
	}

	sp := &schemaParser{r: p.r, g: p.g, cfg: p.cfg}
	root := grammar.FieldFromTypeDef(td)
	children, end := sp.parseFieldList(root.StructFields, cursor, root.StructEndian, "", 0)

	rec := &ParsedRecord{Offset: cursor, Size: end - cursor, TypeName: typeName, Fields: children}
	for _, c := range children {
		if c.Error != nil {
			rec.Error = &NodeError{Path: c.Path, Message: "truncated record: " + c.Error.Message}
			break
		}
	}
	return rec, nil
}

// resolveSwitchTypeName sub-parses the header type at cursor without
// advancing the stream cursor, reads the discriminator field, and
// selects a case (or the default), per spec.md §4.5 step 1.
func (p *streamParser) resolveSwitchTypeName(sw *grammar.SwitchRule, cursor int64) (string, error) {
	headerTD := p.g.Types[sw.HeaderType]
	if headerTD == nil {
		return "", fmt.Errorf("switch header type %q is not in the registry", sw.HeaderType)
	}
	sp := &schemaParser{r: p.r, g: p.g, cfg: p.cfg}
	header := grammar.FieldFromTypeDef(headerTD)
	children, _ := sp.parseFieldList(header.StructFields, cursor, header.StructEndian, "", 0)

	var disc Value
	for _, c := range children {
		if c.Path == sw.FieldName {
			disc = c.Value
			break
		}
	}
	if disc == nil {
		return "", fmt.Errorf("switch discriminator field %q not found in header %q", sw.FieldName, sw.HeaderType)
	}
	key, ok := discriminatorKey(disc)
	if !ok {
		return "", fmt.Errorf("switch discriminator %q did not decode to an integer", sw.FieldName)
	}

	if name, ok := sw.Cases[key]; ok {
		return name, nil
	}
	if sw.Default != "" {
		return sw.Default, nil
	}
	return "", fmt.Errorf("no switch case matches %q and there is no default", key)
}
