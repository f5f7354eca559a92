// Package parse implements the two parser cores spec.md §4.4 and §4.5
// describe: a recursive schema-mode decoder and a framed record-stream
// decoder, both built on the reader/decode/grammar packages.
package parse

import "fmt"

// Group classifies a leaf's decoded value for presentation purposes,
// per spec.md §3's Span definition. The core never interprets it
// beyond carrying it through to a Span.
type Group string

const (
	GroupInt     Group = "int"
	GroupFloat   Group = "float"
	GroupString  Group = "string"
	GroupBytes   Group = "bytes"
	GroupUnknown Group = "unknown"
)

// Value is the sum type a ParsedNode leaf carries: exactly one of
// IntValue, FloatValue, StringValue or BytesValue, or nil for a
// container node (struct/array/record).
type Value interface {
	isValue()
}

type IntValue int64

func (IntValue) isValue() {}

type FloatValue float64

func (FloatValue) isValue() {}

type StringValue string

func (StringValue) isValue() {}

type BytesValue []byte

func (BytesValue) isValue() {}

// NodeError is attached to a ParsedNode when decoding that node (or
// one of its descendants) failed or was flagged. Parsing continues
// with the best-effort cursor per spec.md §4.4.
type NodeError struct {
	Path    string
	Message string
}

func (e *NodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParsedNode is one entry of the tree the schema-mode parser builds,
// per spec.md §3.
type ParsedNode struct {
	Path     string
	Offset   int64
	Length   int64
	Type     string
	Value    Value
	Group    Group
	Children []*ParsedNode
	Error    *NodeError

	// Endian and EndianSource record the resolved endianness and which
	// hierarchy level won, per spec.md §4.2. Meaningful only for
	// primitive/numeric leaves.
	Endian       string
	EndianSource string

	// ColorOverride passes through a grammar-declared color hint; the
	// core never interprets it.
	ColorOverride string

	// Capped is set on a null-terminated string leaf whose terminator
	// was not found within max_length (spec.md §4.4); it is
	// informational, not an Error.
	Capped bool
}

// IsLeaf reports whether this node has no children (a primitive,
// bytes, or string field) as opposed to a struct/array container.
func (n *ParsedNode) IsLeaf() bool { return len(n.Children) == 0 }

// Walk calls fn for n and every descendant, pre-order.
func (n *ParsedNode) Walk(fn func(*ParsedNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Flatten collects every leaf with Length > 0 beneath n, in
// left-to-right order, per spec.md §4.6's flattening step.
func Flatten(root *ParsedNode) []*ParsedNode {
	var leaves []*ParsedNode
	root.Walk(func(n *ParsedNode) {
		if n.IsLeaf() && n.Length > 0 {
			leaves = append(leaves, n)
		}
	})
	return leaves
}

// CollectErrors gathers every NodeError in the tree, pre-order.
func CollectErrors(root *ParsedNode) []*NodeError {
	var errs []*NodeError
	root.Walk(func(n *ParsedNode) {
		if n.Error != nil {
			errs = append(errs, n.Error)
		}
	})
	return errs
}
