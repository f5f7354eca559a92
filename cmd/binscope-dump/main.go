// Command binscope-dump is a small demo program, in the style of the
// teacher's demo/* programs: it loads a grammar document and a binary
// file, parses the file against the grammar, and prints the resulting
// tree plus a coverage summary. It is not the product CLI (that
// remains an external collaborator per spec.md §1) -- just enough to
// exercise the package from the command line.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/binscope/binscope"
	"github.com/binscope/binscope/parse"
	"github.com/binscope/binscope/span"
)

func main() {
	args := os.Args[1:]
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: binscope-dump grammar.yaml file.bin")
		os.Exit(1)
	}
	grammarPath, filePath := args[0], args[1]

	text, err := os.ReadFile(grammarPath)
	if err != nil {
		log.Fatal(err)
	}
	g, err := binscope.LoadGrammar(string(text))
	if err != nil {
		log.Fatal(err)
	}

	if _, err := os.Stat(filePath); err != nil {
		fmt.Fprintln(os.Stderr, filePath, "not found")
		os.Exit(2)
	}
	r, err := binscope.OpenReader(filePath)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	tree := binscope.ParseSchema(r, g)
	printNode(tree, 0)

	leaves, overlaps := span.FromTree(tree)
	cov := binscope.ComputeCoverage(leaves, r.Size())
	fmt.Printf("\ncoverage: %d covered range(s), %d unmapped range(s) over %d bytes\n",
		len(cov.Covered), len(cov.Unmapped), r.Size())
	for _, errNode := range parse.CollectErrors(tree) {
		fmt.Fprintln(os.Stderr, "error:", errNode.Error())
	}
	for _, o := range overlaps {
		fmt.Fprintln(os.Stderr, "error:", o.Error())
	}
}

func printNode(n *parse.ParsedNode, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%s%s @0x%x (%d bytes) %s\n", indent, displayName(n), n.Offset, n.Length, valueString(n))
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}

func displayName(n *parse.ParsedNode) string {
	if n.Path == "" {
		return "root"
	}
	return n.Path
}

func valueString(n *parse.ParsedNode) string {
	if n.Error != nil {
		return "<error: " + n.Error.Message + ">"
	}
	switch v := n.Value.(type) {
	case parse.IntValue:
		return fmt.Sprintf("= %d", int64(v))
	case parse.FloatValue:
		return fmt.Sprintf("= %g", float64(v))
	case parse.StringValue:
		return fmt.Sprintf("= %q", string(v))
	case parse.BytesValue:
		return fmt.Sprintf("= % x", []byte(v))
	default:
		return ""
	}
}
