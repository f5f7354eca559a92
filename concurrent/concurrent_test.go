package concurrent

import (
	"context"
	"testing"

	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/parse"
	"github.com/binscope/binscope/reader"
)

func TestParseAllRunsIndependentJobs(t *testing.T) {
	g, err := grammar.Load(`
fields:
  - name: v
    type: u8
`)
	if err != nil {
		t.Fatalf("grammar.Load: %v", err)
	}

	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{Reader: reader.BytesReader([]byte{byte(i)}), Grammar: g}
	}

	results, err := ParseAll(context.Background(), jobs)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, tree := range results {
		v := findVField(tree)
		if v == nil || v.Value != parse.IntValue(byte(i)) {
			t.Fatalf("job %d: v = %+v, want %d", i, v, i)
		}
	}
}

func findVField(root *parse.ParsedNode) *parse.ParsedNode {
	var found *parse.ParsedNode
	root.Walk(func(n *parse.ParsedNode) {
		if n.Path == "v" {
			found = n
		}
	})
	return found
}
