// Package concurrent provides the one ambient concurrency helper
// spec.md §5 allows: independent parses over independent readers may
// run in parallel.
package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/parse"
	"github.com/binscope/binscope/reader"
)

// Job is one independent schema parse to run.
type Job struct {
	Reader  reader.Reader
	Grammar *grammar.Grammar
	Config  *parse.Config
}

// ParseAll runs each job's schema parse concurrently, at most
// GOMAXPROCS at a time, and returns the results in the same order as
// jobs. A reader shared by several jobs is read from several
// goroutines at once. Parse failures are reported inside each
// returned tree, so the returned error is always nil; ctx is not
// consulted by the parses, and cancelling it does not stop them.
func ParseAll(ctx context.Context, jobs []Job) ([]*parse.ParsedNode, error) {
	results := make([]*parse.ParsedNode, len(jobs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = parse.ParseSchema(job.Reader, job.Grammar, job.Config)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
