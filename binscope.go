// Package binscope is the public facade spec.md §6 describes: the
// only surface the surrounding UI, agent workbench, and CLI wrapper
// are expected to depend on. It re-exports the leaf packages'
// constructors under the flat names spec.md's "Runtime API surface"
// lists, without adding behavior of its own.
package binscope

import (
	"context"
	"fmt"
	"sync"

	"github.com/binscope/binscope/concurrent"
	"github.com/binscope/binscope/decode"
	"github.com/binscope/binscope/diffengine"
	"github.com/binscope/binscope/grammar"
	"github.com/binscope/binscope/intersect"
	"github.com/binscope/binscope/parse"
	"github.com/binscope/binscope/reader"
	"github.com/binscope/binscope/span"
)

// OpenReader opens path for random-access reading, per spec.md §6's
// `open_reader(path) -> Reader`.
func OpenReader(path string) (*reader.PagedReader, error) {
	return reader.Open(path)
}

// LoadGrammar parses text into a Grammar, per spec.md §6's
// `load_grammar(text) -> Grammar | SchemaError`.
func LoadGrammar(text string) (*grammar.Grammar, error) {
	return grammar.Load(text)
}

// ParseSchema runs schema-mode parsing, per spec.md §6's
// `parse_schema(reader, grammar) -> {tree, leaves, errors}`. The tree
// is always returned, even when incomplete; call parse.Flatten and
// parse.CollectErrors on it for the leaves/errors projections.
func ParseSchema(r reader.Reader, g *grammar.Grammar, opts ...parse.Option) *parse.ParsedNode {
	return parse.ParseSchema(r, g, parse.NewConfig(opts...))
}

// ParseStream runs record-stream-mode parsing, per spec.md §6's
// `parse_stream(reader, grammar) -> iterator<ParsedRecord>`.
func ParseStream(r reader.Reader, g *grammar.Grammar, opts ...parse.Option) *parse.RecordIterator {
	return parse.ParseStream(r, g, parse.NewConfig(opts...))
}

// BuildSpanIndex flattens leaves into a binary-searchable index, per
// spec.md §6's `build_span_index(leaves) -> SpanIndex`.
func BuildSpanIndex(leaves []span.Span) *span.Index {
	return span.NewIndex(leaves)
}

// ComputeCoverage partitions [0, size) into covered and unmapped
// ranges, per spec.md §6's `compute_coverage(leaves, size) ->
// {covered, unmapped}`.
func ComputeCoverage(leaves []span.Span, size int64) span.Coverage {
	return span.ComputeCoverage(leaves, size)
}

// ComputeDiff returns the merged changed-byte ranges between a and b,
// per spec.md §6's `compute_diff(a, b) -> [Span]`.
func ComputeDiff(a, b reader.Reader, chunkSize int) []diffengine.DiffSpan {
	return diffengine.ComputeDiffSpans(a, b, chunkSize)
}

// DiffStats summarizes a computed diff, per spec.md §6's
// `diff_stats(a, b, spans) -> stats`.
func DiffStats(spans []diffengine.DiffSpan) diffengine.DiffStats {
	return diffengine.Stats(spans)
}

// ComputeFrequency returns the per-byte snapshot-disagreement counts
// against baseline, per spec.md §6's `compute_frequency(baseline,
// snapshots) -> (counts, stats)`. It returns the counts only; no
// stats value is computed.
func ComputeFrequency(baseline reader.Reader, snapshots []reader.Reader, chunkSize int) []uint16 {
	return diffengine.ComputeFrequencyMap(baseline, snapshots, chunkSize)
}

// Intersect combines field spans with diff spans, per spec.md §6's
// `intersect(field_spans, diff_spans) -> map<path, {changed, bytes}>`.
func Intersect(fieldSpans []span.Span, diffSpans []diffengine.DiffSpan) []intersect.FieldChange {
	return intersect.Compute(fieldSpans, diffSpans)
}

// ParseAllConcurrently exercises spec.md §5's "independent parses on
// independent readers may run in parallel" allowance across a batch
// of (reader, grammar) pairs.
func ParseAllConcurrently(ctx context.Context, jobs []concurrent.Job) ([]*parse.ParsedNode, error) {
	return concurrent.ParseAll(ctx, jobs)
}

// ResolveEndian re-exports decode's four-level endian hierarchy, per
// spec.md §4.2, for callers that need to preview resolution without
// running a full parse (e.g. a grammar editor's live endian preview).
func ResolveEndian(field, typ, parent, root *decode.Endian) (decode.Endian, decode.Source) {
	return decode.Resolve(field, typ, parent, root)
}

// ExecutionProfile bundles the per-invocation execution parameters
// the original carried in a per-tab ExecutionProfile dataclass
// (SPEC_FULL.md §9's execution_profiles.py supplement,
// _examples/original_source/src/hexmap/core/execution_profiles.py):
// where to start, how much to read, and which downstream analyses to
// run. It never configures parsing semantics -- those come from the
// grammar alone, exactly as the original docstring states.
type ExecutionProfile struct {
	Name                   string
	Offset                 int64
	Limit                  int64 // 0 means unbounded
	MaxRecords             int64 // 0 keeps parse's default record cap
	ParseFullFile          bool
	EnableCoverageAnalysis bool
	EnableSpanGeneration   bool
	CacheParseResults      bool
}

// ProfileResult holds what RunProfile produced, gated by the
// profile's enable flags: Spans/Overlaps are only populated when
// EnableSpanGeneration or EnableCoverageAnalysis is set, and Coverage
// only when EnableCoverageAnalysis is set.
type ProfileResult struct {
	Tree     *parse.ParsedNode
	Spans    []span.Span
	Overlaps []*span.OverlapError
	Coverage span.Coverage
}

// ProfileCache memoizes RunProfile results per profile, mirroring the
// original's cache_parse_results flag: a cache hit skips reparsing a
// tab whose execution window hasn't changed. Invalidating it when the
// underlying reader's contents change is the caller's responsibility,
// the same single-slot-per-key trade-off viewport.Manager makes for
// its own cache.
type ProfileCache struct {
	mu      sync.Mutex
	results map[string]*ProfileResult
}

// NewProfileCache returns an empty ProfileCache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{results: map[string]*ProfileResult{}}
}

func profileCacheKey(p ExecutionProfile) string {
	return fmt.Sprintf("%s|%d|%d|%d|%t|%t|%t", p.Name, p.Offset, p.Limit, p.MaxRecords, p.ParseFullFile,
		p.EnableCoverageAnalysis, p.EnableSpanGeneration)
}

// RunProfile runs a schema parse under profile against g. When
// profile.ParseFullFile is false, the parser only sees r's
// [Offset, Offset+Limit) region. Span generation and coverage
// analysis each run only when their corresponding flag is set. When
// profile.CacheParseResults is set and cache is non-nil, a result
// already computed for an identical profile is returned without
// re-parsing.
func RunProfile(r reader.Reader, g *grammar.Grammar, profile ExecutionProfile, cache *ProfileCache) *ProfileResult {
	if profile.CacheParseResults && cache != nil {
		cache.mu.Lock()
		cached, ok := cache.results[profileCacheKey(profile)]
		cache.mu.Unlock()
		if ok {
			return cached
		}
	}

	view := r
	if !profile.ParseFullFile {
		view = reader.NewWindow(r, profile.Offset, profile.Limit)
	}

	var opts []parse.Option
	if profile.MaxRecords > 0 {
		opts = append(opts, parse.WithMaxRecords(profile.MaxRecords))
	}
	res := &ProfileResult{Tree: parse.ParseSchema(view, g, parse.NewConfig(opts...))}

	if profile.EnableSpanGeneration || profile.EnableCoverageAnalysis {
		res.Spans, res.Overlaps = span.FromTree(res.Tree)
	}
	if profile.EnableCoverageAnalysis {
		res.Coverage = span.ComputeCoverage(res.Spans, view.Size())
	}

	if profile.CacheParseResults && cache != nil {
		cache.mu.Lock()
		cache.results[profileCacheKey(profile)] = res
		cache.mu.Unlock()
	}
	return res
}
