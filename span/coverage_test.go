package span

import "testing"

// TestComputeCoveragePartitions covers spec.md §8's universal
// invariant: covered ∪ unmapped partitions [0, size), covered ranges
// are sorted and disjoint, and unmapped is exactly the complement.
func TestComputeCoveragePartitions(t *testing.T) {
	leaves := []Span{
		leaf("a", 0, 4),
		leaf("b", 10, 5),
		leaf("c", 14, 2), // overlaps b: [14,16) vs [10,15)
	}
	cov := ComputeCoverage(leaves, 20)

	wantCovered := []Range{{Offset: 0, Length: 4}, {Offset: 10, Length: 6}}
	if len(cov.Covered) != len(wantCovered) {
		t.Fatalf("covered = %+v, want %+v", cov.Covered, wantCovered)
	}
	for i, r := range cov.Covered {
		if r != wantCovered[i] {
			t.Fatalf("covered[%d] = %+v, want %+v", i, r, wantCovered[i])
		}
	}

	// disjoint and sorted
	for i := 1; i < len(cov.Covered); i++ {
		if cov.Covered[i].Offset < cov.Covered[i-1].End() {
			t.Fatalf("covered ranges are not disjoint/sorted: %+v", cov.Covered)
		}
	}

	// covered + unmapped reconstructs exactly [0, size)
	var total int64
	for _, r := range cov.Covered {
		total += r.Length
	}
	for _, r := range cov.Unmapped {
		total += r.Length
	}
	if total != 20 {
		t.Fatalf("covered+unmapped total = %d, want 20", total)
	}

	wantUnmapped := []Range{{Offset: 4, Length: 6}, {Offset: 16, Length: 4}}
	if len(cov.Unmapped) != len(wantUnmapped) {
		t.Fatalf("unmapped = %+v, want %+v", cov.Unmapped, wantUnmapped)
	}
	for i, r := range cov.Unmapped {
		if r != wantUnmapped[i] {
			t.Fatalf("unmapped[%d] = %+v, want %+v", i, r, wantUnmapped[i])
		}
	}
}

// TestComputeCoverageIdempotentOnUnsortedInput checks the merge does
// not require pre-sorted/pre-normalized input, per spec.md §4.6.
func TestComputeCoverageIdempotentOnUnsortedInput(t *testing.T) {
	unsorted := []Span{leaf("b", 10, 5), leaf("a", 0, 4)}
	sorted := []Span{leaf("a", 0, 4), leaf("b", 10, 5)}

	c1 := ComputeCoverage(unsorted, 20)
	c2 := ComputeCoverage(sorted, 20)
	if len(c1.Covered) != len(c2.Covered) || len(c1.Unmapped) != len(c2.Unmapped) {
		t.Fatalf("coverage depends on input order: %+v vs %+v", c1, c2)
	}
}

// TestComputeCoverageClipsOutOfRangeLeaves exercises clipping to
// [0, size) for leaves extending past the file or starting negative.
func TestComputeCoverageClipsOutOfRangeLeaves(t *testing.T) {
	leaves := []Span{leaf("past-eof", 18, 10)}
	cov := ComputeCoverage(leaves, 20)
	if len(cov.Covered) != 1 || cov.Covered[0] != (Range{Offset: 18, Length: 2}) {
		t.Fatalf("covered = %+v, want a single range clipped to [18,20)", cov.Covered)
	}
}
