// Package diffengine computes byte-level diff spans and cross-file
// frequency maps over paged readers, per spec.md §4.7.
package diffengine

import (
	"github.com/binscope/binscope/reader"
)

// DiffSpan is a maximal contiguous byte range where two readers
// differ.
type DiffSpan struct {
	Offset int64
	Length int64
}

func (d DiffSpan) End() int64 { return d.Offset + d.Length }

// DiffStats summarizes a computed diff.
type DiffStats struct {
	Changed int64 // total differing bytes across all spans
	Spans   int
}

// ComputeDiffSpans implements spec.md §4.7: sweep a and b in chunks
// of chunkSize, comparing the common prefix byte-by-byte and keeping
// one open range across chunk boundaries so a change spanning a
// chunk edge merges into a single span. Positions beyond the shorter
// reader are treated as changed. The result does not depend on
// chunkSize.
func ComputeDiffSpans(a, b reader.Reader, chunkSize int) []DiffSpan {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	sizeA, sizeB := a.Size(), b.Size()
	total := sizeA
	if sizeB > total {
		total = sizeB
	}

	var spans []DiffSpan
	var open *DiffSpan

	closeOpen := func() {
		if open != nil {
			spans = append(spans, *open)
			open = nil
		}
	}
	extend := func(pos int64) {
		if open == nil {
			open = &DiffSpan{Offset: pos, Length: 1}
		} else {
			open.Length = pos + 1 - open.Offset
		}
	}

	for chunkStart := int64(0); chunkStart < total; chunkStart += int64(chunkSize) {
		chunkEnd := chunkStart + int64(chunkSize)
		if chunkEnd > total {
			chunkEnd = total
		}
		n := int(chunkEnd - chunkStart)

		bufA, _ := a.ReadAt(chunkStart, n)
		bufB, _ := b.ReadAt(chunkStart, n)

		for i := 0; i < n; i++ {
			pos := chunkStart + int64(i)
			var byteA, byteB byte
			var haveA, haveB bool
			if i < len(bufA) {
				byteA, haveA = bufA[i], true
			}
			if i < len(bufB) {
				byteB, haveB = bufB[i], true
			}
			differs := !haveA || !haveB || byteA != byteB
			if differs {
				extend(pos)
			} else {
				closeOpen()
			}
		}
	}
	closeOpen()
	return spans
}

// Stats summarizes spans into a DiffStats.
func Stats(spans []DiffSpan) DiffStats {
	var changed int64
	for _, s := range spans {
		changed += s.Length
	}
	return DiffStats{Changed: changed, Spans: len(spans)}
}

// ComputeFrequencyMap implements spec.md §4.7: for every byte
// position in [0, max(sizes)), count how many of snapshots differ
// from baseline at that position, capped at 65535 (uint16). A missing
// byte (past a reader's EOF) counts as differing.
func ComputeFrequencyMap(baseline reader.Reader, snapshots []reader.Reader, chunkSize int) []uint16 {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	total := baseline.Size()
	for _, s := range snapshots {
		if s.Size() > total {
			total = s.Size()
		}
	}

	counts := make([]uint16, total)
	for _, snap := range snapshots {
		for _, d := range ComputeDiffSpans(baseline, snap, chunkSize) {
			for off := d.Offset; off < d.End() && off < total; off++ {
				if counts[off] < 65535 {
					counts[off]++
				}
			}
		}
	}
	return counts
}
