package span

import "sort"

// Range is a half-open byte range [Offset, Offset+Length).
type Range struct {
	Offset int64
	Length int64
}

func (r Range) End() int64 { return r.Offset + r.Length }

// Coverage is the result of merging leaf spans against a file size,
// per spec.md §4.6: covered and unmapped ranges partition [0, size).
type Coverage struct {
	Covered  []Range
	Unmapped []Range
}

// ComputeCoverage sorts leaves by offset, clips each to [0, size),
// merges overlapping/adjacent ranges into canonical covered ranges,
// and emits the complement in [0, size) as unmapped gaps. The merge
// does not require the input to be pre-sorted or pre-normalized.
func ComputeCoverage(leaves []Span, size int64) Coverage {
	ranges := make([]Range, 0, len(leaves))
	for _, s := range leaves {
		start := s.Offset
		end := s.End()
		if end <= 0 || start >= size {
			continue
		}
		if start < 0 {
			start = 0
		}
		if end > size {
			end = size
		}
		if end > start {
			ranges = append(ranges, Range{Offset: start, Length: end - start})
		}
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Offset < ranges[j].Offset })

	var covered []Range
	for _, r := range ranges {
		if len(covered) > 0 && r.Offset <= covered[len(covered)-1].End() {
			last := &covered[len(covered)-1]
			if r.End() > last.End() {
				last.Length = r.End() - last.Offset
			}
			continue
		}
		covered = append(covered, r)
	}

	var unmapped []Range
	cursor := int64(0)
	for _, r := range covered {
		if r.Offset > cursor {
			unmapped = append(unmapped, Range{Offset: cursor, Length: r.Offset - cursor})
		}
		cursor = r.End()
	}
	if cursor < size {
		unmapped = append(unmapped, Range{Offset: cursor, Length: size - cursor})
	}

	return Coverage{Covered: covered, Unmapped: unmapped}
}
