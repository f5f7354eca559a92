// Package search implements forward byte search over a reader, per
// spec.md §4.9.
package search

import (
	"bytes"

	"github.com/binscope/binscope/reader"
)

const defaultChunkSize = 64 * 1024

// FindFrom searches r for needle starting at or after start, scanning
// in chunks with an overlap of len(needle)-1 bytes so a match
// straddling a chunk boundary is not missed. It returns the first
// matching offset ≥ start, or ok=false if none exists.
func FindFrom(r reader.Reader, needle []byte, start int64, chunkSize int) (offset int64, ok bool) {
	if len(needle) == 0 {
		return start, true
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	size := r.Size()
	overlap := int64(len(needle) - 1)

	pos := start
	for pos < size {
		n := int64(chunkSize)
		readStart := pos
		if n < int64(len(needle)) {
			n = int64(len(needle))
		}
		if readStart+n > size {
			n = size - readStart
		}
		if n < int64(len(needle)) {
			break
		}
		buf, err := r.ReadAt(readStart, int(n))
		if err != nil {
			return 0, false
		}
		if idx := bytes.Index(buf, needle); idx >= 0 {
			return readStart + int64(idx), true
		}
		advance := n - overlap
		if advance <= 0 {
			advance = n
		}
		pos += advance
	}
	return 0, false
}
