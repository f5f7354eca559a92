// Package inspect implements the numeric inspector spec.md §4.10
// describes: decode every integer width/endian and both float widths
// at a given offset, for an interactive viewer. Grounded on
// SPEC_FULL.md §9's numbers.py supplement — the original exposed a
// single "decode this offset every plausible way" helper that the UI
// called on cursor movement.
package inspect

import (
	"github.com/binscope/binscope/decode"
	"github.com/binscope/binscope/reader"
)

// Insufficient marks a candidate decoding that could not be performed
// because fewer bytes were available than its width requires.
type Insufficient struct{}

// Candidate is one width/endian/signedness interpretation of the
// bytes at an offset.
type Candidate struct {
	Kind   decode.Kind
	Endian decode.Endian
	Value  any // int64, uint64, float64, or Insufficient{}
}

// Report is every candidate interpretation of the bytes at a single
// offset.
type Report struct {
	Offset     int64
	Candidates []Candidate
}

var integerKinds = []decode.Kind{decode.U8, decode.I8, decode.U16, decode.I16, decode.U32, decode.I32, decode.U64, decode.I64}
var floatKinds = []decode.Kind{decode.F32, decode.F64}

// At decodes every integer width/endian and both float widths at
// offset, reporting Insufficient for any candidate that does not fit
// within r.
func At(r reader.Reader, offset int64) Report {
	rep := Report{Offset: offset}

	for _, k := range integerKinds {
		for _, e := range []decode.Endian{decode.Little, decode.Big} {
			if decode.IsEndianFree(k) && e == decode.Big {
				continue // u8/i8 have no distinct big-endian reading
			}
			rep.Candidates = append(rep.Candidates, decodeIntCandidate(r, offset, k, e))
		}
	}
	for _, k := range floatKinds {
		for _, e := range []decode.Endian{decode.Little, decode.Big} {
			rep.Candidates = append(rep.Candidates, decodeFloatCandidate(r, offset, k, e))
		}
	}
	return rep
}

func decodeIntCandidate(r reader.Reader, offset int64, k decode.Kind, e decode.Endian) Candidate {
	switch k {
	case decode.U8, decode.U16, decode.U32, decode.U64:
		v, _, err := decode.DecodeUint(r, offset, k, e)
		if err != nil {
			return Candidate{Kind: k, Endian: e, Value: Insufficient{}}
		}
		return Candidate{Kind: k, Endian: e, Value: v}
	default:
		v, _, err := decode.DecodeInt(r, offset, k, e)
		if err != nil {
			return Candidate{Kind: k, Endian: e, Value: Insufficient{}}
		}
		return Candidate{Kind: k, Endian: e, Value: v}
	}
}

func decodeFloatCandidate(r reader.Reader, offset int64, k decode.Kind, e decode.Endian) Candidate {
	v, _, err := decode.DecodeFloat(r, offset, k, e)
	if err != nil {
		return Candidate{Kind: k, Endian: e, Value: Insufficient{}}
	}
	return Candidate{Kind: k, Endian: e, Value: v}
}
