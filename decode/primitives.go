package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/binscope/binscope/reader"
)

// ErrShortRead is returned when fewer bytes were available than the
// primitive's fixed width requires.
var ErrShortRead = errors.New("decode: short read")

// Kind enumerates the primitive field kinds spec.md §3 lists under
// Field.
type Kind string

const (
	U8  Kind = "u8"
	U16 Kind = "u16"
	U32 Kind = "u32"
	U64 Kind = "u64"
	I8  Kind = "i8"
	I16 Kind = "i16"
	I32 Kind = "i32"
	I64 Kind = "i64"
	F32 Kind = "f32"
	F64 Kind = "f64"

	Bytes  Kind = "bytes"
	String Kind = "string"
)

// Width returns the fixed byte width of a numeric Kind, or 0 for
// variable-length kinds (bytes, string).
func Width(k Kind) int {
	switch k {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

// IsEndianFree reports whether the kind's decoding does not depend on
// byte order, per spec.md §4.2 ("the only endian-free primitives are
// u8, i8, bytes, and string").
func IsEndianFree(k Kind) bool {
	switch k {
	case U8, I8, Bytes, String:
		return true
	default:
		return false
	}
}

func readExact(r reader.Reader, offset int64, n int) ([]byte, error) {
	buf, err := r.ReadAt(offset, n)
	if err != nil {
		return nil, err
	}
	if len(buf) < n {
		return nil, fmt.Errorf("%w: wanted %d bytes at offset %d, got %d", ErrShortRead, n, offset, len(buf))
	}
	return buf, nil
}

func order(e Endian, buf []byte) {
	if e == Little {
		return
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// toLittleEndian copies buf into a little-endian-ordered working buffer according
// to e, without mutating the caller's slice.
func toLittleEndian(e Endian, buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	order(e, out)
	return out
}

// DecodeUint decodes an unsigned integer primitive (u8/u16/u32/u64) at
// offset using the resolved endian.
func DecodeUint(r reader.Reader, offset int64, k Kind, e Endian) (uint64, int, error) {
	w := Width(k)
	if w == 0 || k == F32 || k == F64 {
		return 0, 0, fmt.Errorf("decode: %s is not an unsigned integer kind", k)
	}
	raw, err := readExact(r, offset, w)
	if err != nil {
		return 0, 0, err
	}
	buf := toLittleEndian(e, raw)
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, w, nil
}

// DecodeInt decodes a signed integer primitive (i8/i16/i32/i64) at
// offset using the resolved endian, sign-extending from the stored
// width.
func DecodeInt(r reader.Reader, offset int64, k Kind, e Endian) (int64, int, error) {
	w := Width(k)
	if w == 0 {
		return 0, 0, fmt.Errorf("decode: %s is not a signed integer kind", k)
	}
	u, _, err := DecodeUint(r, offset, unsignedEquivalent(k), e)
	if err != nil {
		return 0, 0, err
	}
	shift := uint(64 - w*8)
	return int64(u<<shift) >> shift, w, nil
}

func unsignedEquivalent(k Kind) Kind {
	switch k {
	case I8:
		return U8
	case I16:
		return U16
	case I32:
		return U32
	case I64:
		return U64
	default:
		return k
	}
}

// DecodeFloat decodes f32/f64 at offset using the resolved endian.
func DecodeFloat(r reader.Reader, offset int64, k Kind, e Endian) (float64, int, error) {
	switch k {
	case F32:
		u, w, err := DecodeUint(r, offset, U32, e)
		if err != nil {
			return 0, 0, err
		}
		return float64(math.Float32frombits(uint32(u))), w, nil
	case F64:
		u, w, err := DecodeUint(r, offset, U64, e)
		if err != nil {
			return 0, 0, err
		}
		return math.Float64frombits(u), w, nil
	default:
		return 0, 0, fmt.Errorf("decode: %s is not a float kind", k)
	}
}

// DecodeBytes reads exactly length bytes at offset, truncating at EOF;
// the number of bytes actually read is returned as the consumed
// length, matching spec.md §4.4's bytes decoding rule.
func DecodeBytes(r reader.Reader, offset int64, length int) ([]byte, int, error) {
	if length < 0 {
		return nil, 0, fmt.Errorf("decode: negative length %d", length)
	}
	buf, err := r.ReadAt(offset, length)
	if err != nil {
		return nil, 0, err
	}
	return buf, len(buf), nil
}
