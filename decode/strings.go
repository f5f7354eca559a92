package decode

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/binscope/binscope/reader"
)

// Encoding enumerates the string encodings spec.md §6 recognizes.
type Encoding string

const (
	ASCII    Encoding = "ascii"
	UTF8     Encoding = "utf-8"
	UTF16LE  Encoding = "utf-16le"
	UTF16BE  Encoding = "utf-16be"
)

// StringResult is the outcome of decoding a string field.
type StringResult struct {
	Value    string
	Consumed int  // bytes actually consumed from the stream
	Capped   bool // null terminator not found within max_length
}

// decodeBytesToString converts raw bytes to text under the given
// encoding. Undecodable bytes are replaced by the Unicode replacement
// glyph rather than producing a hard error, per the original
// implementation's strings.py behavior (see SPEC_FULL.md §9).
func decodeBytesToString(raw []byte, enc Encoding) string {
	switch enc {
	case UTF16LE:
		return decodeUTF16(raw, unicode.LittleEndian)
	case UTF16BE:
		return decodeUTF16(raw, unicode.BigEndian)
	case ASCII:
		return decodeASCII(raw)
	case UTF8, "":
		return sanitizeUTF8(raw)
	default:
		return sanitizeUTF8(raw)
	}
}

func decodeUTF16(raw []byte, order unicode.Endianness) string {
	dec := unicode.UTF16(order, unicode.UseBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		// Best-effort: fall back to whatever was converted before the
		// error, rather than failing the whole field.
		return sanitizeUTF8(out)
	}
	return sanitizeUTF8(out)
}

func decodeASCII(raw []byte) string {
	out := make([]rune, len(raw))
	for i, b := range raw {
		if b < 0x80 {
			out[i] = rune(b)
		} else {
			out[i] = utf8.RuneError
		}
	}
	return string(out)
}

func sanitizeUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	var b bytes.Buffer
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		b.WriteRune(r)
		raw = raw[size:]
	}
	return b.String()
}

// DecodeFixedString decodes a fixed-length string field: length bytes
// are read (truncated at EOF), optionally stripped of one trailing NUL
// (the original implementation's default behavior for fixed-length
// strings, distinct from null-terminated mode), and converted using
// enc.
func DecodeFixedString(r reader.Reader, offset int64, length int, enc Encoding, stripTrailingNUL bool) (StringResult, error) {
	raw, n, err := DecodeBytes(r, offset, length)
	if err != nil {
		return StringResult{}, err
	}
	body := raw
	if stripTrailingNUL && len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}
	return StringResult{Value: decodeBytesToString(body, enc), Consumed: n}, nil
}

// DecodeNullTerminatedString implements spec.md §4.4's null-terminated
// scan: it reads up to maxLength bytes, stopping at the first zero
// byte. If found at index i, the value is the decoded bytes [0, i) and
// the consumed length is i+1 (the terminator is consumed but not
// included in the value). If no zero byte appears within the window,
// the value is the whole window and Capped is set.
func DecodeNullTerminatedString(r reader.Reader, offset int64, maxLength int, enc Encoding) (StringResult, error) {
	if maxLength < 0 {
		return StringResult{}, fmt.Errorf("decode: negative max_length %d", maxLength)
	}
	window, err := r.ReadAt(offset, maxLength)
	if err != nil {
		return StringResult{}, err
	}

	if idx := bytes.IndexByte(window, 0); idx >= 0 {
		return StringResult{
			Value:    decodeBytesToString(window[:idx], enc),
			Consumed: idx + 1,
		}, nil
	}
	return StringResult{
		Value:    decodeBytesToString(window, enc),
		Consumed: len(window),
		Capped:   true,
	}, nil
}
