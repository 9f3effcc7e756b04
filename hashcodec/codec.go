package hashcodec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Width is the byte width of a tiered length-prefix field, chosen once
// at container-header time and fixed for the rest of that container
// (§4.A).
type Width byte

const (
	// Width1 stores counts up to 255 in one byte.
	Width1 Width = 1
	// Width2 stores counts up to 65535 in two bytes.
	Width2 Width = 2
	// Width3 is the "big short": counts up to 16,777,215 in three bytes.
	Width3 Width = 3
	// Width4 stores counts up to MaxUint32 in four bytes.
	Width4 Width = 4
)

const (
	maxWidth1 = 1<<8 - 1
	maxWidth2 = 1<<16 - 1
	maxWidth3 = 1<<24 - 1
)

// WidthFor returns the narrowest Width able to hold n.
func WidthFor(n uint64) Width {
	switch {
	case n <= maxWidth1:
		return Width1
	case n <= maxWidth2:
		return Width2
	case n <= maxWidth3:
		return Width3
	default:
		return Width4
	}
}

// Valid reports whether w is one of the four recognized widths.
func (w Width) Valid() bool {
	switch w {
	case Width1, Width2, Width3, Width4:
		return true
	}
	return false
}

// Max returns the largest value representable at width w.
func (w Width) Max() uint64 {
	switch w {
	case Width1:
		return maxWidth1
	case Width2:
		return maxWidth2
	case Width3:
		return maxWidth3
	default:
		return 1<<32 - 1
	}
}

// AppendLength big-endian encodes n at width w onto buf, returning the
// extended slice. It errors if n does not fit in w bytes.
func AppendLength(buf []byte, w Width, n uint64) ([]byte, error) {
	if !w.Valid() {
		return buf, errors.Errorf("hashcodec: invalid length width %d", w)
	}
	if n > w.Max() {
		return buf, errors.Errorf("hashcodec: value %d does not fit in width %d", n, w)
	}
	switch w {
	case Width1:
		return append(buf, byte(n)), nil
	case Width2:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(n))
		return append(buf, tmp[:]...), nil
	case Width3:
		return append(buf, byte(n>>16), byte(n>>8), byte(n)), nil
	default:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		return append(buf, tmp[:]...), nil
	}
}

// ReadLength decodes a w-byte big-endian length field from the front of
// b, returning the value and the number of bytes consumed.
func ReadLength(b []byte, w Width) (uint64, int, error) {
	if !w.Valid() {
		return 0, 0, errors.Errorf("hashcodec: invalid length width %d", w)
	}
	if len(b) < int(w) {
		return 0, 0, errors.Errorf("hashcodec: need %d bytes for length field, have %d", w, len(b))
	}
	switch w {
	case Width1:
		return uint64(b[0]), 1, nil
	case Width2:
		return uint64(binary.BigEndian.Uint16(b[:2])), 2, nil
	case Width3:
		return uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2]), 3, nil
	default:
		return uint64(binary.BigEndian.Uint32(b[:4])), 4, nil
	}
}
