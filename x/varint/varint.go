// Package varint implements the 7-bit group integer encoding used by Firmata
// sysex arguments: little-endian groups of 7 bits, one group per byte, with
// the value sign-extended from bit 6 of the final byte.
package varint

// Width is the machine width values are decoded into.
const Width = 32

const (
	groupBits = 7
	groupMask = 0x7F
	signBit   = 0x40
)

// Decode folds b into a 32-bit value. It never fails: an empty slice decodes
// to zero and groups beyond the machine width contribute nothing. If bit 6 of
// the last byte is set, every bit above the decoded groups is set to 1, as if
// the groups had been read into a signed field and reinterpreted as unsigned.
func Decode(b []byte) uint32 {
	var v uint32
	for i, c := range b {
		shift := uint(i * groupBits)
		if shift >= Width {
			break
		}
		v |= uint32(c&groupMask) << shift
	}
	if n := len(b); n > 0 && b[n-1]&signBit != 0 {
		if shift := uint(n * groupBits); shift < Width {
			v |= ^uint32(0) << shift
		}
	}
	return v
}

// Encode returns the shortest group sequence that Decode maps back to v.
// A trailing group is added when bit 6 of the last data group is set, so
// non-negative values are never sign-extended.
func Encode(v uint32) []byte {
	out := make([]byte, 0, 5)
	rest := uint64(v)
	for {
		g := byte(rest & groupMask)
		rest >>= groupBits
		out = append(out, g)
		if rest == 0 && g&signBit == 0 {
			return out
		}
	}
}
