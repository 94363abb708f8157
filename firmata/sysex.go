package firmata

import "errors"

// ErrOddPayload is returned when a two-byte encoded payload has an odd length.
var ErrOddPayload = errors.New("firmata: odd two-byte payload")

// AppendTwo7Bit appends v as two 7-bit bytes, least significant first.
// Only the low 14 bits survive.
func AppendTwo7Bit(dst []byte, v uint16) []byte {
	return append(dst, byte(v&0x7F), byte(v>>7&0x7F))
}

// Two7Bit reassembles a 14-bit value from two 7-bit bytes.
func Two7Bit(lsb, msb byte) uint16 {
	return uint16(lsb&0x7F) | uint16(msb&0x7F)<<7
}

// Sysex frames command and payload between StartSysex and EndSysex.
func Sysex(command byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, StartSysex, command&0x7F)
	for _, b := range payload {
		out = append(out, b&0x7F)
	}
	return append(out, EndSysex)
}

// EncodeString encodes s as a StringData payload (two bytes per byte of s).
func EncodeString(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); i++ {
		out = AppendTwo7Bit(out, uint16(s[i]))
	}
	return out
}

// DecodeString is the inverse of EncodeString.
func DecodeString(p []byte) (string, error) {
	if len(p)%2 != 0 {
		return "", ErrOddPayload
	}
	b := make([]byte, len(p)/2)
	for i := range b {
		b[i] = byte(Two7Bit(p[2*i], p[2*i+1]))
	}
	return string(b), nil
}
