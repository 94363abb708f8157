package dht

import "time"

// Frame is the 40-bit sensor response: humidity (2), temperature (2), checksum.
type Frame [5]byte

// Bits per response and the high-pulse width separating a 0 from a 1.
const (
	FrameBits = 40

	bitThreshold = 50 * time.Microsecond
	minPulse     = 10 * time.Microsecond
)

// Valid reports whether the checksum byte matches the data bytes.
func (f Frame) Valid() bool {
	return f[0]+f[1]+f[2]+f[3] == f[4]
}

// Decode converts the frame to °C and %RH for the given model.
func (f Frame) Decode(t Type) (celsius, humidity float32, err error) {
	if !f.Valid() {
		return 0, 0, ErrChecksum
	}
	switch t {
	case DHT11:
		humidity = float32(f[0]) + float32(f[1])/10
		celsius = float32(f[2]) + float32(f[3]&0x7F)/10
		if f[3]&0x80 != 0 {
			celsius = -celsius
		}
	case DHT22:
		humidity = float32(uint16(f[0])<<8|uint16(f[1])) / 10
		celsius = float32(uint16(f[2]&0x7F)<<8|uint16(f[3])) / 10
		if f[2]&0x80 != 0 {
			celsius = -celsius
		}
	default:
		return 0, 0, ErrUnsupported
	}
	return celsius, humidity, nil
}

// FrameFromPulses builds a frame from the widths of the data high pulses,
// most significant bit first. Extra leading pulses (the sensor's response
// preamble) are skipped.
func FrameFromPulses(highs []time.Duration) (Frame, error) {
	var f Frame
	if len(highs) < FrameBits {
		return f, ErrTimeout
	}
	highs = highs[len(highs)-FrameBits:]
	for i, w := range highs {
		if w < minPulse {
			return f, ErrDelta
		}
		if w > bitThreshold {
			f[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return f, nil
}

// EncodeFrame is the inverse of Decode for in-range values; the simulator
// uses it so simulated reads go through the same checksum path as hardware.
func EncodeFrame(t Type, celsius, humidity float32) Frame {
	var f Frame
	neg := celsius < 0
	if neg {
		celsius = -celsius
	}
	switch t {
	case DHT11:
		hi := uint8(humidity)
		f[0] = hi
		f[1] = uint8((humidity-float32(hi))*10 + 0.5)
		ti := uint8(celsius)
		f[2] = ti
		f[3] = uint8((celsius-float32(ti))*10+0.5) & 0x7F
		if neg {
			f[3] |= 0x80
		}
	default:
		h := uint16(humidity*10 + 0.5)
		c := uint16(celsius*10+0.5) & 0x7FFF
		f[0], f[1] = byte(h>>8), byte(h)
		f[2], f[3] = byte(c>>8), byte(c)
		if neg {
			f[2] |= 0x80
		}
	}
	f[4] = f[0] + f[1] + f[2] + f[3]
	return f
}
