package dhtfeature

import (
	"math"

	"firmatadht-go/errcode"
	"firmatadht-go/firmata"
)

// ReportBits is the resolution advertised in the capability response:
// 14 bits of temperature plus 14 bits of humidity.
const ReportBits = 28

// ReportLen is the payload length of a report frame.
const ReportLen = 4

// Reading is one completed measurement in fixed point.
type Reading struct {
	DeciCelsius  int16  // tenths of °C
	CentiPercent uint16 // hundredths of %RH
}

// NewReading scales a floating-point reading, rounding halves away from
// zero. Values outside the field widths wrap.
func NewReading(celsius, humidity float64) Reading {
	return Reading{
		DeciCelsius:  int16(int64(math.Round(celsius * 10))),
		CentiPercent: uint16(int64(math.Round(humidity * 100))),
	}
}

func (r Reading) Celsius() float64 { return float64(r.DeciCelsius) / 10 }
func (r Reading) Percent() float64 { return float64(r.CentiPercent) / 100 }

// EncodeReport lays r out as two 14-bit fields, temperature first, each as
// two 7-bit bytes. Bits above 14 are dropped.
func EncodeReport(r Reading) []byte {
	p := make([]byte, 0, ReportLen)
	p = firmata.AppendTwo7Bit(p, uint16(r.DeciCelsius))
	return firmata.AppendTwo7Bit(p, r.CentiPercent)
}

// DecodeReport parses a report payload. Temperature is sign-extended from
// 14 bits.
func DecodeReport(p []byte) (Reading, error) {
	if len(p) != ReportLen {
		return Reading{}, errcode.ShortFrame
	}
	t := firmata.Two7Bit(p[0], p[1])
	if t&0x2000 != 0 {
		t |= 0xC000
	}
	return Reading{
		DeciCelsius:  int16(t),
		CentiPercent: firmata.Two7Bit(p[2], p[3]),
	}, nil
}
