package dhtfeature

import (
	"bytes"
	"testing"

	"firmatadht-go/errcode"
)

func TestNewReading_Rounds(t *testing.T) {
	cases := []struct {
		c, h float64
		want Reading
	}{
		{21.5, 40.25, Reading{215, 4025}},
		{-0.05, 0.005, Reading{-1, 1}},
		{-12.34, 99.994, Reading{-123, 9999}},
		{0, 0, Reading{}},
	}
	for _, tc := range cases {
		if got := NewReading(tc.c, tc.h); got != tc.want {
			t.Fatalf("NewReading(%v,%v)=%+v want %+v", tc.c, tc.h, got, tc.want)
		}
	}
}

func TestEncodeReport(t *testing.T) {
	got := EncodeReport(Reading{215, 4025})
	if !bytes.Equal(got, []byte{0x57, 0x01, 0x39, 0x1F}) {
		t.Fatalf("got % x", got)
	}
	// -10.0 °C: 14-bit two's complement of -100 is 0x3F9C.
	got = EncodeReport(Reading{-100, 0})
	if !bytes.Equal(got, []byte{0x1C, 0x7F, 0x00, 0x00}) {
		t.Fatalf("got % x", got)
	}
	for _, b := range EncodeReport(Reading{-1, 0xFFFF}) {
		if b&0x80 != 0 {
			t.Fatalf("byte %#x has bit 7 set", b)
		}
	}
}

func TestDecodeReport(t *testing.T) {
	for _, r := range []Reading{{215, 4025}, {-100, 0}, {-400, 10000}, {800, 1}} {
		got, err := DecodeReport(EncodeReport(r))
		if err != nil || got != r {
			t.Fatalf("%+v: got %+v,%v", r, got, err)
		}
	}
	if _, err := DecodeReport([]byte{1, 2, 3}); errcode.Of(err) != errcode.ShortFrame {
		t.Fatalf("err=%v", err)
	}
}

func TestReading_Units(t *testing.T) {
	r := Reading{-55, 4025}
	if r.Celsius() != -5.5 || r.Percent() != 40.25 {
		t.Fatalf("celsius=%v percent=%v", r.Celsius(), r.Percent())
	}
}
