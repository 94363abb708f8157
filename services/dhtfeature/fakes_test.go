package dhtfeature

import (
	"errors"
	"time"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/x/timex"
)

type sysexOut struct {
	cmd     byte
	payload []byte
}

// fakeHost records everything a feature sends.
type fakeHost struct {
	strings []string
	sysex   []sysexOut
	modes   map[uint8]uint8
	noIRQ   map[uint8]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{modes: map[uint8]uint8{}, noIRQ: map[uint8]bool{}}
}

func (h *fakeHost) SendString(s string) { h.strings = append(h.strings, s) }
func (h *fakeHost) SendSysex(cmd byte, p []byte) {
	h.sysex = append(h.sysex, sysexOut{cmd, append([]byte(nil), p...)})
}
func (h *fakeHost) PinMode(pin uint8) uint8          { return h.modes[pin] }
func (h *fakeHost) SetPinMode(pin uint8, mode uint8) { h.modes[pin] = mode }
func (h *fakeHost) IsInterruptPin(pin uint8) bool    { return !h.noIRQ[pin] }

var _ firmata.Host = (*fakeHost)(nil)

// fakeDevice is a scripted dht.Device. Reads complete when done is set.
type fakeDevice struct {
	startErr error
	status   error
	c, h     float32
	busy     bool
	starts   int
	blocking int
	closed   bool
	onPoll   func(*fakeDevice)
}

func (f *fakeDevice) begin() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.busy = true
	return nil
}
func (f *fakeDevice) Acquire() error {
	f.blocking++
	return f.begin()
}
func (f *fakeDevice) AcquireFastLoop() error { return f.begin() }
func (f *fakeDevice) Acquiring() bool {
	if f.onPoll != nil {
		f.onPoll(f)
	}
	return f.busy
}
func (f *fakeDevice) Status() error     { return f.status }
func (f *fakeDevice) Celsius() float32  { return f.c }
func (f *fakeDevice) Humidity() float32 { return f.h }
func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDevice) complete(c, h float32, status error) {
	f.c, f.h, f.status, f.busy = c, h, status, false
}

type harness struct {
	host   *fakeHost
	clock  *timex.ManualClock
	drv    *Driver
	dev    *fakeDevice
	opened int
	slept  time.Duration
}

func newHarness() *harness { return newHarnessAt(10000) }

// newHarnessAt starts the driver clock at ms.
func newHarnessAt(ms uint32) *harness {
	h := &harness{host: newFakeHost(), clock: timex.NewManualClock(ms), dev: &fakeDevice{}}
	h.drv = New(Options{
		Host:  h.host,
		Clock: h.clock,
		Open: func(pin uint8, t dht.Type) (dht.Device, error) {
			h.opened++
			return h.dev, nil
		},
		Sleep: func(d time.Duration) {
			h.slept += d
			h.clock.Advance(d)
		},
	})
	return h
}

// tickAt moves the clock to ms and runs one Update.
func (h *harness) tickAt(ms uint32) {
	h.clock.Set(ms)
	h.drv.Update()
}

// tickUntilStart ticks every 5 ms from the current clock until the device
// has been started want times, giving up after limit ms. It returns the
// clock value of the tick that started the read.
func (h *harness) tickUntilStart(want int, limit uint32) (uint32, bool) {
	from := h.clock.Millis()
	for ms := from; ms-from <= limit; ms += 5 {
		h.tickAt(ms)
		if h.dev.starts >= want {
			return ms, true
		}
	}
	return 0, false
}

var errOpen = errors.New("no such line")
