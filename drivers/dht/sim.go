package dht

import (
	"sync"
	"time"

	"firmatadht-go/x/timex"

	"tinygo.org/x/drivers"
)

// SimConfig controls a simulated sensor. All fields are optional.
type SimConfig struct {
	Celsius  float32
	Humidity float32
	// Conversion is the time from start until the response is complete.
	// Default 5 ms.
	Conversion time.Duration
	// FailEvery makes every Nth read fail with FailWith (ErrChecksum if nil).
	FailEvery int
	FailWith  error
	// Sleep, if set, is called by Acquire for the strobe duration.
	Sleep func(time.Duration)
}

// Sim is an in-memory sensor driven by a millisecond clock. Reads go through
// Frame encoding and decoding so checksum and rounding behave like hardware.
type Sim struct {
	mu    sync.Mutex
	pin   uint8
	typ   Type
	clock timex.Clock
	cfg   SimConfig

	started  bool
	busy     bool
	fast     bool
	startMs  uint32
	lastPoll uint32
	reads    int
	status   error
	celsius  float32
	humidity float32
	closed   bool
}

var _ Device = (*Sim)(nil)
var _ drivers.Sensor = (*Sim)(nil)

// NewSim creates a simulated sensor on pin.
func NewSim(pin uint8, t Type, clock timex.Clock, cfg SimConfig) *Sim {
	if cfg.Conversion <= 0 {
		cfg.Conversion = ResponseTime
	}
	if cfg.FailWith == nil {
		cfg.FailWith = ErrChecksum
	}
	return &Sim{pin: pin, typ: t, clock: clock, cfg: cfg}
}

// SimOpener returns an Opener producing simulated sensors sharing cfg.
// Each opened device is also passed to onOpen when it is non-nil.
func SimOpener(clock timex.Clock, cfg SimConfig, onOpen func(*Sim)) Opener {
	return func(pin uint8, t Type) (Device, error) {
		s := NewSim(pin, t, clock, cfg)
		if onOpen != nil {
			onOpen(s)
		}
		return s, nil
	}
}

// Pin returns the pin the sensor was opened on.
func (s *Sim) Pin() uint8 { return s.pin }

// Set changes the environment the next reads will report.
func (s *Sim) Set(celsius, humidity float32) {
	s.mu.Lock()
	s.cfg.Celsius, s.cfg.Humidity = celsius, humidity
	s.mu.Unlock()
}

// Reads returns the number of completed reads.
func (s *Sim) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sim) Acquire() error {
	if err := s.start(false); err != nil {
		return err
	}
	if s.cfg.Sleep != nil {
		s.cfg.Sleep(StrobeTime)
	}
	return nil
}

func (s *Sim) AcquireFastLoop() error { return s.start(true) }

func (s *Sim) start(fast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrAcquiring
	}
	now := s.clock.Millis()
	s.started = true
	s.busy = true
	s.fast = fast
	s.startMs = now
	s.lastPoll = now
	return nil
}

func (s *Sim) Acquiring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return false
	}
	now := s.clock.Millis()
	if s.fast && timex.Elapsed(now, s.lastPoll) >= uint32(PollWindow/time.Millisecond) {
		s.finish(ErrTimeout)
		return false
	}
	s.lastPoll = now
	if timex.Elapsed(now, s.startMs) < uint32(s.cfg.Conversion/time.Millisecond) {
		return true
	}
	s.finish(s.sample())
	return false
}

// sample produces the outcome of one read. Caller holds mu.
func (s *Sim) sample() error {
	if s.cfg.FailEvery > 0 && (s.reads+1)%s.cfg.FailEvery == 0 {
		return s.cfg.FailWith
	}
	c, h, err := EncodeFrame(s.typ, s.cfg.Celsius, s.cfg.Humidity).Decode(s.typ)
	if err != nil {
		return err
	}
	s.celsius, s.humidity = c, h
	return nil
}

// finish completes the in-flight read. Caller holds mu.
func (s *Sim) finish(status error) {
	s.busy = false
	s.reads++
	s.status = status
}

func (s *Sim) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.started:
		return ErrNotStarted
	case s.busy:
		return ErrAcquiring
	}
	return s.status
}

func (s *Sim) Celsius() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.celsius
}

func (s *Sim) Humidity() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humidity
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.busy = false
	s.mu.Unlock()
	return nil
}

// Update performs a complete synchronous read, satisfying drivers.Sensor.
func (s *Sim) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrAcquiring
	}
	s.started = true
	s.finish(s.sample())
	return s.status
}
