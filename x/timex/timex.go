package timex

import (
	"sync/atomic"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Clock is a free-running millisecond counter. It wraps at 2^32 like an MCU
// millis() tick; callers compare with unsigned subtraction.
type Clock interface {
	Millis() uint32
}

// MonoClock counts milliseconds since it was created.
type MonoClock struct {
	start time.Time
}

// NewMonoClock starts a clock at zero.
func NewMonoClock() *MonoClock { return &MonoClock{start: time.Now()} }

func (c *MonoClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to. Safe for use from several goroutines.
type ManualClock struct {
	ms atomic.Uint32
}

// NewManualClock starts a clock at ms.
func NewManualClock(ms uint32) *ManualClock {
	c := &ManualClock{}
	c.ms.Store(ms)
	return c
}

func (c *ManualClock) Millis() uint32 { return c.ms.Load() }

// Set moves the clock to ms (wrapping is allowed).
func (c *ManualClock) Set(ms uint32) { c.ms.Store(ms) }

// Advance moves the clock forward by d, truncated to whole milliseconds.
func (c *ManualClock) Advance(d time.Duration) uint32 {
	return c.ms.Add(uint32(d / time.Millisecond))
}

// Elapsed returns now-since with wraparound.
func Elapsed(now, since uint32) uint32 { return now - since }
