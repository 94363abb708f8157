package timex

import (
	"testing"
	"time"
)

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock(10)
	if got := c.Advance(25 * time.Millisecond); got != 35 {
		t.Fatalf("Advance = %d, want 35", got)
	}
	if c.Millis() != 35 {
		t.Fatalf("Millis = %d", c.Millis())
	}
}

func TestManualClock_Wraps(t *testing.T) {
	c := NewManualClock(^uint32(0) - 4)
	now := c.Advance(10 * time.Millisecond)
	if now != 5 {
		t.Fatalf("wrapped clock = %d, want 5", now)
	}
	if Elapsed(now, ^uint32(0)-4) != 10 {
		t.Fatalf("Elapsed across wrap = %d", Elapsed(now, ^uint32(0)-4))
	}
}

func TestMonoClock_Monotonic(t *testing.T) {
	c := NewMonoClock()
	a := c.Millis()
	time.Sleep(3 * time.Millisecond)
	if b := c.Millis(); b < a+2 {
		t.Fatalf("clock did not advance: %d -> %d", a, b)
	}
}
