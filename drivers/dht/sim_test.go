package dht

import (
	"testing"
	"time"

	"firmatadht-go/x/timex"

	"tinygo.org/x/drivers"
)

func TestSim_NotStarted(t *testing.T) {
	s := NewSim(3, DHT22, timex.NewManualClock(1000), SimConfig{})
	if err := s.Status(); err != ErrNotStarted {
		t.Fatalf("Status before start = %v", err)
	}
}

func TestSim_FastLoopCompletes(t *testing.T) {
	clk := timex.NewManualClock(1000)
	s := NewSim(3, DHT22, clk, SimConfig{Celsius: 21.5, Humidity: 40.2})
	if err := s.AcquireFastLoop(); err != nil {
		t.Fatalf("AcquireFastLoop: %v", err)
	}
	if err := s.AcquireFastLoop(); err != ErrAcquiring {
		t.Fatalf("second start = %v, want ErrAcquiring", err)
	}
	if !s.Acquiring() {
		t.Fatal("expected acquiring right after start")
	}
	if s.Status() != ErrAcquiring {
		t.Fatal("Status while busy should be ErrAcquiring")
	}
	clk.Advance(3 * time.Millisecond)
	if !s.Acquiring() {
		t.Fatal("expected acquiring before conversion time")
	}
	clk.Advance(3 * time.Millisecond)
	if s.Acquiring() {
		t.Fatal("expected completion after conversion time")
	}
	if err := s.Status(); err != nil {
		t.Fatalf("Status = %v", err)
	}
	if s.Celsius() != 21.5 || s.Humidity() != 40.2 {
		t.Fatalf("reading %.1f/%.1f", s.Celsius(), s.Humidity())
	}
	if s.Reads() != 1 {
		t.Fatalf("Reads = %d", s.Reads())
	}
}

func TestSim_FastLoopStarvedTimesOut(t *testing.T) {
	clk := timex.NewManualClock(1000)
	s := NewSim(3, DHT11, clk, SimConfig{Conversion: 30 * time.Millisecond})
	_ = s.AcquireFastLoop()
	clk.Advance(12 * time.Millisecond)
	if s.Acquiring() {
		t.Fatal("starved read should have ended")
	}
	if err := s.Status(); err != ErrTimeout {
		t.Fatalf("Status = %v, want ErrTimeout", err)
	}
}

func TestSim_BlockingNotStarvedByGaps(t *testing.T) {
	clk := timex.NewManualClock(1000)
	var slept time.Duration
	s := NewSim(3, DHT11, clk, SimConfig{Celsius: 20, Humidity: 50, Sleep: func(d time.Duration) { slept += d }})
	if err := s.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if slept != StrobeTime {
		t.Fatalf("slept %v, want %v", slept, StrobeTime)
	}
	clk.Advance(20 * time.Millisecond)
	if s.Acquiring() {
		t.Fatal("expected completion")
	}
	if err := s.Status(); err != nil {
		t.Fatalf("Status = %v", err)
	}
}

func TestSim_FailEvery(t *testing.T) {
	clk := timex.NewManualClock(1000)
	s := NewSim(3, DHT22, clk, SimConfig{FailEvery: 2, FailWith: ErrTimeout})
	var got []error
	for i := 0; i < 4; i++ {
		_ = s.AcquireFastLoop()
		clk.Advance(5 * time.Millisecond)
		for s.Acquiring() {
			clk.Advance(time.Millisecond)
		}
		got = append(got, s.Status())
	}
	want := []error{nil, ErrTimeout, nil, ErrTimeout}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("read %d: %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSim_SensorUpdate(t *testing.T) {
	s := NewSim(3, DHT22, timex.NewManualClock(0), SimConfig{Celsius: -4.5, Humidity: 80})
	var sensor drivers.Sensor = s
	if err := sensor.Update(drivers.Voltage); err != nil {
		t.Fatalf("Update(voltage) = %v", err)
	}
	if s.Reads() != 0 {
		t.Fatal("voltage update should not read")
	}
	if err := sensor.Update(drivers.Temperature | drivers.Humidity); err != nil {
		t.Fatalf("Update = %v", err)
	}
	if s.Celsius() != -4.5 || s.Humidity() != 80 {
		t.Fatalf("reading %.1f/%.1f", s.Celsius(), s.Humidity())
	}
}

func TestSim_Closed(t *testing.T) {
	s := NewSim(3, DHT22, timex.NewManualClock(0), SimConfig{})
	_ = s.Close()
	if err := s.AcquireFastLoop(); err != ErrClosed {
		t.Fatalf("start after close = %v", err)
	}
	if !s.Closed() {
		t.Fatal("Closed() false")
	}
}

func TestParseType(t *testing.T) {
	for s, want := range map[string]Type{"dht11": DHT11, "DHT22": DHT22} {
		if got, err := ParseType(s); err != nil || got != want {
			t.Fatalf("%q: %v %v", s, got, err)
		}
	}
	if _, err := ParseType("am2320"); err != ErrUnsupported {
		t.Fatalf("err=%v", err)
	}
}
