//go:build linux && !(rp2040 || rp2350)

package dht

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"tinygo.org/x/drivers"
)

// edgeTimeout bounds the wait for each line transition of the response.
const edgeTimeout = time.Millisecond

// maxEdges covers the response preamble plus 40 bits (two edges each).
const maxEdges = 2*FrameBits + 4

var hostInit sync.Once
var hostErr error

// GPIODevice bit-bangs a sensor on a Linux GPIO line through periph.io.
// Reads run on a goroutine; the response timing is captured with edge
// timestamps, so userspace jitter shows up as ErrDelta or ErrChecksum.
type GPIODevice struct {
	pin gpio.PinIO
	typ Type

	busy    atomic.Bool
	started atomic.Bool
	closed  atomic.Bool

	mu       sync.Mutex
	status   error
	celsius  float32
	humidity float32
}

var _ Device = (*GPIODevice)(nil)
var _ drivers.Sensor = (*GPIODevice)(nil)

// OpenGPIO opens the line named "GPIO<pin>" after initialising the host
// drivers once per process.
func OpenGPIO(pin uint8, t Type) (Device, error) {
	return openGPIO(pin, t)
}

func openGPIO(pin uint8, t Type) (*GPIODevice, error) {
	hostInit.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return nil, hostErr
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("dht: no gpio line %s", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, err
	}
	return &GPIODevice{pin: p, typ: t}, nil
}

func (d *GPIODevice) Acquire() error {
	if err := d.begin(); err != nil {
		return err
	}
	if err := d.strobe(); err != nil {
		d.end(err)
		return err
	}
	go d.collect()
	return nil
}

func (d *GPIODevice) AcquireFastLoop() error {
	if err := d.begin(); err != nil {
		return err
	}
	go func() {
		if err := d.strobe(); err != nil {
			d.end(err)
			return
		}
		d.collect()
	}()
	return nil
}

func (d *GPIODevice) begin() error {
	if d.closed.Load() {
		return ErrClosed
	}
	if !d.busy.CompareAndSwap(false, true) {
		return ErrAcquiring
	}
	d.started.Store(true)
	return nil
}

func (d *GPIODevice) end(status error) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
	d.busy.Store(false)
}

// strobe holds the line low for StrobeTime, then releases it to the pull-up.
func (d *GPIODevice) strobe() error {
	if err := d.pin.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(StrobeTime)
	return d.pin.In(gpio.PullUp, gpio.BothEdges)
}

// collect timestamps every edge of the response and decodes the high pulses.
func (d *GPIODevice) collect() {
	var highs []time.Duration
	var rise time.Time
	for i := 0; i < maxEdges; i++ {
		if !d.pin.WaitForEdge(edgeTimeout) {
			break
		}
		now := time.Now()
		if d.pin.Read() == gpio.High {
			rise = now
			continue
		}
		if !rise.IsZero() {
			highs = append(highs, now.Sub(rise))
		}
	}
	_ = d.pin.In(gpio.PullUp, gpio.NoEdge)

	f, err := FrameFromPulses(highs)
	if err != nil {
		d.end(err)
		return
	}
	c, h, err := f.Decode(d.typ)
	if err != nil {
		d.end(err)
		return
	}
	d.mu.Lock()
	d.celsius, d.humidity = c, h
	d.mu.Unlock()
	d.end(nil)
}

func (d *GPIODevice) Acquiring() bool { return d.busy.Load() }

func (d *GPIODevice) Status() error {
	if !d.started.Load() {
		return ErrNotStarted
	}
	if d.busy.Load() {
		return ErrAcquiring
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *GPIODevice) Celsius() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.celsius
}

func (d *GPIODevice) Humidity() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.humidity
}

func (d *GPIODevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.pin.Halt()
}

// Update performs a blocking read, satisfying drivers.Sensor.
func (d *GPIODevice) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	if err := d.Acquire(); err != nil {
		return err
	}
	deadline := time.Now().Add(StrobeTime + ResponseTime + 10*time.Millisecond)
	for d.Acquiring() {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return d.Status()
}
