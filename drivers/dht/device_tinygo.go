//go:build rp2040 || rp2350

package dht

import (
	"machine"
	"sync/atomic"

	tdht "tinygo.org/x/drivers/dht"
)

// mcuDevice wraps the TinyGo DHT driver. The TinyGo driver reads a whole
// frame in one call with interrupts masked, so the non-blocking start hands
// that call to a goroutine.
type mcuDevice struct {
	dev tdht.Device

	busy    atomic.Bool
	started bool
	status  error
	deciC   int16
	deciRH  uint16
	closed  bool
}

// OpenGPIO opens a sensor on a TinyGo machine pin.
func OpenGPIO(pin uint8, t Type) (Device, error) {
	var dt tdht.DeviceType
	switch t {
	case DHT11:
		dt = tdht.DHT11
	case DHT22:
		dt = tdht.DHT22
	default:
		return nil, ErrUnsupported
	}
	d := tdht.NewWithPolicy(machine.Pin(pin), dt, tdht.UpdatePolicy{UpdateAutomatically: false})
	return &mcuDevice{dev: d}, nil
}

func (d *mcuDevice) begin() error {
	if d.closed {
		return ErrClosed
	}
	if !d.busy.CompareAndSwap(false, true) {
		return ErrAcquiring
	}
	d.started = true
	return nil
}

func (d *mcuDevice) read() {
	err := d.dev.ReadMeasurements()
	if err == nil {
		d.deciC, d.deciRH, err = d.dev.Measurements()
	}
	d.status = mapTinyGoErr(err)
	d.busy.Store(false)
}

func (d *mcuDevice) Acquire() error {
	if err := d.begin(); err != nil {
		return err
	}
	d.read()
	return nil
}

func (d *mcuDevice) AcquireFastLoop() error {
	if err := d.begin(); err != nil {
		return err
	}
	go d.read()
	return nil
}

func (d *mcuDevice) Acquiring() bool { return d.busy.Load() }

func (d *mcuDevice) Status() error {
	switch {
	case !d.started:
		return ErrNotStarted
	case d.busy.Load():
		return ErrAcquiring
	}
	return d.status
}

func (d *mcuDevice) Celsius() float32  { return float32(d.deciC) / 10 }
func (d *mcuDevice) Humidity() float32 { return float32(d.deciRH) / 10 }

func (d *mcuDevice) Close() error {
	d.closed = true
	return nil
}

func mapTinyGoErr(err error) error {
	switch err {
	case nil:
		return nil
	case tdht.ChecksumError:
		return ErrChecksum
	case tdht.NoSignalError, tdht.NoDataError:
		return ErrTimeout
	case tdht.UninitializedDataError:
		return ErrNotStarted
	}
	return err
}
