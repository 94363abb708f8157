package dhtfeature

import (
	"time"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/errcode"
	"firmatadht-go/firmata"
	"firmatadht-go/x/mathx"
)

// SensorConfig is what an attach command carries.
type SensorConfig struct {
	Pin  uint8
	Type dht.Type
	// Blocking selects the start-and-wait acquisition; otherwise reads use
	// the tick-driven fast loop.
	Blocking bool
	// IntervalMs between readings. Clamped to MinIntervalMs.
	IntervalMs uint32
}

// State is the acquisition state of a Driver.
type State uint8

const (
	StateDetached State = iota
	StateIdle
	StateAcquiring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	}
	return "detached"
}

// session is the one active sensor.
type session struct {
	cfg   SensorConfig
	dev   dht.Device
	state State
	// The next read is due once more than waitMs have passed since fromMs.
	fromMs uint32
	waitMs uint32
}

// Attach opens a sensor and starts scheduling reads. The first read is due
// InitGraceMs after attach. Refusals are also reported to the host as
// diagnostics.
func (d *Driver) Attach(cfg SensorConfig) error {
	if d.sess != nil {
		d.host.SendString(msgAlreadyAttached)
		return errcode.AlreadyAttached
	}
	if cfg.Type != dht.DHT11 && cfg.Type != dht.DHT22 {
		d.host.SendString(msgInvalidCommand)
		return errcode.InvalidCommand
	}
	if !d.eligible(cfg.Pin) {
		d.host.SendString(msgPinNotEligible)
		return errcode.PinNotEligible
	}
	dev, err := d.open(cfg.Pin, cfg.Type)
	if err != nil {
		d.host.SendString(msgOpenFailed)
		d.log.Error(err, "open failed", "pin", cfg.Pin, "type", cfg.Type.String())
		return errcode.Wrap(errcode.OpenFailed, "attach", err)
	}
	cfg.IntervalMs = mathx.Max(cfg.IntervalMs, MinIntervalMs)
	now := d.clock.Millis()
	d.sess = &session{
		cfg:    cfg,
		dev:    dev,
		state:  StateIdle,
		fromMs: now,
		waitMs: InitGraceMs,
	}
	d.mirror.Store(uint32(StateIdle))
	d.host.SetPinMode(cfg.Pin, firmata.PinModeDHT)
	d.log.Info("attached", "pin", cfg.Pin, "type", cfg.Type.String(),
		"blocking", cfg.Blocking, "interval_ms", cfg.IntervalMs)
	return nil
}

func (d *Driver) eligible(pin uint8) bool {
	return d.host.IsInterruptPin(pin) && d.host.PinMode(pin) != firmata.PinModeIgnore
}

// Detach stops acquisition and releases the sensor. An in-flight read is
// given up to DetachWait to finish first. Detaching with nothing attached
// does nothing.
func (d *Driver) Detach() {
	s := d.sess
	if s == nil {
		return
	}
	d.sess = nil
	d.mirror.Store(uint32(StateDetached))
	var waited uint32
	for s.dev.Acquiring() {
		if waited >= uint32(d.detachWait.Milliseconds()) {
			d.log.V(1).Info("detach: read still in flight", "pin", s.cfg.Pin)
			break
		}
		d.sleep(time.Millisecond)
		waited++
	}
	if err := s.dev.Close(); err != nil {
		d.log.Error(err, "close failed", "pin", s.cfg.Pin)
	}
	if d.host.PinMode(s.cfg.Pin) == firmata.PinModeDHT {
		d.host.SetPinMode(s.cfg.Pin, firmata.PinModeInput)
	}
	d.log.Info("detached", "pin", s.cfg.Pin)
}

// IsAttached reports whether a sensor is attached.
func (d *Driver) IsAttached() bool { return d.sess != nil }

// Config returns the active sensor's configuration, interval already
// clamped.
func (d *Driver) Config() (SensorConfig, bool) {
	if d.sess == nil {
		return SensorConfig{}, false
	}
	return d.sess.cfg, true
}

// State returns the acquisition state. Unlike the other methods it may be
// called from any goroutine.
func (d *Driver) State() State { return State(d.mirror.Load()) }

func (d *Driver) setState(s *session, st State) {
	s.state = st
	d.mirror.Store(uint32(st))
}
