// Package dhtfeature is the Firmata feature that drives one DHT11/DHT22
// sensor: it decodes attach/detach sysex commands, paces acquisitions on a
// cooperative tick and reports readings or diagnostics to the host.
//
// A Driver is owned by one goroutine. Every method, including Update, must
// be called from the goroutine that owns the board.
package dhtfeature

import (
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/x/timex"
)

// Timing, in milliseconds of the feature clock.
const (
	MinIntervalMs   uint32 = 2000
	RetryIntervalMs uint32 = 500
	InitGraceMs     uint32 = 2000
)

// DefaultDetachWait bounds how long Detach waits for an in-flight read.
const DefaultDetachWait = 100 * time.Millisecond

const (
	msgAlreadyAttached = "DHT Warning: sensor already attached."
	msgPinNotEligible  = "DHT Error: Can only be used with interrupt pins."
	msgInvalidCommand  = "DHT Error: Invalid command"
	msgOpenFailed      = "DHT Error: Cannot open sensor"
)

// Options configures a Driver. Host and Open are required.
type Options struct {
	Host  firmata.Host
	Open  dht.Opener
	Clock timex.Clock // default: a MonoClock started by New
	Log   logr.Logger

	// DetachWait bounds the wait in Detach. Default DefaultDetachWait.
	DetachWait time.Duration
	// Sleep is used while waiting in Detach. Default time.Sleep.
	Sleep func(time.Duration)
	// OnOutcome, if set, sees every completed acquisition.
	OnOutcome func(pin uint8, o Outcome)
}

// Driver is the DHT feature.
type Driver struct {
	host  firmata.Host
	open  dht.Opener
	clock timex.Clock
	log   logr.Logger

	detachWait time.Duration
	sleep      func(time.Duration)
	onOutcome  func(uint8, Outcome)

	sess   *session
	mirror atomic.Uint32 // State of sess, for other goroutines
}

var _ firmata.Feature = (*Driver)(nil)

// New builds a detached Driver.
func New(o Options) *Driver {
	if o.Clock == nil {
		o.Clock = timex.NewMonoClock()
	}
	if o.Log.GetSink() == nil {
		o.Log = logr.Discard()
	}
	if o.DetachWait <= 0 {
		o.DetachWait = DefaultDetachWait
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return &Driver{
		host:       o.Host,
		open:       o.Open,
		clock:      o.Clock,
		log:        o.Log.WithName("dht"),
		detachWait: o.DetachWait,
		sleep:      o.Sleep,
		onOutcome:  o.OnOutcome,
	}
}

// HandlePinMode accepts PinModeDHT on interrupt-capable pins. The sensor is
// only opened by an attach command.
func (d *Driver) HandlePinMode(pin uint8, mode uint8) bool {
	return mode == firmata.PinModeDHT && d.host.IsInterruptPin(pin)
}

// HandleCapability advertises PinModeDHT with ReportBits resolution on
// eligible pins.
func (d *Driver) HandleCapability(pin uint8) []byte {
	if !d.host.IsInterruptPin(pin) {
		return nil
	}
	return []byte{firmata.PinModeDHT, ReportBits}
}

// Reset detaches any sensor.
func (d *Driver) Reset() { d.Detach() }
