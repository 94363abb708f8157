// Package dht provides drivers for the DHT11 and DHT22 (AM2302)
// temperature/humidity sensors. Every backend exposes the same split-phase
// acquisition API:
//
//	d.Acquire()          // blocking start: holds the caller for the strobe
//	d.AcquireFastLoop()  // non-blocking start
//	for d.Acquiring() {} // poll until the response completes
//	err := d.Status()    // nil on success, then read Celsius()/Humidity()
//
// With AcquireFastLoop the caller must poll Acquiring at least once every
// 10 ms or the read fails with ErrTimeout.
//
// Backends: Sim (all builds), GPIO via periph.io (linux hosts) and the TinyGo
// driver (rp2040/rp2350).
package dht

import (
	"errors"
	"strings"
	"time"
)

// Type selects the sensor model.
type Type uint8

const (
	DHT11 Type = iota + 1
	DHT22
)

func (t Type) String() string {
	switch t {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	default:
		return "unknown"
	}
}

// ParseType accepts "dht11" or "dht22" in any case.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "dht11":
		return DHT11, nil
	case "dht22":
		return DHT22, nil
	}
	return 0, ErrUnsupported
}

// Timing of the one-wire exchange.
const (
	// StrobeTime is how long the host holds the line low to request a reading.
	StrobeTime = 18 * time.Millisecond
	// PollWindow is the longest gap allowed between Acquiring polls during a
	// non-blocking read.
	PollWindow = 10 * time.Millisecond
	// ResponseTime bounds the sensor response after the strobe.
	ResponseTime = 5 * time.Millisecond
)

// Errors returned by Status and the acquisition starters.
var (
	ErrChecksum    = errors.New("dht: checksum mismatch")
	ErrTimeout     = errors.New("dht: timeout")
	ErrAcquiring   = errors.New("dht: acquisition in progress")
	ErrDelta       = errors.New("dht: delta time too small")
	ErrNotStarted  = errors.New("dht: acquisition not started")
	ErrClosed      = errors.New("dht: device closed")
	ErrUnsupported = errors.New("dht: unsupported on this platform")
)

// Device is one sensor on one pin.
type Device interface {
	// Acquire sends the start strobe, blocking the caller for StrobeTime.
	// The response completes asynchronously; poll Acquiring.
	Acquire() error
	// AcquireFastLoop starts a read without blocking.
	AcquireFastLoop() error
	// Acquiring reports whether a read is still in flight.
	Acquiring() bool
	// Status is the outcome of the last completed read.
	Status() error
	// Celsius and Humidity return the last successful reading.
	Celsius() float32
	Humidity() float32
	// Close releases the pin. The caller must not close a device while
	// Acquiring reports true.
	Close() error
}

// Opener creates a Device for a pin.
type Opener func(pin uint8, t Type) (Device, error)
