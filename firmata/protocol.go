// Package firmata holds the slice of the Firmata protocol a DHT node needs:
// message framing, the host collaborator interface and a minimal board that
// dispatches frames to features.
package firmata

// Status bytes.
const (
	StartSysex  byte = 0xF0
	EndSysex    byte = 0xF7
	SetPinMode  byte = 0xF4
	SystemReset byte = 0xFF
)

// Sysex commands.
const (
	DHTSensorData      byte = 0x66
	StringData         byte = 0x71
	CapabilityQuery    byte = 0x6B
	CapabilityResponse byte = 0x6C
)

// Pin modes.
const (
	PinModeInput  uint8 = 0x00
	PinModeOutput uint8 = 0x01
	PinModeDHT    uint8 = 0x0F
	PinModeIgnore uint8 = 0x7F
)

// MaxSysex bounds the payload of one inbound sysex message.
const MaxSysex = 64

// Host is what a feature may ask of the board: the diagnostic and report
// channel plus pin bookkeeping.
type Host interface {
	// SendString emits a diagnostic text message.
	SendString(s string)
	// SendSysex emits one sysex frame with command and 7-bit payload.
	SendSysex(command byte, payload []byte)
	PinMode(pin uint8) uint8
	SetPinMode(pin uint8, mode uint8)
	IsInterruptPin(pin uint8) bool
}

// Feature is an optional board capability. All methods are called from the
// board's owning goroutine.
type Feature interface {
	// HandlePinMode reports whether the feature accepts mode on pin.
	HandlePinMode(pin uint8, mode uint8) bool
	// HandleCapability returns the mode/resolution pairs the feature adds
	// for pin, or nil.
	HandleCapability(pin uint8) []byte
	// HandleSysex reports whether the feature consumed the message.
	HandleSysex(command byte, argv []byte) bool
	// Reset returns the feature to its power-on state.
	Reset()
	// Update runs one cooperative tick.
	Update()
}
