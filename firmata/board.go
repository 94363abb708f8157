package firmata

import (
	"io"

	"github.com/go-logr/logr"
)

// BoardConfig describes the pins a board exposes.
type BoardConfig struct {
	// Pins is the number of digital pins. Default 30 (RP2040 GPIO count).
	Pins int
	// InterruptPins lists pins that can raise edge interrupts. Nil means
	// every pin.
	InterruptPins []uint8
	// IgnoredPins are reserved (e.g. UART lines) and report PinModeIgnore.
	IgnoredPins []uint8
}

// Board is a Host with a pin table. It writes frames to an output writer
// and dispatches inbound messages to its features. It is not safe for
// concurrent use; one goroutine owns it.
type Board struct {
	log      logr.Logger
	out      io.Writer
	modes    []uint8
	irq      []bool
	features []Feature
}

var _ Host = (*Board)(nil)

// NewBoard builds a board with all pins in input mode.
func NewBoard(cfg BoardConfig, log logr.Logger) *Board {
	if cfg.Pins <= 0 {
		cfg.Pins = 30
	}
	b := &Board{
		log:   log,
		out:   io.Discard,
		modes: make([]uint8, cfg.Pins),
		irq:   make([]bool, cfg.Pins),
	}
	for i := range b.irq {
		b.irq[i] = cfg.InterruptPins == nil
	}
	for _, p := range cfg.InterruptPins {
		if int(p) < cfg.Pins {
			b.irq[p] = true
		}
	}
	for _, p := range cfg.IgnoredPins {
		if int(p) < cfg.Pins {
			b.modes[p] = PinModeIgnore
			b.irq[p] = false
		}
	}
	return b
}

// AddFeature registers f for dispatch and ticks.
func (b *Board) AddFeature(f Feature) { b.features = append(b.features, f) }

// SetOutput redirects outbound frames. Nil discards them.
func (b *Board) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	b.out = w
}

func (b *Board) write(p []byte) {
	if _, err := b.out.Write(p); err != nil {
		b.log.V(1).Info("write failed", "err", err.Error())
	}
}

// SendString emits a StringData frame.
func (b *Board) SendString(s string) {
	b.log.V(1).Info("diagnostic", "text", s)
	b.write(Sysex(StringData, EncodeString(s)))
}

// SendSysex emits a sysex frame.
func (b *Board) SendSysex(command byte, payload []byte) {
	b.write(Sysex(command, payload))
}

func (b *Board) PinMode(pin uint8) uint8 {
	if int(pin) >= len(b.modes) {
		return PinModeIgnore
	}
	return b.modes[pin]
}

func (b *Board) SetPinMode(pin uint8, mode uint8) {
	if int(pin) >= len(b.modes) || b.modes[pin] == PinModeIgnore {
		return
	}
	b.modes[pin] = mode
}

func (b *Board) IsInterruptPin(pin uint8) bool {
	return int(pin) < len(b.irq) && b.irq[pin]
}

// Dispatch routes one inbound message.
func (b *Board) Dispatch(m Message) {
	switch m.Kind {
	case KindReset:
		b.Reset()
	case KindSetPinMode:
		b.handleSetPinMode(m.Data[0], m.Data[1])
	case KindSysex:
		if m.Command == CapabilityQuery {
			b.write(b.capabilities())
			return
		}
		for _, f := range b.features {
			if f.HandleSysex(m.Command, m.Data) {
				return
			}
		}
		b.log.V(1).Info("unhandled sysex", "command", m.Command, "len", len(m.Data))
	}
}

func (b *Board) handleSetPinMode(pin, mode uint8) {
	if b.PinMode(pin) == PinModeIgnore {
		return
	}
	if mode == PinModeInput || mode == PinModeOutput {
		b.SetPinMode(pin, mode)
		return
	}
	for _, f := range b.features {
		if f.HandlePinMode(pin, mode) {
			b.SetPinMode(pin, mode)
			return
		}
	}
	b.SendString("Unknown pin mode")
}

// capabilities builds the CapabilityResponse frame.
func (b *Board) capabilities() []byte {
	var p []byte
	for pin := range b.modes {
		if b.modes[pin] != PinModeIgnore {
			p = append(p, PinModeInput, 1, PinModeOutput, 1)
			for _, f := range b.features {
				p = append(p, f.HandleCapability(uint8(pin))...)
			}
		}
		p = append(p, PinModeIgnore)
	}
	return Sysex(CapabilityResponse, p)
}

// Update ticks every feature once.
func (b *Board) Update() {
	for _, f := range b.features {
		f.Update()
	}
}

// Reset resets every feature and returns non-reserved pins to input mode.
func (b *Board) Reset() {
	for _, f := range b.features {
		f.Reset()
	}
	for i, m := range b.modes {
		if m != PinModeIgnore {
			b.modes[i] = PinModeInput
		}
	}
}
