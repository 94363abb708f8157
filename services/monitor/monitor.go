// Package monitor is the host side of a DHT Firmata link. It sends
// attach/detach commands and turns the device's reports and diagnostics
// into bus events:
//
//	dht/reading/<pin>  types.DHTReading
//	dht/diag           types.DHTDiag
//	dht/capability     []uint8 (retained; pins offering the DHT mode)
//
// It also accepts commands on the bus: a types.SensorConfig on
// "dht/cmd/attach" and any payload on "dht/cmd/detach".
package monitor

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"firmatadht-go/bus"
	"firmatadht-go/drivers/dht"
	"firmatadht-go/errcode"
	"firmatadht-go/firmata"
	"firmatadht-go/services/config"
	"firmatadht-go/services/dhtfeature"
	"firmatadht-go/types"
	"firmatadht-go/x/timex"
)

var (
	TopicReadings   = bus.T("dht", "reading", bus.Any)
	TopicDiag       = bus.T("dht", "diag")
	TopicCapability = bus.T("dht", "capability")
	TopicAttach     = bus.T("dht", "cmd", "attach")
	TopicDetach     = bus.T("dht", "cmd", "detach")
)

// ReadingTopic is where readings for pin are published.
func ReadingTopic(pin uint8) bus.Topic { return bus.T("dht", "reading", pin) }

// Monitor talks to one device over rw.
type Monitor struct {
	rw   io.ReadWriter
	conn *bus.Connection
	log  logr.Logger

	mu  sync.Mutex // guards writes and the fields below
	pin uint8
	on  bool
	// pending is set from an attach until the first reading or a refusal.
	pending bool
}

func New(rw io.ReadWriter, conn *bus.Connection, log logr.Logger) *Monitor {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Monitor{rw: rw, conn: conn, log: log.WithName("monitor")}
}

func (m *Monitor) send(cmd byte, payload []byte) error {
	if _, err := m.rw.Write(firmata.Sysex(cmd, payload)); err != nil {
		return errcode.Wrap(errcode.LinkDown, "send", err)
	}
	return nil
}

// Attach asks the device to start reading a sensor.
func (m *Monitor) Attach(cfg types.SensorConfig) error {
	t, err := dht.ParseType(cfg.Model)
	if err != nil {
		return errcode.Wrap(errcode.Unsupported, "attach", err)
	}
	c := dhtfeature.Command{Op: dhtfeature.OpAttach, Sensor: dhtfeature.SensorConfig{
		Pin: cfg.Pin, Type: t, Blocking: cfg.Blocking, IntervalMs: cfg.IntervalMs,
	}}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.send(firmata.DHTSensorData, dhtfeature.EncodeCommand(c)); err != nil {
		return err
	}
	if m.on {
		// The device refuses a second sensor; readings stay on the first pin.
		m.log.Info("attach sent while attached", "pin", cfg.Pin, "keeping", m.pin)
		return nil
	}
	m.pin, m.on, m.pending = cfg.Pin, true, true
	m.log.Info("attach sent", "pin", cfg.Pin, "model", t.String(), "interval_ms", cfg.IntervalMs)
	return nil
}

// Detach asks the device to stop.
func (m *Monitor) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on, m.pending = false, false
	return m.send(firmata.DHTSensorData, dhtfeature.EncodeCommand(dhtfeature.Command{Op: dhtfeature.OpDetach}))
}

// QueryCapabilities requests the capability table; the answer is published
// on TopicCapability.
func (m *Monitor) QueryCapabilities() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.send(firmata.CapabilityQuery, nil)
}

// Reset sends a system reset, which detaches any sensor.
func (m *Monitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on, m.pending = false, false
	_, err := m.rw.Write([]byte{firmata.SystemReset})
	return err
}

// Run reads frames from the device and serves bus commands until ctx ends
// or the link fails. A closed link returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	attachSub := m.conn.Subscribe(TopicAttach)
	detachSub := m.conn.Subscribe(TopicDetach)
	defer m.conn.Unsubscribe(attachSub)
	defer m.conn.Unsubscribe(detachSub)

	frames := make(chan []firmata.Message, 8)
	errc := make(chan error, 1)
	go m.read(ctx, frames, errc)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		case msgs := <-frames:
			for _, f := range msgs {
				m.handle(f)
			}
		case bm := <-attachSub.Channel():
			var cfg types.SensorConfig
			if err := config.Decode(bm.Payload, &cfg); err != nil {
				m.log.Error(err, "bad attach payload")
				continue
			}
			if err := m.Attach(cfg); err != nil {
				m.log.Error(err, "attach")
			}
		case <-detachSub.Channel():
			if err := m.Detach(); err != nil {
				m.log.Error(err, "detach")
			}
		}
	}
}

func (m *Monitor) read(ctx context.Context, out chan<- []firmata.Message, errc chan<- error) {
	var p firmata.Parser
	buf := make([]byte, 256)
	for {
		n, err := m.rw.Read(buf)
		if n > 0 {
			if msgs := p.Parse(buf[:n]); len(msgs) > 0 {
				select {
				case out <- msgs:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			errc <- err
			return
		}
	}
}

func (m *Monitor) handle(f firmata.Message) {
	if f.Kind != firmata.KindSysex {
		return
	}
	now := timex.NowMs()
	switch f.Command {
	case firmata.DHTSensorData:
		r, err := dhtfeature.DecodeReport(f.Data)
		if err != nil {
			m.log.V(1).Info("bad report", "len", len(f.Data))
			return
		}
		m.mu.Lock()
		pin := m.pin
		m.pending = false
		m.mu.Unlock()
		ev := types.DHTReading{Pin: pin, DeciC: r.DeciCelsius, RHx100: r.CentiPercent, TS: now}
		m.conn.Publish(m.conn.NewMessage(ReadingTopic(pin), ev, false))
	case firmata.StringData:
		text, err := firmata.DecodeString(f.Data)
		if err != nil {
			return
		}
		code := dhtfeature.DiagnosticCode(text)
		m.refused(code)
		ev := types.DHTDiag{Text: text, Code: string(code), TS: now}
		m.log.V(1).Info("diagnostic", "text", text)
		m.conn.Publish(m.conn.NewMessage(TopicDiag, ev, false))
	case firmata.CapabilityResponse:
		m.conn.Publish(m.conn.NewMessage(TopicCapability, dhtPins(f.Data), true))
	}
}

// refused forgets a pending attach the device turned down. AlreadyAttached
// refers to a later attach, so the current pin stands.
func (m *Monitor) refused(code errcode.Code) {
	switch code {
	case errcode.PinNotEligible, errcode.OpenFailed, errcode.InvalidCommand:
	default:
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending {
		m.log.Info("attach refused", "pin", m.pin, "code", string(code))
		m.on, m.pending = false, false
	}
}

// dhtPins walks a capability table (mode,resolution pairs per pin, 0x7F
// terminated) and returns the pins that offer PinModeDHT.
func dhtPins(p []byte) []uint8 {
	var pins []uint8
	pin := 0
	for i := 0; i < len(p); {
		if p[i] == firmata.PinModeIgnore {
			pin++
			i++
			continue
		}
		if p[i] == firmata.PinModeDHT {
			pins = append(pins, uint8(pin))
		}
		i += 2
	}
	return pins
}
