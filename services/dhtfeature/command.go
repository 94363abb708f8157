package dhtfeature

import (
	"firmatadht-go/drivers/dht"
	"firmatadht-go/errcode"
	"firmatadht-go/firmata"
	"firmatadht-go/x/varint"
)

// Sub-commands of the DHTSensorData sysex.
const (
	SubDetach      byte = 0x00
	SubAttachDHT11 byte = 0x01
	SubAttachDHT22 byte = 0x02
)

// Op is what a command asks for.
type Op uint8

const (
	OpDetach Op = iota
	OpAttach
)

// Command is a decoded DHTSensorData sysex.
type Command struct {
	Op     Op
	Sensor SensorConfig // attach only; IntervalMs unclamped
}

// DecodeCommand parses argv (the sysex payload after the command byte).
// Attach layout: sub, pin, [blocking], [interval varint...].
func DecodeCommand(argv []byte) (Command, error) {
	if len(argv) == 0 {
		return Command{}, errcode.ShortFrame
	}
	switch argv[0] {
	case SubDetach:
		return Command{Op: OpDetach}, nil
	case SubAttachDHT11, SubAttachDHT22:
	default:
		return Command{}, errcode.InvalidCommand
	}
	if len(argv) < 2 {
		return Command{}, errcode.ShortFrame
	}
	c := Command{Op: OpAttach, Sensor: SensorConfig{Pin: argv[1], Type: dht.DHT11}}
	if argv[0] == SubAttachDHT22 {
		c.Sensor.Type = dht.DHT22
	}
	if len(argv) > 2 {
		c.Sensor.Blocking = argv[2] != 0
	}
	if len(argv) > 3 {
		c.Sensor.IntervalMs = varint.Decode(argv[3:])
	}
	return c, nil
}

// EncodeCommand builds the sysex payload for c. Optional attach fields are
// omitted when they hold their defaults.
func EncodeCommand(c Command) []byte {
	if c.Op == OpDetach {
		return []byte{SubDetach}
	}
	sub := SubAttachDHT11
	if c.Sensor.Type == dht.DHT22 {
		sub = SubAttachDHT22
	}
	p := []byte{sub, c.Sensor.Pin & 0x7F}
	if c.Sensor.Blocking || c.Sensor.IntervalMs != 0 {
		var b byte
		if c.Sensor.Blocking {
			b = 1
		}
		p = append(p, b)
	}
	if c.Sensor.IntervalMs != 0 {
		p = append(p, varint.Encode(c.Sensor.IntervalMs)...)
	}
	return p
}

// HandleSysex consumes DHTSensorData commands. Frames too short to carry a
// command are left for other features; everything else is consumed, with
// refusals reported as diagnostics.
func (d *Driver) HandleSysex(command byte, argv []byte) bool {
	if command != firmata.DHTSensorData {
		return false
	}
	c, err := DecodeCommand(argv)
	switch errcode.Of(err) {
	case errcode.OK:
	case errcode.InvalidCommand:
		d.host.SendString(msgInvalidCommand)
		return true
	default:
		return false
	}
	if c.Op == OpDetach {
		d.Detach()
		return true
	}
	if err := d.Attach(c.Sensor); err != nil {
		d.log.V(1).Info("attach refused", "pin", c.Sensor.Pin, "code", string(errcode.Of(err)))
	}
	return true
}
