//go:build !(rp2040 || rp2350)

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/services/dhtfeature"
)

func hexFrame(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, " ")
}

func newFrameCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Print encoded DHT sysex frames",
	}

	attach := &cobra.Command{
		Use:   "attach",
		Short: "Attach command frame",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			pin, _ := f.GetUint8("pin")
			model, _ := f.GetString("model")
			blocking, _ := f.GetBool("blocking")
			interval, _ := f.GetUint32("interval")
			t, err := dht.ParseType(model)
			if err != nil {
				return fmt.Errorf("model %q: %w", model, err)
			}
			c := dhtfeature.Command{Op: dhtfeature.OpAttach, Sensor: dhtfeature.SensorConfig{
				Pin: pin, Type: t, Blocking: blocking, IntervalMs: interval,
			}}
			fmt.Fprintln(cmd.OutOrStdout(), hexFrame(firmata.Sysex(firmata.DHTSensorData, dhtfeature.EncodeCommand(c))))
			return nil
		},
	}
	attach.Flags().Uint8("pin", 3, "sensor pin")
	attach.Flags().String("model", "dht22", "dht11 or dht22")
	attach.Flags().Bool("blocking", false, "use blocking acquisition")
	attach.Flags().Uint32("interval", 0, "interval in ms (0 omits the field)")

	detach := &cobra.Command{
		Use:   "detach",
		Short: "Detach command frame",
		Run: func(cmd *cobra.Command, _ []string) {
			c := dhtfeature.Command{Op: dhtfeature.OpDetach}
			fmt.Fprintln(cmd.OutOrStdout(), hexFrame(firmata.Sysex(firmata.DHTSensorData, dhtfeature.EncodeCommand(c))))
		},
	}

	report := &cobra.Command{
		Use:   "report",
		Short: "Report frame for a reading",
		Run: func(cmd *cobra.Command, _ []string) {
			c, _ := cmd.Flags().GetFloat64("celsius")
			h, _ := cmd.Flags().GetFloat64("humidity")
			r := dhtfeature.NewReading(c, h)
			fmt.Fprintln(cmd.OutOrStdout(), hexFrame(firmata.Sysex(firmata.DHTSensorData, dhtfeature.EncodeReport(r))))
		},
	}
	report.Flags().Float64("celsius", 21.5, "temperature")
	report.Flags().Float64("humidity", 40.25, "relative humidity")

	cmd.AddCommand(attach, detach, report)
	return cmd
}

func newDecodeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX...",
		Short: "Decode device-to-host frames (reports and diagnostics)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.Join(args, ""))
			if err != nil {
				return err
			}
			var p firmata.Parser
			msgs := p.Parse(raw)
			if len(msgs) == 0 {
				return errors.New("no complete frame")
			}
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), describe(m))
			}
			return nil
		},
	}
}

func describe(m firmata.Message) string {
	switch {
	case m.Kind == firmata.KindReset:
		return "reset"
	case m.Kind == firmata.KindSetPinMode:
		return fmt.Sprintf("set pin %d mode 0x%02X", m.Data[0], m.Data[1])
	case m.Command == firmata.DHTSensorData:
		if r, err := dhtfeature.DecodeReport(m.Data); err == nil {
			return fmt.Sprintf("report %.1f °C %.2f %%RH", r.Celsius(), r.Percent())
		}
		c, err := dhtfeature.DecodeCommand(m.Data)
		if err != nil {
			return "dht: " + err.Error()
		}
		if c.Op == dhtfeature.OpDetach {
			return "detach"
		}
		return fmt.Sprintf("attach pin %d %s blocking=%t interval=%dms",
			c.Sensor.Pin, c.Sensor.Type, c.Sensor.Blocking, c.Sensor.IntervalMs)
	case m.Command == firmata.StringData:
		s, err := firmata.DecodeString(m.Data)
		if err != nil {
			return "string: " + err.Error()
		}
		return fmt.Sprintf("string %q (%s)", s, dhtfeature.DiagnosticCode(s))
	}
	return fmt.Sprintf("sysex 0x%02X (%d bytes)", m.Command, len(m.Data))
}
