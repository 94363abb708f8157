//go:build !(rp2040 || rp2350)

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"firmatadht-go/bus"
	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/services/bridge"
	"firmatadht-go/services/config"
	"firmatadht-go/services/dhtfeature"
	"firmatadht-go/services/heartbeat"
	"firmatadht-go/services/metrics"
	"firmatadht-go/services/monitor"
	"firmatadht-go/services/mqttpub"
	"firmatadht-go/types"
	"firmatadht-go/x/shmring"
	"firmatadht-go/x/timex"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a board with the DHT feature and monitor it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, o)
		},
	}
	f := cmd.Flags()
	f.Bool("gpio", false, "open sensors on Linux GPIO lines instead of simulating them")
	f.Float32("celsius", 21.5, "simulated temperature")
	f.Float32("humidity", 40, "simulated relative humidity")
	f.Int("fail-every", 0, "simulated sensor fails every Nth read")
	f.String("listen", ":9108", "metrics/health listen address (empty disables)")
	f.String("mqtt", "", "MQTT broker URL, overrides config")
	_ = o.v.BindPFlags(f)
	return cmd
}

func run(ctx context.Context, o *rootOptions) error {
	log := o.log
	v := o.v
	b := bus.NewBus(32)

	if err := config.NewConfigService(log).Publish(config.WithDevice(ctx, device), b.NewConnection("config")); err != nil {
		return err
	}
	cfgConn := b.NewConnection("main")
	var bc types.BoardConfig
	_ = retained(cfgConn, bus.T("config", "board"), &bc)
	var sc types.SensorConfig
	haveSensor := retained(cfgConn, bus.T("config", "sensor"), &sc) == nil
	var mc types.MQTTConfig
	_ = retained(cfgConn, bus.T("config", "mqtt"), &mc)
	if u := v.GetString("mqtt"); u != "" {
		mc.Broker = u
	}

	// Device side.
	board := firmata.NewBoard(firmata.BoardConfig{
		Pins:          bc.Pins,
		InterruptPins: bc.InterruptPins,
		IgnoredPins:   bc.IgnoredPins,
	}, log.WithName("board"))
	open := dht.SimOpener(timex.NewMonoClock(), dht.SimConfig{
		Celsius:   float32(v.GetFloat64("celsius")),
		Humidity:  float32(v.GetFloat64("humidity")),
		FailEvery: v.GetInt("fail-every"),
		Sleep:     time.Sleep,
	}, nil)
	if v.GetBool("gpio") {
		open = dht.OpenGPIO
	}
	drv := dhtfeature.New(dhtfeature.Options{Host: board, Open: open, Log: log})
	board.AddFeature(drv)

	devEnd, hostEnd := shmring.Pipe(1024)
	shmring.Publish("dht0", devEnd)
	defer hostEnd.Close()
	go bridge.Start(ctx, bridge.Options{Board: board, Conn: b.NewConnection("bridge"), Log: log})

	(&heartbeat.Service{State: func() string { return drv.State().String() }, Log: log}).
		Start(ctx, b.NewConnection("heartbeat"))

	// Host side.
	m := metrics.New(nil)
	go m.Run(ctx, b.NewConnection("metrics"))
	if addr := v.GetString("listen"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics server")
			}
		}()
		defer srv.Close()
	}
	if mc.Broker != "" {
		sink, err := mqttpub.Dial(mc, log)
		if err != nil {
			return err
		}
		defer sink.Close()
		go mqttpub.NewForwarder(sink, b.NewConnection("mqtt"), mc, log).Run(ctx)
	}
	go logEvents(ctx, b.NewConnection("log"), log)

	mon := monitor.New(hostEnd, b.NewConnection("monitor"), log)
	if haveSensor {
		go attachWhenUp(ctx, b.NewConnection("attach"), mon, sc, log)
	}
	return mon.Run(ctx)
}

// retained decodes the retained message on topic into v.
func retained[T any](conn *bus.Connection, topic bus.Topic, v *T) error {
	sub := conn.Subscribe(topic)
	defer conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return config.Decode(m.Payload, v)
	default:
		return errors.New("no retained " + topic.String())
	}
}

// attachWhenUp sends the configured attach once the bridge reports the link
// established.
func attachWhenUp(ctx context.Context, conn *bus.Connection, mon *monitor.Monitor, sc types.SensorConfig, log logr.Logger) {
	sub := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.LinkState); ok && st.Level == types.LinkUp {
				if err := mon.Attach(sc); err != nil {
					log.Error(err, "attach")
				}
				return
			}
		}
	}
}

func logEvents(ctx context.Context, conn *bus.Connection, log logr.Logger) {
	readings := conn.Subscribe(monitor.TopicReadings)
	diags := conn.Subscribe(monitor.TopicDiag)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-readings.Channel():
			r := m.Payload.(types.DHTReading)
			log.Info("reading", "pin", r.Pin, "celsius", float64(r.DeciC)/10, "percent", float64(r.RHx100)/100)
		case m := <-diags.Channel():
			d := m.Payload.(types.DHTDiag)
			log.Info("diagnostic", "text", d.Text, "code", d.Code)
		}
	}
}
