//go:build rp2040 || rp2350

// Command pico-dht is the device firmware: a Firmata board with the DHT
// feature, served over UART0.
package main

import (
	"context"
	"time"

	"firmatadht-go/bus"
	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/services/bridge"
	"firmatadht-go/services/config"
	"firmatadht-go/services/dhtfeature"
	"firmatadht-go/services/heartbeat"
	"firmatadht-go/types"
	"firmatadht-go/x/logx"
)

const device = "pico"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	log := logx.Stderr(logx.VInfo)
	log.Info("boot", "device", device)

	ctx := context.Background()
	b := bus.NewBus(8)
	config.NewConfigService(log).Start(config.WithDevice(ctx, device), b.NewConnection("config"))

	bc := boardConfig(b.NewConnection("main"))
	board := firmata.NewBoard(firmata.BoardConfig{
		Pins:          bc.Pins,
		InterruptPins: bc.InterruptPins,
		IgnoredPins:   bc.IgnoredPins,
	}, log.WithName("board"))
	drv := dhtfeature.New(dhtfeature.Options{Host: board, Open: dht.OpenGPIO, Log: log})
	board.AddFeature(drv)

	bridge.UARTDial = dialUART

	hb := &heartbeat.Service{State: func() string { return drv.State().String() }, Log: log}
	hb.Start(ctx, b.NewConnection("heartbeat"))

	bridge.Start(ctx, bridge.Options{Board: board, Conn: b.NewConnection("bridge"), Log: log})
}

// boardConfig waits briefly for the retained board config.
func boardConfig(conn *bus.Connection) types.BoardConfig {
	sub := conn.Subscribe(bus.T("config", "board"))
	defer conn.Unsubscribe(sub)
	var bc types.BoardConfig
	select {
	case m := <-sub.Channel():
		_ = config.Decode(m.Payload, &bc)
	case <-time.After(time.Second):
	}
	return bc
}
