//go:build !(rp2040 || rp2350)

// Command dhtsim runs the DHT Firmata feature on the host: against a
// simulated or Linux GPIO sensor, with the host side of the link decoding
// readings onto a bus that feeds metrics and MQTT.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
