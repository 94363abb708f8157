package config

// Embedded configuration. Key: device ID; value: raw JSON object.

const cfgPico = `{
  "bridge": {
    "transport": {"type": "uart", "uart": {"baud": 57600, "rx_pin": 1, "tx_pin": 0}},
    "tick_ms": 5
  },
  "board": {
    "pins": 30,
    "ignored_pins": [0, 1]
  }
}`

const cfgSim = `{
  "bridge": {
    "transport": {"type": "pipe", "pipe": {"name": "dht0"}},
    "tick_ms": 5
  },
  "board": {
    "pins": 30,
    "interrupt_pins": [2, 3, 4, 5, 6, 7, 8, 9]
  },
  "sensor": {"pin": 3, "model": "dht22", "interval_ms": 2000},
  "mqtt": {"broker": "", "prefix": "firmatadht"}
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
