package types

// Configuration supplied as retained messages on "config/<key>".

// BridgeConfig arrives on "config/bridge".
type BridgeConfig struct {
	Transport TransportConfig `json:"transport"`
	// TickMs is the board tick period. Default 5.
	TickMs int `json:"tick_ms,omitempty"`
}

type TransportConfig struct {
	// "uart", "tcp" or "pipe".
	Type string      `json:"type"`
	UART *UARTConfig `json:"uart,omitempty"`
	TCP  *TCPConfig  `json:"tcp,omitempty"`
	Pipe *PipeConfig `json:"pipe,omitempty"`
}

// UARTConfig is handed to the platform dialler.
type UARTConfig struct {
	Baud  int `json:"baud"`
	RxPin int `json:"rx_pin"`
	TxPin int `json:"tx_pin"`
}

type TCPConfig struct {
	Addr string `json:"addr"`
	// Listen accepts one client at a time instead of dialling Addr.
	Listen bool `json:"listen,omitempty"`
}

// PipeConfig names an in-process endpoint published with shmring.Publish.
type PipeConfig struct {
	Name string `json:"name"`
}

// BoardConfig arrives on "config/board".
type BoardConfig struct {
	Pins          int     `json:"pins,omitempty"`
	InterruptPins []uint8 `json:"interrupt_pins,omitempty"`
	IgnoredPins   []uint8 `json:"ignored_pins,omitempty"`
}

// SensorConfig describes a sensor the monitor attaches on link-up
// ("config/sensor").
type SensorConfig struct {
	Pin        uint8  `json:"pin"`
	Model      string `json:"model"` // "dht11" or "dht22"
	Blocking   bool   `json:"blocking,omitempty"`
	IntervalMs uint32 `json:"interval_ms,omitempty"`
}

// MQTTConfig arrives on "config/mqtt".
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	QoS      byte   `json:"qos,omitempty"`
}
