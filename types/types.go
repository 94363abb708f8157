package types

// ---- Service state (retained) ----

// Link is the level reported for a link or service.
type Link string

const (
	LinkIdle     Link = "idle"
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
	LinkError    Link = "error"
)

// LinkState is published retained on "<service>/state".
type LinkState struct {
	Level  Link   `json:"level"`
	Status string `json:"status"` // short machine string
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// ---- DHT events ----

// DHTReading is published on "dht/reading/<pin>".
type DHTReading struct {
	Pin uint8 `json:"pin"`
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
	TS     int64  `json:"ts_ms"`
}

// DHTDiag is a diagnostic string from the device, published on "dht/diag".
type DHTDiag struct {
	Text string `json:"text"`
	Code string `json:"code"`
	TS   int64  `json:"ts_ms"`
}
