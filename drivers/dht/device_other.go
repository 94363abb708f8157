//go:build !linux && !(rp2040 || rp2350)

package dht

// OpenGPIO is only available on linux hosts.
func OpenGPIO(pin uint8, t Type) (Device, error) {
	return nil, ErrUnsupported
}
