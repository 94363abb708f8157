// Package config publishes a device's embedded configuration as retained
// bus messages, one per top-level key, on "config/<key>".
package config

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"firmatadht-go/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type deviceKey struct{}

// WithDevice returns a context carrying the device ID Start publishes for.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

var (
	mu       sync.RWMutex
	overlays = map[string][]byte{}
)

// Register sets the raw JSON object for device, taking precedence over the
// embedded defaults. Host builds use it to feed file-based configuration.
func Register(device string, raw []byte) {
	mu.Lock()
	overlays[device] = raw
	mu.Unlock()
}

// Lookup resolves the raw configuration for device.
func Lookup(device string) ([]byte, bool) {
	mu.RLock()
	b, ok := overlays[device]
	mu.RUnlock()
	if ok {
		return b, true
	}
	b, ok = embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
	log  logr.Logger
}

func NewConfigService(log logr.Logger) *ConfigService {
	return &ConfigService{Name: serviceName, log: log.WithName(serviceName)}
}

// Publish sends every top-level key of the device config as a retained
// message whose payload is the key's raw JSON ([]byte).
func (s *ConfigService) Publish(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(deviceKey{}).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	raw, ok := Lookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no config for device: " + device)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), []byte(v), true))
	}
	s.log.V(1).Info("published", "device", device, "keys", len(m))
	return nil
}

// Start publishes in a goroutine; failures are logged.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.Publish(ctx, conn); err != nil {
			s.log.Error(err, "publish failed")
		}
	}()
}

// Decode unmarshals a config payload into v. Payloads are raw JSON bytes or
// strings from this service, or already-typed values published in-process.
func Decode[T any](payload any, v *T) error {
	switch p := payload.(type) {
	case []byte:
		return json.Unmarshal(p, v)
	case string:
		return json.Unmarshal([]byte(p), v)
	case T:
		*v = p
		return nil
	case *T:
		*v = *p
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
