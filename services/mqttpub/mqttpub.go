// Package mqttpub forwards DHT events and link state from the bus to an
// MQTT broker as JSON.
package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"firmatadht-go/bus"
	"firmatadht-go/types"
)

const defaultPrefix = "firmatadht"

// Sink is where encoded events go.
type Sink interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Paho is a Sink over a paho client.
type Paho struct {
	c       mqtt.Client
	timeout time.Duration
}

// ClientID returns cfg.ClientID or a fresh random one.
func ClientID(cfg types.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "firmatadht-" + uuid.NewString()
}

// Dial connects to cfg.Broker (e.g. "tcp://localhost:1883").
func Dial(cfg types.MQTTConfig, log logr.Logger) (*Paho, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: no broker")
	}
	id := ClientID(cfg)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(id)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error(err, "mqtt connection lost", "client_id", id)
	})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqtt: connect timed out")
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	log.Info("mqtt connected", "broker", cfg.Broker, "client_id", id)
	return &Paho{c: c, timeout: 5 * time.Second}, nil
}

func (p *Paho) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := p.c.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(p.timeout) {
		return errors.New("mqtt: publish timed out")
	}
	return tok.Error()
}

// Close disconnects, allowing 250 ms for in-flight work.
func (p *Paho) Close() { p.c.Disconnect(250) }

// Forwarder copies bus events to a Sink.
type Forwarder struct {
	sink   Sink
	conn   *bus.Connection
	prefix string
	qos    byte
	log    logr.Logger
}

func NewForwarder(sink Sink, conn *bus.Connection, cfg types.MQTTConfig, log logr.Logger) *Forwarder {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Forwarder{sink: sink, conn: conn, prefix: cfg.Prefix, qos: cfg.QoS, log: log.WithName("mqtt")}
}

// Run forwards until ctx ends. Link state is published retained.
func (f *Forwarder) Run(ctx context.Context) {
	subs := []*bus.Subscription{
		f.conn.Subscribe(bus.T("dht", "reading", bus.Any)),
		f.conn.Subscribe(bus.T("dht", "diag")),
		f.conn.Subscribe(bus.T("bridge", "state")),
	}
	defer func() {
		for _, s := range subs {
			f.conn.Unsubscribe(s)
		}
	}()
	for {
		var m *bus.Message
		select {
		case <-ctx.Done():
			return
		case m = <-subs[0].Channel():
		case m = <-subs[1].Channel():
		case m = <-subs[2].Channel():
		}
		if m == nil {
			continue
		}
		f.forward(m)
	}
}

func (f *Forwarder) forward(m *bus.Message) {
	retained := false
	switch m.Payload.(type) {
	case types.DHTReading, types.DHTDiag:
	case types.LinkState:
		retained = true
	default:
		return
	}
	b, err := json.Marshal(m.Payload)
	if err != nil {
		f.log.Error(err, "encode", "topic", m.Topic.String())
		return
	}
	topic := f.prefix + "/" + m.Topic.String()
	if err := f.sink.Publish(topic, f.qos, retained, b); err != nil {
		f.log.V(1).Info("publish failed", "topic", topic, "err", err.Error())
	}
}
