// Package metrics exposes DHT readings, diagnostics and link state from the
// bus as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firmatadht-go/bus"
	"firmatadht-go/types"
)

type Metrics struct {
	readings    *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	celsius     *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	linkUp      prometheus.Gauge

	gatherer prometheus.Gatherer
	up       atomic.Bool
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_readings_total",
			Help: "Readings reported by the device, by pin.",
		}, []string{"pin"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_diagnostics_total",
			Help: "Diagnostics reported by the device, by code.",
		}, []string{"code"}),
		celsius: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dht_temperature_celsius",
			Help: "Last reported temperature.",
		}, []string{"pin"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dht_humidity_percent",
			Help: "Last reported relative humidity.",
		}, []string{"pin"}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht_link_up",
			Help: "1 while the bridge link is established.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.readings, m.diagnostics, m.celsius, m.humidity, m.linkUp)
	return m
}

// Observe folds one bus message into the metrics.
func (m *Metrics) Observe(msg *bus.Message) {
	switch ev := msg.Payload.(type) {
	case types.DHTReading:
		pin := strconv.Itoa(int(ev.Pin))
		m.readings.WithLabelValues(pin).Inc()
		m.celsius.WithLabelValues(pin).Set(float64(ev.DeciC) / 10)
		m.humidity.WithLabelValues(pin).Set(float64(ev.RHx100) / 100)
	case types.DHTDiag:
		m.diagnostics.WithLabelValues(ev.Code).Inc()
	case types.LinkState:
		up := ev.Level == types.LinkUp
		m.up.Store(up)
		if up {
			m.linkUp.Set(1)
		} else {
			m.linkUp.Set(0)
		}
	}
}

// Run observes the bus until ctx ends.
func (m *Metrics) Run(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T(bus.Rest))
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			m.Observe(msg)
		}
	}
}

// LinkUp reports the last observed bridge level.
func (m *Metrics) LinkUp() bool { return m.up.Load() }

// Router serves /metrics and /healthz. /healthz is 503 while the link is
// down.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !m.LinkUp() {
			http.Error(w, "link down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}
