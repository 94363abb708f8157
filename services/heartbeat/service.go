// Package heartbeat publishes a periodic liveness beat carrying the
// attached sensor's state. The period comes from "config/heartbeat"
// ({"interval": seconds}).
package heartbeat

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"firmatadht-go/bus"
	"firmatadht-go/services/config"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	TopicHeartbeat       = bus.T("heartbeat")
)

// Beat is the heartbeat payload.
type Beat struct {
	Seq    uint32 `json:"seq"`
	State  string `json:"state"`
	Uptime int64  `json:"uptime_s"`
}

type Config struct {
	Interval float64 `json:"interval"` // seconds
}

type Service struct {
	// State reports the sensor state for each beat. Optional.
	State func() string
	Log   logr.Logger
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	start := time.Now()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	var seq uint32
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("heartbeat stopping")
			return
		case <-tick.C:
			seq++
			b := Beat{Seq: seq, Uptime: int64(time.Since(start) / time.Second)}
			if s.State != nil {
				b.State = s.State()
			}
			s.Log.V(1).Info("beat", "seq", b.Seq, "state", b.State)
			conn.Publish(conn.NewMessage(TopicHeartbeat, b, false))
		case msg := <-cfgSub.Channel():
			var c Config
			if err := config.Decode(msg.Payload, &c); err != nil || c.Interval <= 0 {
				s.Log.V(1).Info("ignoring heartbeat config")
				continue
			}
			tick.Reset(time.Duration(c.Interval * float64(time.Second)))
			s.Log.Info("heartbeat interval set", "seconds", c.Interval)
		}
	}
}

// Start runs the service in a goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	if s.Log.GetSink() == nil {
		s.Log = logr.Discard()
	}
	go s.serviceLoop(ctx, conn)
}
