// Package bridge runs a Firmata board over a byte link. It owns the board:
// inbound bytes are parsed and dispatched, and the board's features are
// ticked on a fixed period whether or not a link is up.
package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"firmatadht-go/bus"
	"firmatadht-go/drivers/dht"
	"firmatadht-go/firmata"
	"firmatadht-go/services/config"
	"firmatadht-go/types"
	"firmatadht-go/x/mathx"
	"firmatadht-go/x/timex"
)

// DefaultTick is the board tick period when the config names none.
const DefaultTick = 5 * time.Millisecond

// MaxTick keeps an in-flight fast-loop read polled inside dht.PollWindow.
const MaxTick = dht.PollWindow - time.Millisecond

// tickPeriod converts a configured tick_ms to a ticker period in
// [1ms, MaxTick]. Zero or negative selects DefaultTick.
func tickPeriod(ms int) time.Duration {
	if ms <= 0 {
		return DefaultTick
	}
	return mathx.Clamp(time.Duration(ms)*time.Millisecond, time.Millisecond, MaxTick)
}

// Options wires a Service. Board and Conn are required.
type Options struct {
	Board *firmata.Board
	Conn  *bus.Connection
	Log   logr.Logger
}

// Start runs the bridge until ctx is cancelled. It listens for a
// types.BridgeConfig on "config/bridge" and (re)configures the link.
func Start(ctx context.Context, o Options) {
	s := newService(o)
	s.run(ctx)
}

// Service supervises one link and owns the board.
type Service struct {
	board      *firmata.Board
	conn       *bus.Connection
	log        logr.Logger
	stateTopic bus.Topic

	events chan event

	mu     sync.Mutex
	curRun context.CancelFunc
	gen    int
}

type eventKind uint8

const (
	evUp eventKind = iota
	evData
	evDown
)

// event carries link activity to the owning goroutine. gen tags the link
// generation so a superseded link cannot touch the board.
type event struct {
	kind eventKind
	gen  int
	w    io.Writer
	data []byte
}

func newService(o Options) *Service {
	if o.Log.GetSink() == nil {
		o.Log = logr.Discard()
	}
	return &Service{
		board:      o.Board,
		conn:       o.Conn,
		log:        o.Log.WithName("bridge"),
		stateTopic: bus.T("bridge", "state"),
		events:     make(chan event, 16),
	}
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "bridge"))
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState(types.LinkIdle, "awaiting_config", nil)

	var parser firmata.Parser
	liveGen := -1
	tick := time.NewTicker(DefaultTick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			s.board.SetOutput(nil)
			return

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState(types.LinkError, "config_subscription_closed", nil)
				return
			}
			var cfg types.BridgeConfig
			if err := config.Decode(msg.Payload, &cfg); err != nil {
				s.publishState(types.LinkError, "config_decode_failed", err)
				continue
			}
			period := tickPeriod(cfg.TickMs)
			if period != time.Duration(cfg.TickMs)*time.Millisecond && cfg.TickMs > 0 {
				s.log.Info("tick period clamped", "tick_ms", cfg.TickMs, "period", period.String())
			}
			tick.Reset(period)
			s.board.SetOutput(nil)
			liveGen = s.reconfigure(ctx, cfg)

		case ev := <-s.events:
			if ev.gen != liveGen {
				continue
			}
			switch ev.kind {
			case evUp:
				parser = firmata.Parser{}
				s.board.SetOutput(ev.w)
			case evData:
				for _, m := range parser.Parse(ev.data) {
					s.board.Dispatch(m)
				}
			case evDown:
				s.board.SetOutput(nil)
			}

		case <-tick.C:
			s.board.Update()
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

// reconfigure cancels the running link and starts a new one, returning its
// generation.
func (s *Service) reconfigure(parent context.Context, cfg types.BridgeConfig) int {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.runLink(ctx, gen, cfg)
	return gen
}

func (s *Service) emit(ctx context.Context, ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) runLink(ctx context.Context, gen int, cfg types.BridgeConfig) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState(types.LinkError, "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState(types.LinkDegraded, "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info("link up", "transport", tr.String())
		s.publishState(types.LinkUp, "link_established", nil)
		err = s.handleLink(ctx, gen, rwc)
		_ = rwc.Close()
		if ctx.Err() != nil {
			return
		}
		s.emit(ctx, event{kind: evDown, gen: gen})
		delay := backoff()
		s.publishState(types.LinkDegraded, "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

// handleLink pumps inbound bytes to the owner until the link fails or ctx
// ends.
func (s *Service) handleLink(ctx context.Context, gen int, rwc io.ReadWriteCloser) error {
	if !s.emit(ctx, event{kind: evUp, gen: gen, w: rwc}) {
		return ctx.Err()
	}
	stop := context.AfterFunc(ctx, func() { _ = rwc.Close() })
	defer stop()

	buf := make([]byte, 256)
	for {
		n, err := rwc.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !s.emit(ctx, event{kind: evData, gen: gen, data: data}) {
				return ctx.Err()
			}
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}

func (s *Service) publishState(level types.Link, status string, err error) {
	st := types.LinkState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
		s.log.V(1).Info("state", "level", string(level), "status", status, "err", st.Error)
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
