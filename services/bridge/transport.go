package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"firmatadht-go/types"
	"firmatadht-go/x/shmring"
)

// Transport is a pluggable link dialler.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(types.TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("UARTDial not set")
)

// RegisterTransport adds or overrides a transport type.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg types.TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		if cfg.UART == nil {
			return nil, errors.New("uart transport requires uart config")
		}
		return &uartTransport{cfg: *cfg.UART}, nil
	case "tcp":
		if cfg.TCP == nil || cfg.TCP.Addr == "" {
			return nil, errors.New("tcp transport requires an address")
		}
		return &tcpTransport{cfg: *cfg.TCP}, nil
	case "pipe":
		if cfg.Pipe == nil || cfg.Pipe.Name == "" {
			return nil, errors.New("pipe transport requires a name")
		}
		return pipeTransport(cfg.Pipe.Name), nil
	}
	return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
}

// UARTDial is injected by platform code. It must return an
// io.ReadWriteCloser over the configured UART.
var UARTDial func(ctx context.Context, u types.UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct{ cfg types.UARTConfig }

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, u.cfg)
}

func (u *uartTransport) String() string { return "uart" }

// tcpTransport dials Addr, or with Listen accepts one client per Open.
type tcpTransport struct {
	cfg types.TCPConfig

	mu sync.Mutex
	ln net.Listener
}

func (t *tcpTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if !t.cfg.Listen {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", t.cfg.Addr)
	}
	t.mu.Lock()
	if t.ln == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", t.cfg.Addr)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.ln = ln
		context.AfterFunc(ctx, func() { _ = ln.Close() })
	}
	ln := t.ln
	t.mu.Unlock()
	return ln.Accept()
}

func (t *tcpTransport) String() string { return "tcp " + t.cfg.Addr }

// pipeTransport takes an in-process endpoint published with shmring.Publish.
type pipeTransport string

func (p pipeTransport) Open(context.Context) (io.ReadWriteCloser, error) {
	return shmring.Take(string(p))
}

func (p pipeTransport) String() string { return "pipe " + string(p) }
