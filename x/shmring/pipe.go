package shmring

import (
	"errors"
	"io"
	"sync"
)

// ErrNoEndpoint is returned by Take for an unknown name.
var ErrNoEndpoint = errors.New("shmring: no such endpoint")

// End is one side of a Pipe. Read and Write block; closing either end
// unblocks both. Bytes already written stay readable after close.
type End struct {
	rx, tx *Ring
	done   chan struct{}
	once   *sync.Once
}

var _ io.ReadWriteCloser = (*End)(nil)

// Pipe returns two connected ends, each direction buffered by size bytes.
func Pipe(size int) (*End, *End) {
	ab, ba := New(size), New(size)
	done := make(chan struct{})
	once := new(sync.Once)
	return &End{rx: ba, tx: ab, done: done, once: once},
		&End{rx: ab, tx: ba, done: done, once: once}
}

func (e *End) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := e.rx.TryReadInto(p); n > 0 {
			return n, nil
		}
		select {
		case <-e.rx.Readable():
		case <-e.done:
			if n := e.rx.TryReadInto(p); n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
	}
}

func (e *End) Write(p []byte) (int, error) {
	var n int
	for n < len(p) {
		select {
		case <-e.done:
			return n, io.ErrClosedPipe
		default:
		}
		if k := e.tx.TryWriteFrom(p[n:]); k > 0 {
			n += k
			continue
		}
		select {
		case <-e.tx.Writable():
		case <-e.done:
			return n, io.ErrClosedPipe
		}
	}
	return n, nil
}

// Close shuts both directions. It is safe to call more than once.
func (e *End) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}

var (
	regMu sync.Mutex
	named = map[string]io.ReadWriteCloser{}
)

// Publish makes rwc available to one Take under name, replacing any
// previous endpoint of that name.
func Publish(name string, rwc io.ReadWriteCloser) {
	regMu.Lock()
	named[name] = rwc
	regMu.Unlock()
}

// Take removes and returns the endpoint published under name.
func Take(name string) (io.ReadWriteCloser, error) {
	regMu.Lock()
	defer regMu.Unlock()
	rwc, ok := named[name]
	if !ok {
		return nil, ErrNoEndpoint
	}
	delete(named, name)
	return rwc, nil
}
