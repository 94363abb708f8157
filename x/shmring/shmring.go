// Package shmring provides a single-producer single-consumer byte ring and
// an in-process duplex pipe built from two of them. Pipe ends can be
// published under a name so a transport can pick them up by configuration.
package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring. Indices are
// free-running; the mask selects the slot.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32
	wr   atomic.Uint32

	readable chan struct{} // empty -> non-empty
	writable chan struct{} // full -> non-full
}

// New allocates a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Available is the number of bytes ready to read.
func (r *Ring) Available() int { return int(r.wr.Load() - r.rd.Load()) }

// Space is the number of bytes that can be written without blocking.
func (r *Ring) Space() int { return int(r.size()) - r.Available() }

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	used := wr - rd
	n := min(len(src), int(r.size()-used))
	if n <= 0 {
		return 0
	}
	at := wr & r.mask
	k := copy(r.buf[at:], src[:n])
	copy(r.buf, src[k:n])
	r.wr.Store(wr + uint32(n))
	if used == 0 {
		signal(r.readable)
	}
	return n
}

// TryReadInto copies up to len(dst) bytes out and returns the count.
func (r *Ring) TryReadInto(dst []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	used := wr - rd
	n := min(len(dst), int(used))
	if n <= 0 {
		return 0
	}
	at := rd & r.mask
	k := copy(dst[:n], r.buf[at:])
	copy(dst[k:n], r.buf)
	r.rd.Store(rd + uint32(n))
	if used == r.size() {
		signal(r.writable)
	}
	return n
}

// Readable fires after the ring goes from empty to non-empty. Signals
// coalesce.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Writable fires after the ring goes from full to non-full.
func (r *Ring) Writable() <-chan struct{} { return r.writable }

func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
