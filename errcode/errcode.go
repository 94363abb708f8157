package errcode

import (
	"errors"

	"firmatadht-go/drivers/dht"
)

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK          Code = "ok"
	Unsupported Code = "unsupported"
	Timeout     Code = "timeout"

	// Command frames.
	ShortFrame     Code = "short_frame"
	InvalidCommand Code = "invalid_command"

	// Attach/detach.
	AlreadyAttached Code = "already_attached"
	PinNotEligible  Code = "pin_not_eligible"
	OpenFailed      Code = "open_failed"

	// Acquisition.
	Checksum   Code = "checksum"
	Acquiring  Code = "acquiring"
	Delta      Code = "delta"
	NotStarted Code = "not_started"

	// Link.
	LinkDown Code = "link_down"

	Error Code = "error" // generic fallback
)

// E wraps a Code with an operation, a message and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr maps DHT driver errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, dht.ErrChecksum):
		return Checksum
	case errors.Is(err, dht.ErrTimeout):
		return Timeout
	case errors.Is(err, dht.ErrAcquiring):
		return Acquiring
	case errors.Is(err, dht.ErrDelta):
		return Delta
	case errors.Is(err, dht.ErrNotStarted):
		return NotStarted
	case errors.Is(err, dht.ErrUnsupported):
		return Unsupported
	}
	return Error
}
