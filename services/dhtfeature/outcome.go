package dhtfeature

import (
	"errors"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/errcode"
)

// Kind classifies the result of one acquisition.
type Kind uint8

const (
	KindOK Kind = iota
	KindChecksum
	KindTimeout
	KindAcquiring
	KindDelta
	KindNotStarted
	KindUnknown
)

// KindOf maps a driver error to its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, dht.ErrChecksum):
		return KindChecksum
	case errors.Is(err, dht.ErrTimeout):
		return KindTimeout
	case errors.Is(err, dht.ErrAcquiring):
		return KindAcquiring
	case errors.Is(err, dht.ErrDelta):
		return KindDelta
	case errors.Is(err, dht.ErrNotStarted):
		return KindNotStarted
	}
	return KindUnknown
}

func (k Kind) String() string { return string(k.Code()) }

// Code is the wire-facing error code for k.
func (k Kind) Code() errcode.Code {
	switch k {
	case KindOK:
		return errcode.OK
	case KindChecksum:
		return errcode.Checksum
	case KindTimeout:
		return errcode.Timeout
	case KindAcquiring:
		return errcode.Acquiring
	case KindDelta:
		return errcode.Delta
	case KindNotStarted:
		return errcode.NotStarted
	}
	return errcode.Error
}

// Message is the diagnostic text sent to the host for a failed acquisition.
func (k Kind) Message() string {
	switch k {
	case KindOK:
		return ""
	case KindChecksum:
		return "DHT Error: Checksum error"
	case KindTimeout:
		return "DHT Error: Time out error"
	case KindAcquiring:
		return "DHT Error: Acquiring"
	case KindDelta:
		return "DHT Error: Delta time too small"
	case KindNotStarted:
		return "DHT Error: Not started"
	}
	return "DHT Error: Unknown error"
}

// Outcome is the result of one polling attempt: a Reading when Kind is
// KindOK, a failure Kind otherwise.
type Outcome struct {
	Reading Reading
	Kind    Kind
}

func (o Outcome) OK() bool { return o.Kind == KindOK }

// outcomeOf reads the completed acquisition from dev.
func outcomeOf(dev dht.Device) Outcome {
	if k := KindOf(dev.Status()); k != KindOK {
		return Outcome{Kind: k}
	}
	return Outcome{Reading: NewReading(float64(dev.Celsius()), float64(dev.Humidity()))}
}

// DiagnosticCode classifies a diagnostic text sent by a Driver. Texts the
// driver never sends map to errcode.Error.
func DiagnosticCode(text string) errcode.Code {
	switch text {
	case msgAlreadyAttached:
		return errcode.AlreadyAttached
	case msgPinNotEligible:
		return errcode.PinNotEligible
	case msgInvalidCommand:
		return errcode.InvalidCommand
	case msgOpenFailed:
		return errcode.OpenFailed
	}
	for k := KindChecksum; k <= KindUnknown; k++ {
		if k.Message() == text {
			return k.Code()
		}
	}
	return errcode.Error
}
