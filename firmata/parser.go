package firmata

// Kind classifies a parsed inbound message.
type Kind uint8

const (
	KindSysex Kind = iota + 1
	KindSetPinMode
	KindReset
)

// Message is one complete inbound message.
type Message struct {
	Kind    Kind
	Command byte   // sysex command; unused otherwise
	Data    []byte // sysex payload, or {pin, mode} for KindSetPinMode
}

type parseState uint8

const (
	stIdle parseState = iota
	stSysex
	stPinMode
	stSkip
)

// Parser splits a byte stream into messages. Unknown status bytes and their
// data are skipped; oversized sysex messages are dropped.
type Parser struct {
	st       parseState
	buf      []byte
	overflow bool
	need     int
}

// Feed consumes one byte and returns a message when one completes.
func (p *Parser) Feed(b byte) (Message, bool) {
	if b&0x80 != 0 {
		return p.status(b)
	}
	switch p.st {
	case stSysex:
		if len(p.buf) >= MaxSysex+1 {
			p.overflow = true
			return Message{}, false
		}
		p.buf = append(p.buf, b)
	case stPinMode:
		p.buf = append(p.buf, b)
		if len(p.buf) == 2 {
			p.st = stIdle
			return Message{Kind: KindSetPinMode, Data: []byte{p.buf[0], p.buf[1]}}, true
		}
	case stSkip:
		p.need--
		if p.need <= 0 {
			p.st = stIdle
		}
	}
	return Message{}, false
}

func (p *Parser) status(b byte) (Message, bool) {
	if b == EndSysex && p.st == stSysex {
		p.st = stIdle
		if p.overflow || len(p.buf) == 0 {
			return Message{}, false
		}
		data := make([]byte, len(p.buf)-1)
		copy(data, p.buf[1:])
		return Message{Kind: KindSysex, Command: p.buf[0], Data: data}, true
	}
	p.buf = p.buf[:0]
	p.overflow = false
	switch {
	case b == StartSysex:
		p.st = stSysex
	case b == SetPinMode:
		p.st = stPinMode
	case b == SystemReset:
		p.st = stIdle
		return Message{Kind: KindReset}, true
	case b >= 0x80 && b < 0xF0:
		// Channel messages: program change and channel pressure carry one
		// data byte, the rest two.
		p.st = stSkip
		p.need = 2
		if hi := b & 0xF0; hi == 0xC0 || hi == 0xD0 {
			p.need = 1
		}
	default:
		p.st = stIdle
	}
	return Message{}, false
}

// Parse feeds every byte of b and returns the completed messages.
func (p *Parser) Parse(b []byte) []Message {
	var out []Message
	for _, c := range b {
		if m, ok := p.Feed(c); ok {
			out = append(out, m)
		}
	}
	return out
}
