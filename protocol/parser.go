package protocol

import (
	"fmt"

	"p2plink/message"
)

// ParseState is the parser's position within a frame.
type ParseState uint8

const (
	WaitSync1 ParseState = iota
	WaitSync2
	WaitID
	WaitLength
	WaitData
	WaitChecksum
)

func (s ParseState) String() string {
	switch s {
	case WaitSync1:
		return "WaitSync1"
	case WaitSync2:
		return "WaitSync2"
	case WaitID:
		return "WaitId"
	case WaitLength:
		return "WaitLength"
	case WaitData:
		return "WaitData"
	case WaitChecksum:
		return "WaitChecksum"
	default:
		return fmt.Sprintf("ParseState(%d)", uint8(s))
	}
}

// Dispatcher receives every verified frame.
type Dispatcher interface {
	Dispatch(id uint8, p message.Payload)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(id uint8, p message.Payload)

func (f DispatcherFunc) Dispatch(id uint8, p message.Payload) { f(id, p) }

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxMessageSize lowers the largest payload the parser will buffer.
// Values outside 0..MaxMessageSize are clamped.
func WithMaxMessageSize(n int) ParserOption {
	return func(p *Parser) {
		if n < 0 {
			n = 0
		}
		if n > MaxMessageSize {
			n = MaxMessageSize
		}
		p.maxSize = n
	}
}

// WithObserver installs an observer for dispatched and dropped frames.
func WithObserver(o Observer) ParserOption {
	return func(p *Parser) {
		if o != nil {
			p.observer = o
		}
	}
}

// Parser is the byte-at-a-time frame state machine.
//
//	           ┌──────────── any failure, or frame complete ─────────────┐
//	           ▼                                                         │
//	WaitSync1 ─55─→ WaitSync2 ─AA─→ WaitId ─valid─→ WaitLength ─len ok─→ WaitData ─full─→ WaitChecksum
//	                                                      (len == 0 skips WaitData)
//
// Every byte moves the machine by exactly one transition. Malformed input is
// reported to the Observer and the machine resynchronizes on the next byte; Feed
// never fails. A Parser is owned by a single reader goroutine and is not safe for
// concurrent use.
type Parser struct {
	reg        *message.Registry
	dispatcher Dispatcher
	observer   Observer
	maxSize    int

	state    ParseState
	id       uint8
	expected int
	buf      []byte
	sum      byte
	payload  message.Payload
}

// NewParser returns a parser in WaitSync1. d may be nil, in which case verified
// frames are decoded and counted but not delivered.
func NewParser(reg *message.Registry, d Dispatcher, opts ...ParserOption) *Parser {
	p := &Parser{
		reg:        reg,
		dispatcher: d,
		observer:   nopObserver{},
		maxSize:    MaxMessageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buf = make([]byte, 0, p.maxSize)
	return p
}

// State returns the current state.
func (p *Parser) State() ParseState {
	return p.state
}

// Reset abandons any partial frame and returns to WaitSync1.
func (p *Parser) Reset() {
	p.state = WaitSync1
	p.id = 0
	p.expected = 0
	p.buf = p.buf[:0]
	p.sum = 0
	p.payload = nil
}

// Write feeds every byte of b to the parser. It always consumes all of b.
func (p *Parser) Write(b []byte) (int, error) {
	for _, c := range b {
		p.Feed(c)
	}
	return len(b), nil
}

// Feed advances the machine by one byte.
func (p *Parser) Feed(c byte) {
	switch p.state {
	case WaitSync1:
		if c == Sync1 {
			p.state = WaitSync2
		}

	case WaitSync2:
		if c == Sync2 {
			p.state = WaitID
			return
		}
		p.drop(0, ErrFraming)

	case WaitID:
		size, err := p.reg.SizeFor(c)
		if err != nil {
			p.drop(c, err)
			return
		}
		if size > p.maxSize {
			p.drop(c, fmt.Errorf("%w: id %d needs %d bytes", ErrOversizeFrame, c, size))
			return
		}
		p.id = c
		p.expected = size
		p.buf = p.buf[:0]
		p.sum = c
		p.state = WaitLength

	case WaitLength:
		if int(c) != p.expected {
			p.drop(p.id, fmt.Errorf("%w: id %d declared %d, want %d", ErrLengthMismatch, p.id, c, p.expected))
			return
		}
		p.sum ^= c
		if p.expected == 0 {
			p.decode()
			return
		}
		p.state = WaitData

	case WaitData:
		p.buf = append(p.buf, c)
		p.sum ^= c
		if len(p.buf) == p.expected {
			p.decode()
		}

	case WaitChecksum:
		id, payload := p.id, p.payload
		if c != p.sum {
			p.drop(id, fmt.Errorf("%w: id %d got %#02x, want %#02x", ErrChecksumMismatch, id, c, p.sum))
			return
		}
		p.Reset()
		if p.dispatcher != nil {
			p.dispatcher.Dispatch(id, payload)
		}
		p.observer.FrameDispatched(id)
	}
}

func (p *Parser) decode() {
	payload, err := p.reg.Decode(p.id, p.buf)
	if err != nil {
		p.drop(p.id, fmt.Errorf("%w: id %d: %v", ErrDecode, p.id, err))
		return
	}
	p.payload = payload
	p.state = WaitChecksum
}

func (p *Parser) drop(id uint8, err error) {
	p.Reset()
	p.observer.FrameDropped(id, err)
}
