// Package transport provides the byte streams a link runs over.
//
// A Stream is duplex: the reader goroutine calls ReadByte while senders call
// Write and Flush, each side with its own cursor. Implementations must allow the
// two sides to be used concurrently.
//
//	reader goroutine ──ReadByte──┐
//	                             ├── Stream ──→ socket / pipe / serial line
//	senders (locked) ──Write─────┘
//	                 ──Flush─────┘
package transport

import "errors"

// ErrNoData is returned by ReadByte when nothing is available yet. It is not a
// failure; the caller polls again later.
var ErrNoData = errors.New("transport: no data available")

// Stream is a duplex byte stream with a sticky health flag.
type Stream interface {
	// Good reports whether the stream is usable. Once false it stays false.
	Good() bool
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	Flush() error
}
