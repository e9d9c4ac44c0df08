// Package protocol implements the p2plink frame format and its incremental parser.
//
// A frame carries exactly one message. The header names the message type and its
// payload length, and a one-byte XOR footer protects everything after the sync bytes.
//
// Frame format:
//
//	0     1     2     3     4            4+len
//	┌─────┬─────┬─────┬─────┬────────────┬─────┐
//	│ 55  │ AA  │ id  │ len │ payload... │ chk │
//	└─────┴─────┴─────┴─────┴────────────┴─────┘
//	chk = id ^ len ^ payload[0] ^ ... ^ payload[len-1]
//
// The payload is the codec encoding of the type registered for id: fixed-width,
// little-endian fields in declaration order, no padding. len always equals the
// registry size for id; the parser cross-checks it.
package protocol

import (
	"fmt"
	"io"

	"p2plink/codec"
	"p2plink/message"
)

const (
	Sync1      byte = 0x55
	Sync2      byte = 0xAA
	HeaderSize int  = 4 // sync1, sync2, id, len
	FooterSize int  = 1 // checksum

	// MaxMessageSize bounds the payload length and the parser's scratch buffer.
	MaxMessageSize = message.MaxPayloadSize
)

// Checksum XOR-folds the id byte, the length byte and then every payload byte.
// Sync bytes are not covered.
func Checksum(id, length uint8, payload []byte) byte {
	return codec.XOR(id^length, payload...)
}

// AppendFrame appends one complete frame for payload under id to dst.
// It does not consult a registry; callers validate id beforehand.
func AppendFrame(dst []byte, id uint8, payload codec.Traversable) ([]byte, error) {
	size := codec.Size(payload)
	if size > MaxMessageSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrOversizeFrame, size)
	}
	start := len(dst)
	dst = append(dst, Sync1, Sync2, id, byte(size))
	dst = codec.Append(dst, payload)
	body := dst[start+HeaderSize:]
	return append(dst, Checksum(id, byte(size), body)), nil
}

// Encode writes one complete frame for payload under id to w in a single Write call.
// The caller must hold a write lock if several goroutines share w, otherwise frames
// from different senders will interleave on the wire.
func Encode(w io.Writer, id uint8, payload codec.Traversable) error {
	frame, err := AppendFrame(make([]byte, 0, HeaderSize+codec.Size(payload)+FooterSize), id, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	return nil
}
