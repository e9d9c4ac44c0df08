package protocol

import (
	"errors"

	"p2plink/codec"
	"p2plink/message"
)

// Inbound errors never leave the parser: it reports them to its Observer and
// resynchronizes. Only ErrStream and ErrInvalidMessageID reach senders.
var (
	ErrFraming          = errors.New("protocol: bad sync byte")
	ErrInvalidMessageID = message.ErrInvalidMessageID
	ErrOversizeFrame    = errors.New("protocol: frame exceeds max message size")
	ErrLengthMismatch   = errors.New("protocol: length byte does not match registry")
	ErrTruncated        = codec.ErrTruncated
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	ErrDecode           = errors.New("protocol: payload decode failed")
	ErrStream           = errors.New("protocol: stream error")
)
