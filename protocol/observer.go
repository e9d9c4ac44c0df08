package protocol

import (
	"errors"
	"sync/atomic"
)

// Observer is notified by the parser once per completed or abandoned frame.
// It runs on the reader goroutine and must not block.
type Observer interface {
	FrameDispatched(id uint8)
	// FrameDropped reports an abandoned frame. id is 0 when the frame was lost
	// before its id byte was read.
	FrameDropped(id uint8, reason error)
}

type nopObserver struct{}

func (nopObserver) FrameDispatched(uint8) {}
func (nopObserver) FrameDropped(uint8, error) {}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) FrameDispatched(id uint8) {
	for _, o := range m {
		o.FrameDispatched(id)
	}
}

func (m MultiObserver) FrameDropped(id uint8, reason error) {
	for _, o := range m {
		o.FrameDropped(id, reason)
	}
}

// Drop reasons, used as metric labels.
const (
	ReasonFraming   = "framing"
	ReasonInvalidID = "invalid_id"
	ReasonOversize  = "oversize"
	ReasonLength    = "length_mismatch"
	ReasonDecode    = "decode"
	ReasonChecksum  = "checksum"
	ReasonOther     = "other"
)

// Reason maps a drop error to a short label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFraming):
		return ReasonFraming
	case errors.Is(err, ErrInvalidMessageID):
		return ReasonInvalidID
	case errors.Is(err, ErrOversizeFrame):
		return ReasonOversize
	case errors.Is(err, ErrLengthMismatch):
		return ReasonLength
	case errors.Is(err, ErrDecode):
		return ReasonDecode
	case errors.Is(err, ErrChecksumMismatch):
		return ReasonChecksum
	default:
		return ReasonOther
	}
}

// Stats counts parser events. The zero value is ready to use and safe for
// concurrent reads while the reader goroutine updates it.
type Stats struct {
	dispatched atomic.Uint64
	framing    atomic.Uint64
	invalidID  atomic.Uint64
	oversize   atomic.Uint64
	length     atomic.Uint64
	decode     atomic.Uint64
	checksum   atomic.Uint64
	other      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Dispatched       uint64 `json:"dispatched" yaml:"dispatched"`
	FramingErrors    uint64 `json:"framing_errors" yaml:"framing_errors"`
	InvalidIDs       uint64 `json:"invalid_ids" yaml:"invalid_ids"`
	Oversize         uint64 `json:"oversize" yaml:"oversize"`
	LengthMismatches uint64 `json:"length_mismatches" yaml:"length_mismatches"`
	DecodeErrors     uint64 `json:"decode_errors" yaml:"decode_errors"`
	ChecksumErrors   uint64 `json:"checksum_errors" yaml:"checksum_errors"`
	Other            uint64 `json:"other" yaml:"other"`
}

// Dropped is the total number of abandoned frames.
func (s StatsSnapshot) Dropped() uint64 {
	return s.FramingErrors + s.InvalidIDs + s.Oversize + s.LengthMismatches +
		s.DecodeErrors + s.ChecksumErrors + s.Other
}

func (s *Stats) FrameDispatched(uint8) {
	s.dispatched.Add(1)
}

func (s *Stats) FrameDropped(_ uint8, reason error) {
	switch Reason(reason) {
	case ReasonFraming:
		s.framing.Add(1)
	case ReasonInvalidID:
		s.invalidID.Add(1)
	case ReasonOversize:
		s.oversize.Add(1)
	case ReasonLength:
		s.length.Add(1)
	case ReasonDecode:
		s.decode.Add(1)
	case ReasonChecksum:
		s.checksum.Add(1)
	default:
		s.other.Add(1)
	}
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Dispatched:       s.dispatched.Load(),
		FramingErrors:    s.framing.Load(),
		InvalidIDs:       s.invalidID.Load(),
		Oversize:         s.oversize.Load(),
		LengthMismatches: s.length.Load(),
		DecodeErrors:     s.decode.Load(),
		ChecksumErrors:   s.checksum.Load(),
		Other:            s.other.Load(),
	}
}
