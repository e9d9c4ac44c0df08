package codec

import (
	"encoding/binary"
	"io"
	"math"
)

// sink consumes the little-endian bytes of one primitive leaf.
type sink interface {
	put(b []byte)
}

// encoder turns each leaf into its wire bytes and hands them to a sink. The
// write, checksum and size policies are all an encoder with a different sink.
type encoder struct {
	scratch [8]byte
	out     sink
}

func (e *encoder) Bool(p *bool) {
	e.scratch[0] = 0
	if *p {
		e.scratch[0] = 1
	}
	e.out.put(e.scratch[:1])
}

func (e *encoder) Int8(p *int8) {
	e.scratch[0] = byte(*p)
	e.out.put(e.scratch[:1])
}

func (e *encoder) Uint8(p *uint8) {
	e.scratch[0] = *p
	e.out.put(e.scratch[:1])
}

func (e *encoder) Int16(p *int16) {
	binary.LittleEndian.PutUint16(e.scratch[:2], uint16(*p))
	e.out.put(e.scratch[:2])
}

func (e *encoder) Uint16(p *uint16) {
	binary.LittleEndian.PutUint16(e.scratch[:2], *p)
	e.out.put(e.scratch[:2])
}

func (e *encoder) Int32(p *int32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], uint32(*p))
	e.out.put(e.scratch[:4])
}

func (e *encoder) Uint32(p *uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], *p)
	e.out.put(e.scratch[:4])
}

func (e *encoder) Int64(p *int64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], uint64(*p))
	e.out.put(e.scratch[:8])
}

func (e *encoder) Uint64(p *uint64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], *p)
	e.out.put(e.scratch[:8])
}

func (e *encoder) Float32(p *float32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], math.Float32bits(*p))
	e.out.put(e.scratch[:4])
}

func (e *encoder) Float64(p *float64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], math.Float64bits(*p))
	e.out.put(e.scratch[:8])
}

// writeSink stops writing after the first error; bytes already written stay written.
type writeSink struct {
	w   io.Writer
	n   int
	err error
}

func (s *writeSink) put(b []byte) {
	if s.err != nil {
		return
	}
	n, err := s.w.Write(b)
	s.n += n
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	s.err = err
}

type appendSink struct {
	buf []byte
}

func (s *appendSink) put(b []byte) {
	s.buf = append(s.buf, b...)
}

type checksumSink struct {
	sum byte
}

func (s *checksumSink) put(b []byte) {
	s.sum = XOR(s.sum, b...)
}

type sizeSink struct {
	n int
}

func (s *sizeSink) put(b []byte) {
	s.n += len(b)
}

// Write encodes v to w. On error the bytes already accepted by w are not rolled back.
func Write(w io.Writer, v Traversable) (int, error) {
	s := &writeSink{w: w}
	v.Traverse(&encoder{out: s})
	return s.n, s.err
}

// Append appends the encoding of v to dst and returns the extended slice.
func Append(dst []byte, v Traversable) []byte {
	s := &appendSink{buf: dst}
	v.Traverse(&encoder{out: s})
	return s.buf
}

// Marshal returns the encoding of v.
func Marshal(v Traversable) []byte {
	return Append(make([]byte, 0, Size(v)), v)
}

// Checksum XOR-folds every byte Marshal(v) would produce, starting from 0.
func Checksum(v Traversable) byte {
	s := &checksumSink{}
	v.Traverse(&encoder{out: s})
	return s.sum
}

// Size returns the number of bytes Marshal(v) would produce.
func Size(v Traversable) int {
	s := &sizeSink{}
	v.Traverse(&encoder{out: s})
	return s.n
}

// XOR folds b into seed.
func XOR(seed byte, b ...byte) byte {
	for _, c := range b {
		seed ^= c
	}
	return seed
}
