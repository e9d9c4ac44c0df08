package codec

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrTruncated   = errors.New("codec: truncated data")
	ErrInvalidBool = errors.New("codec: invalid bool value")
	ErrTrailing    = errors.New("codec: trailing bytes after payload")
)

// decoder is the read policy. It fills leaves from a byte cursor and keeps the
// first error; once failed it consumes nothing more.
type decoder struct {
	buf []byte
	off int
	err error
}

// take returns the next n bytes, or nil with ErrTruncated if fewer remain.
func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf)-d.off < n {
		d.err = ErrTruncated
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) Bool(p *bool) {
	b := d.take(1)
	if b == nil {
		return
	}
	switch b[0] {
	case 0:
		*p = false
	case 1:
		*p = true
	default:
		d.err = ErrInvalidBool
	}
}

func (d *decoder) Int8(p *int8) {
	if b := d.take(1); b != nil {
		*p = int8(b[0])
	}
}

func (d *decoder) Uint8(p *uint8) {
	if b := d.take(1); b != nil {
		*p = b[0]
	}
}

func (d *decoder) Int16(p *int16) {
	if b := d.take(2); b != nil {
		*p = int16(binary.LittleEndian.Uint16(b))
	}
}

func (d *decoder) Uint16(p *uint16) {
	if b := d.take(2); b != nil {
		*p = binary.LittleEndian.Uint16(b)
	}
}

func (d *decoder) Int32(p *int32) {
	if b := d.take(4); b != nil {
		*p = int32(binary.LittleEndian.Uint32(b))
	}
}

func (d *decoder) Uint32(p *uint32) {
	if b := d.take(4); b != nil {
		*p = binary.LittleEndian.Uint32(b)
	}
}

func (d *decoder) Int64(p *int64) {
	if b := d.take(8); b != nil {
		*p = int64(binary.LittleEndian.Uint64(b))
	}
}

func (d *decoder) Uint64(p *uint64) {
	if b := d.take(8); b != nil {
		*p = binary.LittleEndian.Uint64(b)
	}
}

func (d *decoder) Float32(p *float32) {
	if b := d.take(4); b != nil {
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

func (d *decoder) Float64(p *float64) {
	if b := d.take(8); b != nil {
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

// Read decodes v from the front of buf and returns the number of bytes consumed.
// On ErrTruncated the consumed count covers only the fields that were complete.
func Read(buf []byte, v Traversable) (int, error) {
	d := &decoder{buf: buf}
	v.Traverse(d)
	return d.off, d.err
}

// Unmarshal decodes v from buf, which must hold exactly one encoded value.
func Unmarshal(buf []byte, v Traversable) error {
	n, err := Read(buf, v)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrTrailing
	}
	return nil
}
