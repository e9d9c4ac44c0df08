// Package message defines the message registry: the static association between a
// one-byte message id and the payload type carried under it.
//
// Ids are contiguous, starting at 1. Id 0 is reserved and never valid. The encoded
// length of every type is computed once, when the registry is built, with the
// codec's size policy; since every field is fixed width, that length holds for
// every value of the type.
//
//	id   type         encoded length
//	1 ─→ *Value   ─→  4
//	2 ─→ *Heartbeat → 13
//	...
package message

import (
	"errors"
	"fmt"
	"reflect"

	"p2plink/codec"
)

// MaxPayloadSize is the largest payload a frame can declare: the length field is one byte.
const MaxPayloadSize = 255

var (
	ErrInvalidMessageID    = errors.New("message: invalid message id")
	ErrPayloadTooLarge     = errors.New("message: payload exceeds max size")
	ErrPayloadTypeMismatch = errors.New("message: payload type does not match registry")
)

// Payload is any value the codec can walk. Registered payload types are pointers
// to structs so the read policy can fill them in place.
type Payload interface {
	codec.Traversable
}

// Entry registers one payload type under an id.
type Entry struct {
	ID   uint8
	Name string
	New  func() Payload // returns a fresh zero value of the payload type
}

type entry struct {
	Entry
	size int
	typ  reflect.Type
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	entries []entry // index id-1
}

// NewRegistry validates entries and builds the registry. Entries must be given in id
// order 1..N with no gaps; anything else fails with ErrInvalidMessageID.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make([]entry, 0, len(entries))}
	for i, e := range entries {
		want := i + 1
		if want > 0xFF || int(e.ID) != want {
			return nil, fmt.Errorf("%w: entry %d has id %d, want %d", ErrInvalidMessageID, i, e.ID, want)
		}
		if e.New == nil {
			return nil, fmt.Errorf("%w: id %d has no constructor", ErrInvalidMessageID, e.ID)
		}
		sample := e.New()
		if isNil(sample) {
			return nil, fmt.Errorf("%w: id %d constructor returned nil", ErrInvalidMessageID, e.ID)
		}
		size := codec.Size(sample)
		if size > MaxPayloadSize {
			return nil, fmt.Errorf("%w: id %d (%s) encodes to %d bytes", ErrPayloadTooLarge, e.ID, e.Name, size)
		}
		if e.Name == "" {
			e.Name = reflect.TypeOf(sample).String()
		}
		r.entries = append(r.entries, entry{Entry: e, size: size, typ: reflect.TypeOf(sample)})
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on an invalid table.
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of registered messages.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Valid reports whether 1 <= id <= Len().
func (r *Registry) Valid(id uint8) bool {
	return id >= 1 && int(id) <= len(r.entries)
}

func (r *Registry) lookup(id uint8) (*entry, error) {
	if !r.Valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageID, id)
	}
	return &r.entries[id-1], nil
}

// SizeFor returns the encoded payload length for id.
func (r *Registry) SizeFor(id uint8) (int, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Name returns the registered name for id, or "" when id is invalid.
func (r *Registry) Name(id uint8) string {
	e, err := r.lookup(id)
	if err != nil {
		return ""
	}
	return e.Name
}

// New returns a fresh zero payload of the type registered for id.
func (r *Registry) New(id uint8) (Payload, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.New(), nil
}

// Decode builds a new payload of the type registered for id, field by field, from buf.
// buf must hold exactly the encoded length for id.
func (r *Registry) Decode(id uint8, buf []byte) (Payload, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if len(buf) < e.size {
		return nil, codec.ErrTruncated
	}
	p := e.New()
	if err := codec.Unmarshal(buf, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Check verifies that p has the dynamic type registered for id.
func (r *Registry) Check(id uint8, p Payload) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if isNil(p) || reflect.TypeOf(p) != e.typ {
		return fmt.Errorf("%w: id %d wants %s, got %T", ErrPayloadTypeMismatch, id, e.typ, p)
	}
	return nil
}

// Info describes one registry entry.
type Info struct {
	ID   uint8  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

// Entries lists the registry in id order.
func (r *Registry) Entries() []Info {
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Info{ID: e.ID, Name: e.Name, Size: e.size})
	}
	return out
}

func isNil(p Payload) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
