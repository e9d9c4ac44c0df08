// Package dispatch holds the per-link handler table: one optional handler slot
// per registered message id.
//
//	parser ──verified frame──→ Table.Dispatch(id, payload)
//	                               │
//	                         slots[id-1] ──nil──→ dropped silently
//	                               │
//	                         middleware chain ──→ handler
//
// Each slot is an atomic pointer, so registering or clearing a handler never
// blocks the reader and a dispatch sees either the old handler or the new one.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"p2plink/message"
	"p2plink/middleware"
)

type slot struct {
	handler middleware.HandlerFunc
}

// Table is safe for concurrent use. Dispatch is called by the reader goroutine;
// Register and Deregister may be called from anywhere.
type Table struct {
	reg   *message.Registry
	slots []atomic.Pointer[slot]

	mu          sync.Mutex
	middlewares []middleware.Middleware
}

// NewTable returns an empty table sized for reg.
func NewTable(reg *message.Registry, mws ...middleware.Middleware) *Table {
	return &Table{
		reg:         reg,
		slots:       make([]atomic.Pointer[slot], reg.Len()),
		middlewares: mws,
	}
}

// Registry returns the message registry the table was built for.
func (t *Table) Registry() *message.Registry {
	return t.reg
}

// Use appends middleware. It applies to handlers registered after the call.
func (t *Table) Use(mw middleware.Middleware) {
	t.mu.Lock()
	t.middlewares = append(t.middlewares, mw)
	t.mu.Unlock()
}

// Register installs h for id, replacing any previous handler. A nil h clears the slot.
func (t *Table) Register(id uint8, h middleware.HandlerFunc) error {
	if !t.reg.Valid(id) {
		return fmt.Errorf("%w: %d", message.ErrInvalidMessageID, id)
	}
	if h == nil {
		t.slots[id-1].Store(nil)
		return nil
	}
	t.mu.Lock()
	wrapped := middleware.Chain(t.middlewares...)(h)
	t.mu.Unlock()
	t.slots[id-1].Store(&slot{handler: wrapped})
	return nil
}

// Deregister clears the slot for id.
func (t *Table) Deregister(id uint8) error {
	return t.Register(id, nil)
}

// Registered reports whether id has a handler.
func (t *Table) Registered(id uint8) bool {
	return t.reg.Valid(id) && t.slots[id-1].Load() != nil
}

// DispatchContext invokes the handler for id, if any, on the calling goroutine.
// An empty slot or an unknown id is a no-op.
func (t *Table) DispatchContext(ctx context.Context, id uint8, p message.Payload) {
	if !t.reg.Valid(id) {
		return
	}
	s := t.slots[id-1].Load()
	if s == nil {
		return
	}
	s.handler(ctx, id, p)
}

// Dispatch is DispatchContext with a background context.
func (t *Table) Dispatch(id uint8, p message.Payload) {
	t.DispatchContext(context.Background(), id, p)
}

// Handle registers a handler typed by its payload. The payload type T must be the
// type registered for id.
func Handle[T message.Payload](t *Table, id uint8, fn func(ctx context.Context, p T)) error {
	sample, err := t.reg.New(id)
	if err != nil {
		return err
	}
	if _, ok := sample.(T); !ok {
		var zero T
		return fmt.Errorf("%w: id %d carries %T, handler takes %T", message.ErrPayloadTypeMismatch, id, sample, zero)
	}
	return t.Register(id, func(ctx context.Context, _ uint8, p message.Payload) {
		if v, ok := p.(T); ok {
			fn(ctx, v)
		}
	})
}
