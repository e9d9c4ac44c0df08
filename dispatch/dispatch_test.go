package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"p2plink/message"
	"p2plink/middleware"
)

func TestRegisterAndDispatch(t *testing.T) {
	table := NewTable(message.Catalog())
	var got []int32
	err := table.Register(message.IDValue, func(_ context.Context, _ uint8, p message.Payload) {
		got = append(got, p.(*message.Value).X)
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	table.Dispatch(message.IDValue, &message.Value{X: 7})
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("got %v, want [7]", got)
	}
}

func TestRegisterInvalidID(t *testing.T) {
	table := NewTable(message.Catalog())
	h := func(context.Context, uint8, message.Payload) {}
	for _, id := range []uint8{0, 5, 255} {
		if err := table.Register(id, h); !errors.Is(err, message.ErrInvalidMessageID) {
			t.Errorf("Register(%d): expected ErrInvalidMessageID, got %v", id, err)
		}
	}
	if err := table.Deregister(0); !errors.Is(err, message.ErrInvalidMessageID) {
		t.Errorf("Deregister(0): expected ErrInvalidMessageID, got %v", err)
	}
}

func TestOverwriteAndDeregister(t *testing.T) {
	table := NewTable(message.Catalog())
	var first, second int
	table.Register(message.IDValue, func(context.Context, uint8, message.Payload) { first++ })
	table.Register(message.IDValue, func(context.Context, uint8, message.Payload) { second++ })
	table.Dispatch(message.IDValue, &message.Value{})
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first, second)
	}

	if err := table.Deregister(message.IDValue); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if table.Registered(message.IDValue) {
		t.Fatal("slot still registered")
	}
	// empty slot and out-of-range id are silent no-ops
	table.Dispatch(message.IDValue, &message.Value{})
	table.Dispatch(0, nil)
	if second != 1 {
		t.Fatalf("dispatch after deregister reached handler")
	}
}

func TestHandleTyped(t *testing.T) {
	table := NewTable(message.Catalog())
	var seq uint32
	if err := Handle(table, message.IDHeartbeat, func(_ context.Context, hb *message.Heartbeat) {
		seq = hb.Seq
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	table.Dispatch(message.IDHeartbeat, &message.Heartbeat{Seq: 11})
	if seq != 11 {
		t.Fatalf("seq = %d, want 11", seq)
	}

	err := Handle(table, message.IDValue, func(context.Context, *message.Heartbeat) {})
	if !errors.Is(err, message.ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
	if table.Registered(message.IDValue) {
		t.Fatal("mismatched handler must not be registered")
	}
}

func TestMiddlewareAppliedAtRegister(t *testing.T) {
	var calls []string
	tag := func(name string) middleware.Middleware {
		return func(next middleware.HandlerFunc) middleware.HandlerFunc {
			return func(ctx context.Context, id uint8, p message.Payload) {
				calls = append(calls, name)
				next(ctx, id, p)
			}
		}
	}
	table := NewTable(message.Catalog(), tag("ctor"))
	table.Register(message.IDValue, func(context.Context, uint8, message.Payload) {})
	table.Use(tag("late"))
	table.Register(message.IDHeartbeat, func(context.Context, uint8, message.Payload) {})

	table.Dispatch(message.IDValue, &message.Value{})
	table.Dispatch(message.IDHeartbeat, &message.Heartbeat{})
	want := []string{"ctor", "ctor", "late"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestConcurrentRegisterDispatch(t *testing.T) {
	table := NewTable(message.Catalog())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			table.Register(message.IDValue, func(context.Context, uint8, message.Payload) {})
			table.Deregister(message.IDValue)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			table.Dispatch(message.IDValue, &message.Value{})
		}
	}()
	wg.Wait()
}
