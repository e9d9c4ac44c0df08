package registry

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := reg.Watch(ctx, "link")
	reg.Register(ctx, "link", Endpoint{Addr: "b:2", Weight: 1}, 10)
	reg.Register(ctx, "link", Endpoint{Addr: "a:1", Weight: 1}, 10)
	reg.Register(ctx, "other", Endpoint{Addr: "c:3"}, 10)

	eps, err := reg.Discover(ctx, "link")
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 2 || eps[0].Addr != "a:1" || eps[1].Addr != "b:2" {
		t.Fatalf("Discover = %+v", eps)
	}

	select {
	case latest := <-updates:
		if len(latest) != 2 {
			t.Fatalf("watch delivered %+v, want the latest list", latest)
		}
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	reg.Deregister(ctx, "link", "a:1")
	eps, _ = reg.Discover(ctx, "link")
	if len(eps) != 1 || eps[0].Addr != "b:2" {
		t.Fatalf("after deregister: %+v", eps)
	}

	cancel()
	for range updates {
	}
}
