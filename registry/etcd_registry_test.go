package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// etcd tests need a live cluster: P2PLINK_ETCD_ENDPOINTS=localhost:2379
func newEtcdRegistry(t *testing.T) *EtcdRegistry {
	t.Helper()
	endpoints := os.Getenv("P2PLINK_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("P2PLINK_ETCD_ENDPOINTS not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), 2*time.Second, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg := newEtcdRegistry(t)
	ctx := context.Background()

	ep1 := Endpoint{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0", Messages: 4}
	ep2 := Endpoint{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0", Messages: 4}

	if err := reg.Register(ctx, "test-link", ep1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, "test-link", ep2, 10); err != nil {
		t.Fatal(err)
	}

	endpoints, err := reg.Discover(ctx, "test-link")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(endpoints))
	}

	if err := reg.Deregister(ctx, "test-link", ep1.Addr); err != nil {
		t.Fatal(err)
	}
	endpoints, err = reg.Discover(ctx, "test-link")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 1 || endpoints[0].Addr != ep2.Addr {
		t.Fatalf("expect only %s after deregister, got %+v", ep2.Addr, endpoints)
	}

	reg.Deregister(ctx, "test-link", ep2.Addr)
}

func TestEtcdWatch(t *testing.T) {
	reg := newEtcdRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := reg.Watch(ctx, "watch-link")
	time.Sleep(100 * time.Millisecond)

	ep := Endpoint{Addr: "127.0.0.1:9001", Weight: 1}
	if err := reg.Register(ctx, "watch-link", ep, 10); err != nil {
		t.Fatal(err)
	}
	defer reg.Deregister(context.Background(), "watch-link", ep.Addr)

	select {
	case endpoints := <-ch:
		if len(endpoints) != 1 || endpoints[0].Addr != ep.Addr {
			t.Fatalf("unexpected watch update: %+v", endpoints)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no watch update")
	}
}
