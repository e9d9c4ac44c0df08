// etcd is used as a phonebook for link endpoints:
//
//	Key:   /p2plink/{link}/{addr}
//	Value: JSON-encoded Endpoint
//
// Registration uses TTL-based leases: if the listener crashes, the lease expires
// and the entry is removed, so dialers never see a dead endpoint for long.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// KeyPrefix is the root of every key this package writes.
const KeyPrefix = "/p2plink/"

func linkPrefix(link string) string {
	return KeyPrefix + link + "/"
}

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]lease // key → lease kept alive by this process
}

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.L()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, logger: logger.Named("registry"), leases: make(map[string]lease)}, nil
}

// Register adds ep under link with a TTL lease and keeps the lease alive until
// Deregister or Close.
//
// Flow:
//  1. Create a lease with the given TTL
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to renew the lease in the background
func (r *EtcdRegistry) Register(ctx context.Context, link string, ep Endpoint, ttl int64) error {
	grant, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	key := linkPrefix(link) + ep.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", key, err)
	}

	// KeepAlive outlives ctx; it stops on Deregister or Close.
	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("registry: keepalive: %w", err)
	}

	r.mu.Lock()
	if old, ok := r.leases[key]; ok {
		old.cancel()
	}
	r.leases[key] = lease{id: grant.ID, cancel: cancel}
	r.mu.Unlock()

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()
	r.logger.Info("endpoint registered", zap.String("link", link), zap.String("addr", ep.Addr), zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes the endpoint and stops renewing its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, link string, addr string) error {
	key := linkPrefix(link) + addr
	r.mu.Lock()
	l, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()
	if ok {
		l.cancel()
		if _, err := r.client.Revoke(ctx, l.id); err != nil {
			r.logger.Debug("lease revoke failed", zap.String("key", key), zap.Error(err))
		}
	}
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: delete %s: %w", key, err)
	}
	return nil
}

// Discover returns every endpoint currently advertised under link.
func (r *EtcdRegistry) Discover(ctx context.Context, link string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, linkPrefix(link), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			r.logger.Debug("skipping malformed endpoint", zap.ByteString("key", kv.Key))
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Watch emits the full endpoint list for link after every change under its prefix.
// The channel closes when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, link string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, linkPrefix(link), clientv3.WithPrefix())
		for range watchChan {
			// re-fetch the full list instead of applying individual events
			endpoints, err := r.Discover(ctx, link)
			if err != nil {
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Close stops all keepalives and closes the etcd client. Leases are left to expire.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, l := range r.leases {
		l.cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}
