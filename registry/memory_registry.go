package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry. TTLs are ignored; entries live
// until deregistered.
type MemoryRegistry struct {
	mu       sync.Mutex
	links    map[string]map[string]Endpoint
	watchers map[string][]chan []Endpoint
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		links:    make(map[string]map[string]Endpoint),
		watchers: make(map[string][]chan []Endpoint),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, link string, ep Endpoint, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps, ok := r.links[link]
	if !ok {
		eps = make(map[string]Endpoint)
		r.links[link] = eps
	}
	eps[ep.Addr] = ep
	r.notifyLocked(link)
	return nil
}

func (r *MemoryRegistry) Deregister(_ context.Context, link string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links[link], addr)
	r.notifyLocked(link)
	return nil
}

// Discover returns the endpoints of link sorted by address.
func (r *MemoryRegistry) Discover(_ context.Context, link string) ([]Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(link), nil
}

func (r *MemoryRegistry) Watch(ctx context.Context, link string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	r.mu.Lock()
	r.watchers[link] = append(r.watchers[link], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[link]
		for i, w := range ws {
			if w == ch {
				r.watchers[link] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (r *MemoryRegistry) listLocked(link string) []Endpoint {
	eps := make([]Endpoint, 0, len(r.links[link]))
	for _, ep := range r.links[link] {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].Addr < eps[j].Addr })
	return eps
}

// notifyLocked replaces any undelivered update with the latest list.
func (r *MemoryRegistry) notifyLocked(link string) {
	list := r.listLocked(link)
	for _, ch := range r.watchers[link] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
