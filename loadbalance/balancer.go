// Package loadbalance chooses which advertised endpoint of a link to dial.
//
// A link has one peer at a time, but a link name may be advertised by several
// listeners (a primary and its standbys). The dialer asks a Balancer for a
// candidate, and on a failed dial removes it and asks again.
//
//   - RoundRobin:      spread successive dials over equal endpoints
//   - WeightedRandom:  prefer endpoints with a higher Weight
package loadbalance

import (
	"errors"

	"p2plink/registry"
)

var ErrNoEndpoints = errors.New("loadbalance: no endpoints available")

// Balancer is the interface for endpoint selection strategies.
// Pick must be goroutine-safe.
type Balancer interface {
	Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer called name, or RoundRobin for an unknown name.
func New(name string) Balancer {
	switch name {
	case "weighted", "weighted_random", "WeightedRandom":
		return &WeightedRandomBalancer{}
	default:
		return &RoundRobinBalancer{}
	}
}

// Without returns endpoints minus the one at addr, leaving the input untouched.
func Without(endpoints []registry.Endpoint, addr string) []registry.Endpoint {
	out := make([]registry.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Addr != addr {
			out = append(out, ep)
		}
	}
	return out
}
