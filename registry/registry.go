// Package registry publishes and discovers link endpoints.
//
// A listener advertises itself under a link name; a dialer looks the name up
// and connects to one of the advertised endpoints. Each link still carries a
// single peer pair: several endpoints under one name are alternatives to fail
// over between, not peers to fan out to.
package registry

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("registry: no endpoints for link")

type Endpoint struct {
	Addr     string `json:"addr" yaml:"addr"`
	Weight   int    `json:"weight" yaml:"weight"` // preference when several endpoints are advertised
	Version  string `json:"version" yaml:"version"`
	Messages int    `json:"messages" yaml:"messages"` // size of the listener's message registry
}

type Registry interface {
	Register(ctx context.Context, link string, ep Endpoint, ttl int64) error
	Deregister(ctx context.Context, link string, addr string) error
	Discover(ctx context.Context, link string) ([]Endpoint, error)
	Watch(ctx context.Context, link string) <-chan []Endpoint
}
