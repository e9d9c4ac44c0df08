// Package client dials the listening end of a link, directly or by link name
// through a registry.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"p2plink/connector"
	"p2plink/loadbalance"
	"p2plink/message"
	"p2plink/registry"
	"p2plink/transport"
)

var ErrIncompatible = errors.New("client: endpoint message registry does not match")

type options struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	readTimeout time.Duration
	balancer    loadbalance.Balancer
	connOpts    []connector.Option
}

// Option configures Dial and DialService.
type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithReadTimeout sets the per-poll socket read timeout of the link.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithBalancer sets how DialService picks among several advertised endpoints.
func WithBalancer(b loadbalance.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithConnectorOptions passes options to the link's connector.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(o *options) { o.connOpts = append(o.connOpts, opts...) }
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:      zap.L(),
		dialTimeout: 5 * time.Second,
		balancer:    &loadbalance.RoundRobinBalancer{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dial connects to addr and returns a started link. ctx bounds the dial only;
// the link runs until Close.
func Dial(ctx context.Context, addr string, reg *message.Registry, opts ...Option) (*connector.Connector, error) {
	return dial(ctx, addr, reg, newOptions(opts))
}

func dial(ctx context.Context, addr string, reg *message.Registry, o *options) (*connector.Connector, error) {
	d := net.Dialer{Timeout: o.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	stream := transport.NewConnStream(conn, o.readTimeout)
	link := connector.New(stream, reg, append([]connector.Option{connector.WithLogger(o.logger)}, o.connOpts...)...)
	if err := link.Start(context.Background()); err != nil {
		link.Close()
		return nil, err
	}
	o.logger.Info("link up", zap.String("remote", addr))
	return link, nil
}

// DialService discovers the endpoints advertised under link and dials one of
// them, falling back to the others until one connects.
func DialService(ctx context.Context, r registry.Registry, link string, reg *message.Registry, opts ...Option) (*connector.Connector, error) {
	o := newOptions(opts)
	endpoints, err := r.Discover(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("client: discover %s: %w", link, err)
	}

	compatible := endpoints[:0:0]
	for _, ep := range endpoints {
		if ep.Messages != 0 && ep.Messages != reg.Len() {
			o.logger.Warn("skipping endpoint", zap.String("addr", ep.Addr),
				zap.Error(fmt.Errorf("%w: %d messages, want %d", ErrIncompatible, ep.Messages, reg.Len())))
			continue
		}
		compatible = append(compatible, ep)
	}
	if len(compatible) == 0 {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, link)
	}

	var lastErr error
	for len(compatible) > 0 {
		ep, err := o.balancer.Pick(compatible)
		if err != nil {
			return nil, err
		}
		c, err := dial(ctx, ep.Addr, reg, o)
		if err == nil {
			return c, nil
		}
		lastErr = err
		o.logger.Warn("dial failed", zap.String("addr", ep.Addr), zap.String("balancer", o.balancer.Name()), zap.Error(err))
		compatible = loadbalance.Without(compatible, ep.Addr)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("client: no endpoint of %s reachable: %w", link, lastErr)
}
