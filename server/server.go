// Package server accepts a single point-to-point link over TCP.
//
// The server owns at most one live link. A second peer that connects while the
// link is up is refused; once the link's stream fails, the next peer is accepted.
//
//	Accept conn ──link busy?──yes──→ close conn
//	     │ no
//	     ▼
//	ConnStream → Connector (handlers + middleware) → Start → watch until stream fails
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"p2plink/connector"
	"p2plink/message"
	"p2plink/middleware"
	"p2plink/registry"
	"p2plink/transport"
)

var ErrServerClosed = errors.New("server: closed")

// Server listens for one peer at a time.
type Server struct {
	reg         *message.Registry
	logger      *zap.Logger
	linkName    string
	ttl         int64
	readTimeout time.Duration
	watchEvery  time.Duration
	connOpts    []connector.Option
	onLink      func(*connector.Connector)

	mu          sync.Mutex                       // guards the fields below
	middlewares []middleware.Middleware          // applied in order to every handler
	handlers    map[uint8]middleware.HandlerFunc // installed on each new link
	listener    net.Listener
	link        *connector.Connector
	cancel      context.CancelFunc
	registry    registry.Registry // nil if not using discovery
	advertise   string

	wg       sync.WaitGroup // tracks link watchers for graceful shutdown
	shutdown atomic.Bool    // set during shutdown to suppress Accept errors
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLinkName sets the name the server advertises in the registry.
func WithLinkName(name string) Option {
	return func(s *Server) { s.linkName = name }
}

// WithTTL sets the registry lease TTL in seconds.
func WithTTL(ttl int64) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithReadTimeout sets the per-poll socket read timeout of accepted links.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithConnectorOptions passes options to every accepted link's connector.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(s *Server) { s.connOpts = append(s.connOpts, opts...) }
}

// OnLink is called with each new link after its handlers are installed and it is started.
func OnLink(fn func(*connector.Connector)) Option {
	return func(s *Server) { s.onLink = fn }
}

// NewServer creates a server for messages of reg.
func NewServer(reg *message.Registry, opts ...Option) *Server {
	s := &Server{
		reg:        reg,
		logger:     zap.L(),
		linkName:   "default",
		ttl:        10,
		watchEvery: 20 * time.Millisecond,
		handlers:   make(map[uint8]middleware.HandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	return s
}

// Use registers a middleware. Middlewares are applied in the order they are added,
// to links accepted after the call.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	s.middlewares = append(s.middlewares, mw)
	s.mu.Unlock()
}

// Handle installs h for id on the current link, if any, and on every later link.
func (s *Server) Handle(id uint8, h middleware.HandlerFunc) error {
	if !s.reg.Valid(id) {
		return fmt.Errorf("%w: %d", message.ErrInvalidMessageID, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = h
	if s.link != nil {
		return s.link.RegisterHandler(id, h)
	}
	return nil
}

// Link returns the live link, or nil.
func (s *Server) Link() *connector.Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// Addr returns the listen address once Serve has started listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve listens on address, optionally advertises advertiseAddr in reg, and
// accepts peers until Shutdown.
//
// Parameters:
//   - advertiseAddr: the address to register (e.g., "127.0.0.1:7000"). This differs
//     from the listen address because ":7000" is not routable for a remote dialer.
//   - reg: the registry implementation. Pass nil to skip discovery.
func (s *Server) Serve(network, address string, advertiseAddr string, reg registry.Registry) error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())

	if reg != nil {
		if advertiseAddr == "" {
			advertiseAddr = listener.Addr().String()
		}
		ep := registry.Endpoint{Addr: advertiseAddr, Weight: 1, Messages: s.reg.Len()}
		if err := reg.Register(ctx, s.linkName, ep, s.ttl); err != nil {
			listener.Close()
			cancel()
			return fmt.Errorf("server: register endpoint: %w", err)
		}
	}

	// published only once registered, so Addr() != nil means discoverable
	s.mu.Lock()
	s.listener = listener
	s.cancel = cancel
	if reg != nil {
		s.registry = reg
		s.advertise = advertiseAddr
	}
	if s.shutdown.Load() {
		listener.Close()
	}
	s.mu.Unlock()
	s.logger.Info("listening", zap.String("addr", listener.Addr().String()), zap.String("advertise", advertiseAddr))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// listener.Close() during shutdown makes Accept fail; that is not an error
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.accept(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	link, stream := s.startLink(ctx, conn)
	if link == nil {
		return
	}
	s.logger.Info("link up", zap.String("remote", conn.RemoteAddr().String()))
	if s.onLink != nil {
		s.onLink(link)
	}
	s.wg.Add(1)
	go s.watch(ctx, link, stream)
}

// startLink builds and starts the connector for conn, or refuses conn while a
// link is up.
func (s *Server) startLink(ctx context.Context, conn net.Conn) (*connector.Connector, *transport.ConnStream) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link != nil {
		s.logger.Warn("link busy, refusing peer", zap.String("remote", conn.RemoteAddr().String()))
		conn.Close()
		return nil, nil
	}

	stream := transport.NewConnStream(conn, s.readTimeout)
	opts := append([]connector.Option{
		connector.WithLogger(s.logger),
		connector.WithMiddleware(s.middlewares...),
	}, s.connOpts...)
	link := connector.New(stream, s.reg, opts...)
	for id, h := range s.handlers {
		link.RegisterHandler(id, h)
	}
	if err := link.Start(ctx); err != nil {
		s.logger.Error("link start failed", zap.Error(err))
		link.Close()
		return nil, nil
	}
	s.link = link
	return link, stream
}

// watch closes the link once its stream fails or the server shuts down.
func (s *Server) watch(ctx context.Context, link *connector.Connector, stream *transport.ConnStream) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.watchEvery)
	defer ticker.Stop()
	for stream.Good() {
		select {
		case <-ctx.Done():
			link.Close()
			s.dropLink(link)
			return
		case <-ticker.C:
		}
	}
	link.Close()
	s.dropLink(link)
	s.logger.Info("link down", zap.String("remote", stream.RemoteAddr().String()), zap.Any("stats", link.Stats()))
}

func (s *Server) dropLink(link *connector.Connector) {
	s.mu.Lock()
	if s.link == link {
		s.link = nil
	}
	s.mu.Unlock()
}

// Shutdown performs graceful shutdown:
//  1. Deregister the endpoint (dialers stop finding this server)
//  2. Set shutdown flag (so Accept error is recognized as intentional)
//  3. Close the listener and the live link
//  4. Wait for the link to finish (with timeout)
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancelDeregister := context.WithTimeout(context.Background(), timeout)
	defer cancelDeregister()
	s.mu.Lock()
	reg, addr := s.registry, s.advertise
	s.mu.Unlock()
	if reg != nil {
		if err := reg.Deregister(ctx, s.linkName, addr); err != nil {
			s.logger.Warn("deregister failed", zap.Error(err))
		}
	}

	s.shutdown.Store(true)
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for the link to close")
	}
}
