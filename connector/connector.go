// Package connector runs one point-to-point link over a transport.Stream.
//
// A Connector glues the pieces together: senders serialize frames under one
// lock, and a single background reader feeds the stream to the parser, which
// dispatches verified frames to the handler table.
//
//	goroutine-1 ──Send(id=1)──┐
//	goroutine-2 ──Send(id=3)──┼──→ sending lock ──→ Stream.Write + Flush ──→ peer
//	heartbeat   ──Send(id=2)──┘
//
//	readLoop: Stream.ReadByte ──→ Parser.Feed ──verified──→ Table ──→ handler
//
// Senders never wait on the reader and the reader never takes the send lock.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"p2plink/dispatch"
	"p2plink/message"
	"p2plink/middleware"
	"p2plink/protocol"
	"p2plink/transport"
)

// DefaultPollInterval is the reader's backoff after draining the stream.
const DefaultPollInterval = 5 * time.Millisecond

var (
	ErrClosed         = errors.New("connector: closed")
	ErrAlreadyStarted = errors.New("connector: already started")
)

// SendObserver is told the outcome of every Send that reached the stream check.
type SendObserver interface {
	FrameSent(id uint8, err error)
}

// HeartbeatFunc builds the next heartbeat message.
type HeartbeatFunc func() (uint8, message.Payload)

// Connector owns a stream for its lifetime.
type Connector struct {
	stream transport.Stream
	reg    *message.Registry
	table  *dispatch.Table
	parser *protocol.Parser
	stats  protocol.Stats

	logger       *zap.Logger
	pollInterval time.Duration
	maxSize      int
	observer     protocol.Observer
	sendObserver SendObserver
	middlewares  []middleware.Middleware

	heartbeatEvery time.Duration
	heartbeat      HeartbeatFunc

	sending sync.Mutex // Write lock: one frame at a time on the stream
	frame   []byte     // scratch, guarded by sending
	closed  atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	loopCtx context.Context // set before the reader starts, read only by it
}

// Option configures a Connector.
type Option func(*Connector)

func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPollInterval sets the reader's wait between drains.
func WithPollInterval(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithMaxMessageSize(n int) Option {
	return func(c *Connector) { c.maxSize = n }
}

// WithObserver adds an observer of inbound frames next to the built-in stats.
func WithObserver(o protocol.Observer) Option {
	return func(c *Connector) { c.observer = o }
}

func WithSendObserver(o SendObserver) Option {
	return func(c *Connector) { c.sendObserver = o }
}

// WithMiddleware wraps every handler registered on this connector.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Connector) { c.middlewares = append(c.middlewares, mws...) }
}

// WithHeartbeat sends the message built by fn every interval while started.
func WithHeartbeat(interval time.Duration, fn HeartbeatFunc) Option {
	return func(c *Connector) {
		c.heartbeatEvery = interval
		c.heartbeat = fn
	}
}

// New builds a stopped connector over stream. Call Start to begin reading.
func New(stream transport.Stream, reg *message.Registry, opts ...Option) *Connector {
	c := &Connector{
		stream:       stream,
		reg:          reg,
		logger:       zap.L(),
		pollInterval: DefaultPollInterval,
		maxSize:      protocol.MaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("connector")
	c.table = dispatch.NewTable(reg, c.middlewares...)

	observers := protocol.MultiObserver{&c.stats, dropLogger{c.logger}}
	if c.observer != nil {
		observers = append(observers, c.observer)
	}
	c.parser = protocol.NewParser(reg, protocol.DispatcherFunc(c.dispatch),
		protocol.WithMaxMessageSize(c.maxSize),
		protocol.WithObserver(observers),
	)
	return c
}

// Registry returns the message registry of the link.
func (c *Connector) Registry() *message.Registry {
	return c.reg
}

// Table returns the handler table, for typed registration with dispatch.Handle.
func (c *Connector) Table() *dispatch.Table {
	return c.table
}

// RegisterHandler installs h for id, replacing any previous handler.
func (c *Connector) RegisterHandler(id uint8, h middleware.HandlerFunc) error {
	return c.table.Register(id, h)
}

// DeregisterHandler clears the handler for id.
func (c *Connector) DeregisterHandler(id uint8) error {
	return c.table.Deregister(id)
}

// Stats returns the inbound frame counters.
func (c *Connector) Stats() protocol.StatsSnapshot {
	return c.stats.Snapshot()
}

// Start launches the reader goroutine, and the heartbeat goroutine if configured.
// The loops run until ctx is cancelled or Stop is called.
func (c *Connector) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loopCtx = ctx

	c.wg.Add(1)
	go c.readLoop(ctx)
	if c.heartbeat != nil && c.heartbeatEvery > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop(ctx)
	}
	c.logger.Debug("connector started", zap.Duration("poll_interval", c.pollInterval))
	return nil
}

// Stop cancels the loops and waits for them, then waits for any in-flight Send.
// After Stop, Send returns ErrClosed. Stop must not be called from a handler.
func (c *Connector) Stop() {
	c.closed.Store(true)
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.sending.Lock()
	c.sending.Unlock()
	c.logger.Debug("connector stopped")
}

// Close stops the connector and closes the stream if it is an io.Closer.
func (c *Connector) Close() error {
	c.Stop()
	if cl, ok := c.stream.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Send frames payload under id and writes it to the stream.
//
// Thread safety: the sending mutex covers encode, write and flush, so frames
// from concurrent senders never interleave on the wire.
func (c *Connector) Send(id uint8, payload message.Payload) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.reg.Check(id, payload); err != nil {
		return err
	}

	c.sending.Lock()
	defer c.sending.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	err := c.write(id, payload)
	if c.sendObserver != nil {
		c.sendObserver.FrameSent(id, err)
	}
	return err
}

func (c *Connector) write(id uint8, payload message.Payload) error {
	if !c.stream.Good() {
		return fmt.Errorf("%w: stream not good", protocol.ErrStream)
	}
	frame, err := protocol.AppendFrame(c.frame[:0], id, payload)
	if err != nil {
		return err
	}
	c.frame = frame
	if _, err := c.stream.Write(frame); err != nil {
		return fmt.Errorf("%w: write: %v", protocol.ErrStream, err)
	}
	if err := c.stream.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", protocol.ErrStream, err)
	}
	return nil
}

func (c *Connector) dispatch(id uint8, p message.Payload) {
	c.table.DispatchContext(c.loopCtx, id, p)
}

// readLoop is the only goroutine that touches the parser.
func (c *Connector) readLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	good := true
	for {
		if c.stream.Good() {
			good = true
			c.drain(ctx)
		} else if good {
			good = false
			c.logger.Warn("stream not good, reads suspended")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain feeds bytes to the parser until the stream has nothing more to give.
// A panic escaping a handler abandons the current frame and the loop carries on.
func (c *Connector) drain(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("reader recovered from panic", zap.Any("panic", r), zap.Stack("stack"))
			c.parser.Reset()
		}
	}()
	for ctx.Err() == nil {
		b, err := c.stream.ReadByte()
		if err != nil {
			if !errors.Is(err, transport.ErrNoData) {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		c.parser.Feed(b)
	}
}

// heartbeatLoop sends periodic heartbeat frames so the peer can tell the link is alive.
func (c *Connector) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		id, p := c.heartbeat()
		if err := c.Send(id, p); err != nil && !errors.Is(err, ErrClosed) {
			c.logger.Debug("heartbeat not sent", zap.Error(err))
		}
	}
}

// dropLogger reports abandoned frames at debug level.
type dropLogger struct {
	logger *zap.Logger
}

func (dropLogger) FrameDispatched(uint8) {}

func (d dropLogger) FrameDropped(id uint8, reason error) {
	d.logger.Debug("frame dropped", zap.Uint8("id", id), zap.String("reason", protocol.Reason(reason)), zap.Error(reason))
}
