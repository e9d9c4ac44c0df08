package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"p2plink/connector"
	"p2plink/message"
	"p2plink/middleware"
	"p2plink/observability"
	"p2plink/registry"
)

// linkOptions builds the connector options shared by listen and dial.
func (a *app) linkOptions() []connector.Option {
	cfg := a.cfg
	metrics := observability.NewLinkMetrics(cfg.Link.Name)

	mws := []middleware.Middleware{
		middleware.RecoverMiddleware(a.logger),
		middleware.LoggingMiddleware(a.logger),
		metrics.Middleware(),
	}
	if cfg.Limits.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Limits.RateLimit, cfg.Limits.Burst, a.logger))
	}
	if cfg.Limits.SlowHandler > 0 {
		mws = append(mws, middleware.SlowHandlerMiddleware(cfg.Limits.SlowHandler, a.logger))
	}

	opts := []connector.Option{
		connector.WithPollInterval(cfg.Link.PollInterval),
		connector.WithMaxMessageSize(cfg.Link.MaxMessageSize),
		connector.WithObserver(metrics),
		connector.WithSendObserver(metrics),
		connector.WithMiddleware(mws...),
	}
	if cfg.Link.HeartbeatInterval > 0 {
		opts = append(opts, connector.WithHeartbeat(cfg.Link.HeartbeatInterval, heartbeats()))
	}
	return opts
}

func heartbeats() connector.HeartbeatFunc {
	start := time.Now()
	var seq atomic.Uint32
	return func() (uint8, message.Payload) {
		return message.IDHeartbeat, &message.Heartbeat{
			Seq:          seq.Add(1),
			UptimeMillis: uint64(time.Since(start).Milliseconds()),
			Healthy:      true,
		}
	}
}

// printFrames installs a handler on every id that prints received frames to w.
// Heartbeats are only logged.
func (a *app) printFrames(link *connector.Connector, w io.Writer) {
	for _, e := range a.registry.Entries() {
		link.RegisterHandler(e.ID, a.frameHandler(w))
	}
}

func (a *app) frameHandler(w io.Writer) middleware.HandlerFunc {
	return func(_ context.Context, id uint8, p message.Payload) {
		if id == message.IDHeartbeat {
			return
		}
		if err := renderLine(w, a.outputFormat, frameRecord{ID: id, Name: a.registry.Name(id), Payload: p}); err != nil {
			a.logger.Warn("print frame", zap.Error(err))
		}
	}
}

// etcdRegistry connects to etcd when endpoints are configured, else returns nil.
func (a *app) etcdRegistry() (*registry.EtcdRegistry, error) {
	if !a.cfg.Etcd.Enabled() {
		return nil, nil
	}
	return registry.NewEtcdRegistry(a.cfg.Etcd.Endpoints, a.cfg.Etcd.DialTimeout, a.logger)
}

// serveMetrics exposes /metrics until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enable {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Info("serving metrics", zap.String("addr", a.cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
}
