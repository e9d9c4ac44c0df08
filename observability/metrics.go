package observability

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"p2plink/message"
	"p2plink/middleware"
	"p2plink/protocol"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p2plink",
			Name:      "frames_total",
			Help:      "Inbound frames by outcome: dispatched or a drop reason.",
		},
		[]string{"link", "result"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p2plink",
			Name:      "sends_total",
			Help:      "Outbound frames by outcome.",
		},
		[]string{"link", "id", "result"},
	)
	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "p2plink",
			Subsystem: "handler",
			Name:      "duration_seconds",
			Help:      "Time a handler held the reader.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"link", "id"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, sendsTotal, handlerDuration)
	})
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// LinkMetrics records the traffic of one link. It is a protocol.Observer for
// inbound frames and a connector.SendObserver for outbound ones.
type LinkMetrics struct {
	link string
}

func NewLinkMetrics(link string) *LinkMetrics {
	RegisterMetrics()
	return &LinkMetrics{link: link}
}

func (m *LinkMetrics) FrameDispatched(uint8) {
	framesTotal.WithLabelValues(m.link, "dispatched").Inc()
}

func (m *LinkMetrics) FrameDropped(_ uint8, reason error) {
	framesTotal.WithLabelValues(m.link, protocol.Reason(reason)).Inc()
}

func (m *LinkMetrics) FrameSent(id uint8, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sendsTotal.WithLabelValues(m.link, strconv.Itoa(int(id)), result).Inc()
}

// Middleware times every handler.
func (m *LinkMetrics) Middleware() middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, id uint8, p message.Payload) {
			start := time.Now()
			next(ctx, id, p)
			handlerDuration.WithLabelValues(m.link, strconv.Itoa(int(id))).Observe(time.Since(start).Seconds())
		}
	}
}
