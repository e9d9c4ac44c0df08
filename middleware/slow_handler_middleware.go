package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"p2plink/message"
)

// SlowHandlerMiddleware warns when a handler holds the reader longer than threshold.
// The handler is not interrupted.
func SlowHandlerMiddleware(threshold time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id uint8, p message.Payload) {
			start := time.Now()
			next(ctx, id, p)
			if d := time.Since(start); d > threshold {
				logger.Warn("slow handler stalled the reader",
					zap.Uint8("id", id),
					zap.String("type", typeName(p)),
					zap.Duration("duration", d),
					zap.Duration("threshold", threshold),
				)
			}
		}
	}
}
