package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"p2plink/message"
)

// LoggingMiddleware logs every dispatched frame at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id uint8, p message.Payload) {
			start := time.Now()
			next(ctx, id, p)
			logger.Debug("frame handled",
				zap.Uint8("id", id),
				zap.String("type", typeName(p)),
				zap.Duration("duration", time.Since(start)),
			)
		}
	}
}
