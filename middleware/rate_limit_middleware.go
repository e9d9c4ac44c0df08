package middleware

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"p2plink/message"
)

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
//
// Frames over the limit are dropped before the handler runs. Dropping is the
// only option: the reader cannot push back on the peer.
func RateLimitMiddleware(r float64, burst int, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id uint8, p message.Payload) {
			if !limiter.Allow() {
				logger.Debug("frame dropped by rate limit", zap.Uint8("id", id))
				return
			}
			next(ctx, id, p)
		}
	}
}
