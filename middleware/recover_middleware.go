package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"p2plink/message"
)

// RecoverMiddleware stops a panicking handler from taking down the reader loop.
func RecoverMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id uint8, p message.Payload) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						zap.Uint8("id", id),
						zap.String("panic", fmt.Sprint(r)),
						zap.Stack("stack"),
					)
				}
			}()
			next(ctx, id, p)
		}
	}
}

func typeName(p message.Payload) string {
	return fmt.Sprintf("%T", p)
}
