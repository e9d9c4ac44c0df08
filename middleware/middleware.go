// Package middleware wraps dispatch handlers with cross-cutting behaviour.
//
// A handler runs synchronously on the link's reader goroutine, so every
// middleware here is non-blocking: it may observe, drop or recover, but never
// waits on the handler from another goroutine.
package middleware

import (
	"context"

	"p2plink/message"
)

// HandlerFunc handles one verified, decoded frame.
type HandlerFunc func(ctx context.Context, id uint8, p message.Payload)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
