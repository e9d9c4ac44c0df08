package middleware

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"p2plink/message"
)

type counter struct {
	calls int
	last  message.Payload
}

// 模拟一个简单的 handler：记录调用次数
func (c *counter) handle(ctx context.Context, id uint8, p message.Payload) {
	c.calls++
	c.last = p
}

// 模拟一个慢 handler：睡 50ms
func slowHandler(ctx context.Context, id uint8, p message.Payload) {
	time.Sleep(50 * time.Millisecond)
}

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestLogging(t *testing.T) {
	logger, logs := newObserved()
	c := &counter{}
	handler := LoggingMiddleware(logger)(c.handle)

	v := &message.Value{X: 7}
	handler(context.Background(), message.IDValue, v)

	if c.calls != 1 || c.last != v {
		t.Fatalf("handler not called with payload: %+v", c)
	}
	entries := logs.FilterMessage("frame handled").All()
	if len(entries) != 1 {
		t.Fatalf("expect 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["type"]; got != "*message.Value" {
		t.Errorf("type field = %v", got)
	}
}

func TestSlowHandlerPass(t *testing.T) {
	logger, logs := newObserved()
	c := &counter{}
	handler := SlowHandlerMiddleware(500*time.Millisecond, logger)(c.handle)
	handler(context.Background(), message.IDValue, &message.Value{})

	if c.calls != 1 {
		t.Fatalf("expect 1 call, got %d", c.calls)
	}
	if logs.Len() != 0 {
		t.Fatalf("expect no warning, got %v", logs.All())
	}
}

func TestSlowHandlerExceeded(t *testing.T) {
	logger, logs := newObserved()
	handler := SlowHandlerMiddleware(10*time.Millisecond, logger)(slowHandler)
	handler(context.Background(), message.IDValue, &message.Value{})

	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expect slow handler warning, got %v", logs.All())
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2 → 前 2 个立刻放行，第 3 个被丢弃
	logger, logs := newObserved()
	c := &counter{}
	handler := RateLimitMiddleware(1, 2, logger)(c.handle)

	for i := 0; i < 3; i++ {
		handler(context.Background(), message.IDValue, &message.Value{X: int32(i)})
	}
	if c.calls != 2 {
		t.Fatalf("expect 2 calls to pass, got %d", c.calls)
	}
	if logs.FilterMessage("frame dropped by rate limit").Len() != 1 {
		t.Fatalf("expect one drop log, got %v", logs.All())
	}
}

func TestRecover(t *testing.T) {
	logger, logs := newObserved()
	handler := RecoverMiddleware(logger)(func(context.Context, uint8, message.Payload) {
		panic("boom")
	})

	handler(context.Background(), message.IDValue, &message.Value{})

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 || entries[0].ContextMap()["panic"] != "boom" {
		t.Fatalf("expect panic to be logged, got %v", logs.All())
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, id uint8, p message.Payload) {
				order = append(order, name)
				next(ctx, id, p)
			}
		}
	}
	c := &counter{}
	handler := Chain(mark("a"), mark("b"), LoggingMiddleware(zap.NewNop()))(c.handle)
	handler(context.Background(), message.IDValue, &message.Value{})

	if c.calls != 1 {
		t.Fatalf("expect 1 call, got %d", c.calls)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("chain order = %v, want [a b]", order)
	}
}
