package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps message handling. A BeforeHandle error skips the
// handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

// HookChain runs hooks in order before handling and in reverse order after.
// Hook panics are converted to errors (before) or swallowed (after).
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain creates a hook chain. Nil hooks are ignored.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	filtered := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &HookChain{hooks: filtered}
}

func (c *HookChain) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range c.hooks {
		next, err := safeBefore(h, ctx, km)
		if err != nil {
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		safeAfter(c.hooks[i], ctx, km, err)
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, km kafka.Message) (out context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ctx, fmt.Errorf("hook panic: %v", r)
		}
	}()
	return h.BeforeHandle(ctx, km)
}

func safeAfter(h ConsumerHook, ctx context.Context, km kafka.Message, err error) {
	defer func() { _ = recover() }()
	h.AfterHandle(ctx, km, err)
}

type ctxKey string

// CtxTraceID holds the correlation id taken from message headers.
const CtxTraceID ctxKey = "kafka_trace_id"

// TraceHook copies a "trace_id" header into the handler context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
			for _, h := range km.Headers {
				if h.Key == "trace_id" && len(h.Value) > 0 {
					return context.WithValue(ctx, CtxTraceID, string(h.Value)), nil
				}
			}
			return ctx, nil
		},
	}
}

// TraceID returns the trace id stored by TraceHook, if any.
func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(CtxTraceID).(string)
	return s
}
