package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	applogger "mmlens/pkg/logger"
)

// ConsumerHook observes message handling. BeforeHandle may replace the
// context or payload; a non-nil error skips the handler and routes the
// message through the error path.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, km kafka.Message, data []byte, err error)
}

// NoopHook is the default when nothing is wired.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message, data []byte) (context.Context, []byte, error) {
	return ctx, data, nil
}
func (NoopHook) AfterHandle(context.Context, kafka.Message, []byte, error) {}
func (NoopHook) OnError(context.Context, kafka.Message, []byte, error)     {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message, []byte) (context.Context, []byte, error)
	After  func(context.Context, kafka.Message, []byte, error)
	Err    func(context.Context, kafka.Message, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message, data []byte) (context.Context, []byte, error) {
	if h.Before == nil {
		return ctx, data, nil
	}
	return h.Before(ctx, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, km, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, km kafka.Message, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, km, data, err)
	}
}

// ConsumeErrorHook logs messages that exhausted their retries and reports
// each one through record, typically a metrics counter.
func ConsumeErrorHook(l *applogger.Logger, record func()) ConsumerHook {
	return HookFuncs{
		Err: func(_ context.Context, km kafka.Message, _ []byte, err error) {
			if record != nil {
				record()
			}
			if l != nil {
				l.Error("kafka consume failed",
					applogger.String("topic", km.Topic),
					applogger.Error(err))
			}
		},
	}
}
