package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestNoopHookPassesThrough(t *testing.T) {
	ctx := context.Background()
	data := []byte("payload")
	gotCtx, gotData, err := NoopHook{}.BeforeHandle(ctx, kafka.Message{}, data)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if gotCtx != ctx || string(gotData) != "payload" {
		t.Fatal("noop hook must not alter context or payload")
	}
}

func TestHookFuncsNilFunctionsAreSafe(t *testing.T) {
	h := HookFuncs{}
	_, data, err := h.BeforeHandle(context.Background(), kafka.Message{}, []byte("x"))
	if err != nil || string(data) != "x" {
		t.Fatalf("data=%q err=%v", data, err)
	}
	h.AfterHandle(context.Background(), kafka.Message{}, nil, nil)
	h.OnError(context.Background(), kafka.Message{}, nil, nil)
}

func TestConsumeErrorHookRecords(t *testing.T) {
	var count int
	h := ConsumeErrorHook(nil, func() { count++ })

	h.OnError(context.Background(), kafka.Message{Topic: "features"}, nil, errors.New("boom"))
	h.OnError(context.Background(), kafka.Message{Topic: "features"}, nil, errors.New("again"))
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	// The error path must not fire on success.
	h.AfterHandle(context.Background(), kafka.Message{}, nil, nil)
	if count != 2 {
		t.Fatalf("count = %d after success, want 2", count)
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min := 50 * time.Millisecond
	max := 2 * time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoffWithJitter(min, max, attempt)
			if d <= 0 {
				t.Fatalf("attempt %d: non-positive backoff %v", attempt, d)
			}
			if d > max {
				t.Fatalf("attempt %d: backoff %v exceeds max %v", attempt, d, max)
			}
		}
	}
}

func TestBackoffWithJitterDefaultsBadInputs(t *testing.T) {
	d := backoffWithJitter(0, -time.Second, 1)
	if d <= 0 {
		t.Fatalf("backoff %v, want positive", d)
	}
}
