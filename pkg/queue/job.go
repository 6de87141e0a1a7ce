package queue

import "context"

// Job processes one message type from the queue.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
