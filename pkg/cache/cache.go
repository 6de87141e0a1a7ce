// Package cache provides the response caches used by the HTTP handlers and
// the reference-data client. Values are serialized strings (JSON bodies or
// rendered text); callers marshal before Set and parse after Get.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the surface the rest of the service depends on.
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
