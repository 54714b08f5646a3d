package adapter

import (
	"context"
	"time"
)

// Locker serializes multi-store sequences that cannot run inside a single
// database transaction, such as order validation.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
