package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to a session across processes.
// The workflows never lock; a caller that cannot guarantee one writer per
// session wraps its calls with session.Guard, which uses this port.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is done.
	// The returned UnlockFunc MUST be called to release the lock; ttl bounds a lost holder.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
