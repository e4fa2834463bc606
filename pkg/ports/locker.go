package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes owners of a key across hosts.
// It lets runners on different nodes agree on who owns a shared working directory.
type DistributedLocker interface {
	// Lock acquires key for at most ttl unless the implementation renews it.
	// It blocks until the lock is acquired or ctx is done.
	// The returned UnlockFunc releases it; calling it after the TTL lapsed is harmless.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// DirectoryLocker grants exclusive ownership of a working directory for the
// duration of a sequence.
type DirectoryLocker interface {
	// Acquire blocks until dir is owned by the caller or ctx is done.
	Acquire(ctx context.Context, dir string) (release func(), err error)
}
