package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the session manager to serialize one conversation across replicas.
type DistributedLocker interface {
	// Lock acquires a lock for the given key (the conversation ID).
	// It blocks until the lock is acquired or the context is canceled. The lock expires
	// after ttl if the holder dies.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
