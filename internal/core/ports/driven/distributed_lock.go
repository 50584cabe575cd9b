package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates background work across bot instances sharing
// one CredentialStore, so periodic cleanup runs on a single instance at a time.
type DistributedLock interface {
	// Acquire attempts to take the named lock for ttl.
	// Returns false, nil when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the named lock if this instance holds it.
	// Safe to call when the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
