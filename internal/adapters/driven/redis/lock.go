package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "drivelink:lock:"

// Lock is a DistributedLock held as a Redis key with a TTL. The key's value
// names the holding process so only that process can release it.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a Redis lock owned by this process.
func NewLock(client *redis.Client) *Lock {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &Lock{
		client: client,
		owner:  host + "/" + uuid.NewString(),
	}
}

// Acquire takes the lock for ttl. It returns false when another owner holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	err := l.client.SetArgs(ctx, lockPrefix+name, l.owner, redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
}

// unlockScript deletes the key only while it still names the caller.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) ~= ARGV[1] then
		return 0
	end
	return redis.call("DEL", KEYS[1])
`)

// Release drops the lock if this owner still holds it. An expired or foreign
// lock is left alone.
func (l *Lock) Release(ctx context.Context, name string) error {
	if err := unlockScript.Run(ctx, l.client, []string{lockPrefix + name}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Owner identifies this lock holder in logs.
func (l *Lock) Owner() string {
	return l.owner
}
