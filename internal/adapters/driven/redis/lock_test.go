package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts a miniredis server and a client bound to it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func mustAcquire(t *testing.T, l *Lock, name string, ttl time.Duration) bool {
	t.Helper()
	ok, err := l.Acquire(context.Background(), name, ttl)
	if err != nil {
		t.Fatalf("Acquire(%q): %v", name, err)
	}
	return ok
}

func TestLock_Owner_Unique(t *testing.T) {
	_, client := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)
	if a.Owner() == "" {
		t.Error("expected non-empty owner")
	}
	if a.Owner() == b.Owner() {
		t.Errorf("expected unique owners, got %s twice", a.Owner())
	}
}

func TestLock_ExclusiveAcrossInstances(t *testing.T) {
	_, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)

	if !mustAcquire(t, a, "pending-sweep", time.Minute) {
		t.Fatal("expected first instance to acquire")
	}
	if mustAcquire(t, b, "pending-sweep", time.Minute) {
		t.Error("expected second instance to be refused")
	}
	if mustAcquire(t, a, "pending-sweep", time.Minute) {
		t.Error("expected lock not to be reentrant")
	}
	if !mustAcquire(t, b, "other", time.Minute) {
		t.Error("expected an unrelated name to be free")
	}
}

func TestLock_Release(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	a, b := NewLock(client), NewLock(client)

	mustAcquire(t, a, "pending-sweep", time.Minute)

	// A non-owner release leaves the lock in place.
	if err := b.Release(ctx, "pending-sweep"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mustAcquire(t, b, "pending-sweep", time.Minute) {
		t.Fatal("expected lock to survive a release by another owner")
	}

	if err := a.Release(ctx, "pending-sweep"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mustAcquire(t, b, "pending-sweep", time.Minute) {
		t.Error("expected lock to be free after owner release")
	}

	// Releasing a lock that is not held is a no-op.
	if err := a.Release(ctx, "never-held"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	a, b := NewLock(client), NewLock(client)

	mustAcquire(t, a, "pending-sweep", 2*time.Minute)
	mr.FastForward(3 * time.Minute)

	if !mustAcquire(t, b, "pending-sweep", time.Minute) {
		t.Error("expected lock of a crashed holder to expire")
	}
}

func TestLock_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}

	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail when the server is down")
	}
}
