package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven/mocks"
)

func TestNewPendingSweeper_Defaults(t *testing.T) {
	s := NewPendingSweeper(PendingSweeperConfig{Store: mocks.NewMockCredentialStore()})

	if s.interval != DefaultSweepInterval {
		t.Errorf("expected interval %v, got %v", DefaultSweepInterval, s.interval)
	}
	if want := DefaultAuthorizationTimeout + DefaultSweepGrace; s.maxAge != want {
		t.Errorf("expected max age %v, got %v", want, s.maxAge)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestPendingSweeper_Sweep(t *testing.T) {
	now := time.Now()
	store := mocks.NewMockCredentialStore()

	// Orphaned pending record
	store.Put(&domain.AuthorizationRecord{UserID: 1, Secret: "S1", SecretIssuedAt: now.Add(-time.Hour)})
	// Pending record still inside its window
	store.Put(&domain.AuthorizationRecord{UserID: 2, Secret: "S2", SecretIssuedAt: now.Add(-30 * time.Second)})
	// Old but authorized
	store.Put(&domain.AuthorizationRecord{
		UserID:         3,
		Secret:         "S3",
		Credential:     &domain.Credential{AccessToken: "at"},
		SecretIssuedAt: now.Add(-time.Hour),
	})

	s := NewPendingSweeper(PendingSweeperConfig{
		Store:                store,
		AuthorizationTimeout: 2 * time.Minute,
		Grace:                time.Minute,
	})
	s.now = func() time.Time { return now }

	if removed := s.Sweep(context.Background()); removed != 1 {
		t.Fatalf("expected 1 record removed, got %d", removed)
	}

	if rec, _ := store.Get(context.Background(), 1); rec != nil {
		t.Error("expected orphaned record to be removed")
	}
	if rec, _ := store.Get(context.Background(), 2); rec == nil {
		t.Error("expected recent pending record to remain")
	}
	if rec, _ := store.Get(context.Background(), 3); rec == nil {
		t.Error("expected authorized record to remain")
	}
}

func TestPendingSweeper_SkipsWhenLockHeld(t *testing.T) {
	store := mocks.NewMockCredentialStore()
	store.Put(&domain.AuthorizationRecord{UserID: 1, Secret: "S1", SecretIssuedAt: time.Now().Add(-time.Hour)})

	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(sweepLockName, time.Minute)

	s := NewPendingSweeper(PendingSweeperConfig{Store: store, Lock: lock})

	if removed := s.Sweep(context.Background()); removed != 0 {
		t.Errorf("expected no sweep while lock is held, got %d", removed)
	}
	if store.Len() != 1 {
		t.Errorf("expected record to remain, got %d records", store.Len())
	}
}

func TestPendingSweeper_ReleasesLock(t *testing.T) {
	store := mocks.NewMockCredentialStore()
	lock := mocks.NewMockDistributedLock()

	s := NewPendingSweeper(PendingSweeperConfig{Store: store, Lock: lock})
	s.Sweep(context.Background())

	if lock.IsHeld(sweepLockName) {
		t.Error("expected lock to be released after sweep")
	}
}

func TestPendingSweeper_LockError(t *testing.T) {
	store := mocks.NewMockCredentialStore()
	store.Put(&domain.AuthorizationRecord{UserID: 1, Secret: "S1", SecretIssuedAt: time.Now().Add(-time.Hour)})

	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	s := NewPendingSweeper(PendingSweeperConfig{Store: store, Lock: lock})
	if removed := s.Sweep(context.Background()); removed != 0 {
		t.Errorf("expected no sweep on lock error, got %d", removed)
	}
}

func TestPendingSweeper_StartStop(t *testing.T) {
	store := mocks.NewMockCredentialStore()
	store.Put(&domain.AuthorizationRecord{UserID: 1, Secret: "S1", SecretIssuedAt: time.Now().Add(-time.Hour)})

	s := NewPendingSweeper(PendingSweeperConfig{Store: store, Interval: 10 * time.Millisecond})
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op

	deadline := time.Now().Add(time.Second)
	for store.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if store.Len() != 0 {
		t.Error("expected the loop to sweep the orphaned record")
	}
}

func TestPendingSweeper_StopsOnContextCancel(t *testing.T) {
	s := NewPendingSweeper(PendingSweeperConfig{Store: mocks.NewMockCredentialStore(), Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
	s.Stop()
}
