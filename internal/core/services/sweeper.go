package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

const (
	// sweepLockName is the distributed lock guarding a sweep cycle.
	sweepLockName = "pending-sweep"

	// DefaultSweepInterval is how often stale pending records are reclaimed.
	DefaultSweepInterval = time.Minute

	// DefaultSweepGrace is added to the authorization timeout before a
	// pending record counts as orphaned.
	DefaultSweepGrace = time.Minute
)

// PendingSweeper periodically removes pending authorization records whose
// poll was abandoned, e.g. by a bot restart mid-authorization.
//
// For multi-instance deployments, configure a DistributedLock so that only
// one instance sweeps per cycle.
type PendingSweeper struct {
	store  driven.CredentialStore
	lock   driven.DistributedLock
	logger *slog.Logger
	now    func() time.Time

	// Internal state
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	maxAge   time.Duration
	lockTTL  time.Duration
}

// PendingSweeperConfig holds configuration for the sweeper.
type PendingSweeperConfig struct {
	Store                driven.CredentialStore
	Lock                 driven.DistributedLock // Optional
	Logger               *slog.Logger
	Interval             time.Duration // How often to sweep (default: 1m)
	AuthorizationTimeout time.Duration // default: 120s
	Grace                time.Duration // default: 1m
}

// NewPendingSweeper creates a new sweeper.
func NewPendingSweeper(cfg PendingSweeperConfig) *PendingSweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	timeout := cfg.AuthorizationTimeout
	if timeout <= 0 {
		timeout = DefaultAuthorizationTimeout
	}

	grace := cfg.Grace
	if grace <= 0 {
		grace = DefaultSweepGrace
	}

	return &PendingSweeper{
		store:    cfg.Store,
		lock:     cfg.Lock,
		logger:   logger,
		now:      time.Now,
		interval: interval,
		maxAge:   timeout + grace,
		lockTTL:  2 * interval,
	}
}

// Start begins the sweep loop. It runs until Stop is called or ctx is cancelled.
func (s *PendingSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("pending sweeper starting", "interval", s.interval, "max_age", s.maxAge)

	go s.run(ctx)
}

// Stop stops the loop and waits for an in-progress sweep to finish.
func (s *PendingSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("pending sweeper stopped")
}

func (s *PendingSweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sweep immediately on start
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single cycle and returns the number of records removed.
// It returns 0 when another instance holds the lock.
func (s *PendingSweeper) Sweep(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweep lock", "error", err)
			return 0
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another instance, skipping")
			return 0
		}
		defer func() {
			if err := s.lock.Release(ctx, sweepLockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	cutoff := s.now().Add(-s.maxAge)
	removed, err := s.store.DeleteStalePending(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep pending authorizations", "error", err)
		return 0
	}
	if removed > 0 {
		s.logger.Info("removed stale pending authorizations", "count", removed)
	}
	return removed
}
