package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure SessionAuthenticator implements driving.SessionAuthenticator
var _ driving.SessionAuthenticator = (*SessionAuthenticator)(nil)

const (
	// DefaultPollInterval is how often a waiting authorization re-reads the store.
	DefaultPollInterval = 5 * time.Second

	// DefaultAuthorizationTimeout is how long a user has to complete consent.
	DefaultAuthorizationTimeout = 120 * time.Second
)

// SessionAuthenticatorConfig holds dependencies for the SessionAuthenticator.
type SessionAuthenticatorConfig struct {
	Store     driven.CredentialStore
	Issuer    driven.SecretIssuer
	Provider  driven.OAuthProvider
	Messenger driven.AuthorizationMessenger
	Refresher *CredentialRefresher
	Logger    *slog.Logger

	PollInterval time.Duration // default: 5s
	Timeout      time.Duration // default: 120s
}

// SessionAuthenticator is the bot-side half of the authorization flow.
// It shares no memory with the callback endpoint; the store is the only
// coordination channel, so a pending authorization is observed by polling.
type SessionAuthenticator struct {
	store     driven.CredentialStore
	issuer    driven.SecretIssuer
	provider  driven.OAuthProvider
	messenger driven.AuthorizationMessenger
	refresher *CredentialRefresher
	logger    *slog.Logger

	pollInterval time.Duration
	timeout      time.Duration

	refreshes singleflight.Group
}

// NewSessionAuthenticator creates a new SessionAuthenticator.
func NewSessionAuthenticator(cfg SessionAuthenticatorConfig) *SessionAuthenticator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthorizationTimeout
	}

	refresher := cfg.Refresher
	if refresher == nil {
		refresher = NewCredentialRefresher(cfg.Provider, DefaultRefreshMargin)
	}

	return &SessionAuthenticator{
		store:        cfg.Store,
		issuer:       cfg.Issuer,
		provider:     cfg.Provider,
		messenger:    cfg.Messenger,
		refresher:    refresher,
		logger:       logger,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Timeout returns how long StartAuthorization waits for the callback.
func (s *SessionAuthenticator) Timeout() time.Duration {
	return s.timeout
}

// Authenticate returns a usable credential for userID, or nil if the user
// has to authorize first.
func (s *SessionAuthenticator) Authenticate(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	cred, err := s.store.GetCredential(ctx, userID)
	if errors.Is(err, domain.ErrInvalidCredential) {
		return nil, s.discard(ctx, userID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}
	if !s.refresher.IsExpired(cred) {
		return cred, nil
	}

	// Collapse concurrent refreshes for one user into a single provider call.
	v, err, _ := s.refreshes.Do(userID.String(), func() (any, error) {
		// A flight that finished after our read may already have renewed
		// or removed the credential.
		current, err := s.store.GetCredential(ctx, userID)
		if errors.Is(err, domain.ErrInvalidCredential) {
			return nil, s.discard(ctx, userID, err)
		}
		if err != nil {
			return nil, fmt.Errorf("get credential: %w", err)
		}
		if current == nil || !s.refresher.IsExpired(current) {
			return current, nil
		}
		return s.refresh(ctx, userID, current)
	})
	if err != nil {
		return nil, err
	}
	fresh, _ := v.(*domain.Credential)
	return fresh, nil
}

// discard removes a record whose stored credential is unreadable so the
// user can authorize again.
func (s *SessionAuthenticator) discard(ctx context.Context, userID domain.UserID, cause error) error {
	s.logger.Error("stored credential unreadable, removing authorization", "user_id", userID, "error", cause)
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	return nil
}

// refresh renews an expired credential. A provider failure is terminal for
// the credential: the record is deleted and nil is returned.
func (s *SessionAuthenticator) refresh(ctx context.Context, userID domain.UserID, cred *domain.Credential) (*domain.Credential, error) {
	logger := s.logger.With("user_id", userID)

	fresh, err := s.refresher.Refresh(ctx, cred)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("credential refresh failed, removing authorization", "error", err)
		if delErr := s.store.Delete(ctx, userID); delErr != nil {
			return nil, fmt.Errorf("delete authorization: %w", delErr)
		}
		return nil, nil
	}

	if err := s.store.SaveCredential(ctx, userID, fresh); err != nil {
		return nil, fmt.Errorf("save refreshed credential: %w", err)
	}

	logger.Info("credential refreshed", "expiry", fresh.Expiry)
	return fresh, nil
}

// StartAuthorization drives a full authorization round-trip for userID.
// It returns nil when the user does not complete consent before the timeout.
func (s *SessionAuthenticator) StartAuthorization(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	logger := s.logger.With("user_id", userID)

	secret, err := s.issuer.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	if err := s.store.BeginAuthorization(ctx, userID, secret); err != nil {
		return nil, fmt.Errorf("begin authorization: %w", err)
	}

	authURL := s.provider.AuthorizationURL(secret)
	if err := s.messenger.SendAuthorizationRequest(ctx, userID, authURL); err != nil {
		logger.Warn("failed to deliver authorization request", "error", err)
	}

	logger.Info("waiting for authorization", "timeout", s.timeout)
	start := time.Now()

	cred, err := s.waitForAuthorization(ctx, userID)
	if errors.Is(err, domain.ErrAuthorizationTimeout) {
		logger.Info("authorization timed out, removing pending record")
		if delErr := s.store.Delete(ctx, userID); delErr != nil {
			return nil, fmt.Errorf("delete pending authorization: %w", delErr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info("authorization completed", "duration", time.Since(start))
	return cred, nil
}

// waitForAuthorization polls the store until a credential appears or the
// timeout elapses. The store is read once more at the deadline so a
// credential written during the last interval is not lost.
func (s *SessionAuthenticator) waitForAuthorization(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	deadline := time.Now().Add(s.timeout)

	for {
		cred, err := s.store.GetCredential(ctx, userID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			s.logger.Warn("failed to poll credential", "user_id", userID, "error", err)
		case cred != nil:
			return cred, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, domain.ErrAuthorizationTimeout
		}

		wait := min(s.pollInterval, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// State reports where userID is in the authorization state machine.
func (s *SessionAuthenticator) State(ctx context.Context, userID domain.UserID) (domain.AuthState, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get authorization: %w", err)
	}
	return rec.State(), nil
}

// Revoke removes the user's record. The next Authenticate returns nil.
func (s *SessionAuthenticator) Revoke(ctx context.Context, userID domain.UserID) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	s.logger.Info("authorization revoked", "user_id", userID)
	return nil
}
