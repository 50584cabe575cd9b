package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// DefaultRefreshMargin refreshes tokens slightly before they actually expire
// so a credential handed to a downstream client is still valid when used.
const DefaultRefreshMargin = time.Minute

// CredentialRefresher decides whether a credential is expired and renews it
// through the provider's token endpoint.
type CredentialRefresher struct {
	provider driven.OAuthProvider
	margin   time.Duration
	now      func() time.Time
}

// NewCredentialRefresher creates a refresher. A negative margin is treated as zero.
func NewCredentialRefresher(provider driven.OAuthProvider, margin time.Duration) *CredentialRefresher {
	if margin < 0 {
		margin = 0
	}
	return &CredentialRefresher{
		provider: provider,
		margin:   margin,
		now:      time.Now,
	}
}

// IsExpired reports whether cred expires within the safety margin.
func (r *CredentialRefresher) IsExpired(cred *domain.Credential) bool {
	return cred.ExpiresWithin(r.now(), r.margin)
}

// Refresh exchanges the refresh token for a renewed credential.
// Every failure wraps domain.ErrRefreshFailed.
func (r *CredentialRefresher) Refresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if !cred.CanRefresh() {
		return nil, fmt.Errorf("%w: no refresh token", domain.ErrRefreshFailed)
	}

	fresh, err := r.provider.Refresh(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	if err := fresh.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	// Providers usually omit these on refresh; keep what the grant gave us.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	if len(fresh.Scopes) == 0 {
		fresh.Scopes = cred.Scopes
	}
	if fresh.Account == "" {
		fresh.Account = cred.Account
	}

	return fresh, nil
}
