package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven/mocks"
)

func newTestRefresher(provider *mocks.MockOAuthProvider, now time.Time) *CredentialRefresher {
	r := NewCredentialRefresher(provider, time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func TestCredentialRefresher_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRefresher(mocks.NewMockOAuthProvider(), now)

	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"no expiry", time.Time{}, false},
		{"valid for an hour", now.Add(time.Hour), false},
		{"inside margin", now.Add(30 * time.Second), true},
		{"exactly at margin", now.Add(time.Minute), true},
		{"already expired", now.Add(-time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &domain.Credential{AccessToken: "at", Expiry: tt.expiry}
			if got := r.IsExpired(cred); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCredentialRefresher_NegativeMargin(t *testing.T) {
	r := NewCredentialRefresher(mocks.NewMockOAuthProvider(), -time.Minute)
	if r.margin != 0 {
		t.Errorf("expected margin 0, got %v", r.margin)
	}
}

func TestCredentialRefresher_Refresh_NoRefreshToken(t *testing.T) {
	provider := mocks.NewMockOAuthProvider()
	r := newTestRefresher(provider, time.Now())

	_, err := r.Refresh(context.Background(), &domain.Credential{AccessToken: "at"})
	if !errors.Is(err, domain.ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if _, refresh := provider.Calls(); refresh != 0 {
		t.Errorf("expected no provider call, got %d", refresh)
	}
}

func TestCredentialRefresher_Refresh_ProviderRejects(t *testing.T) {
	provider := mocks.NewMockOAuthProvider()
	provider.RefreshFn = func(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
		return nil, errors.New("invalid_grant")
	}
	r := newTestRefresher(provider, time.Now())

	_, err := r.Refresh(context.Background(), &domain.Credential{AccessToken: "at", RefreshToken: "rt"})
	if !errors.Is(err, domain.ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
}

func TestCredentialRefresher_Refresh_InvalidResult(t *testing.T) {
	provider := mocks.NewMockOAuthProvider()
	provider.RefreshFn = func(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
		return &domain.Credential{}, nil
	}
	r := newTestRefresher(provider, time.Now())

	_, err := r.Refresh(context.Background(), &domain.Credential{AccessToken: "at", RefreshToken: "rt"})
	if !errors.Is(err, domain.ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential in chain, got %v", err)
	}
}

func TestCredentialRefresher_Refresh_CarriesOverOmittedFields(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	provider := mocks.NewMockOAuthProvider()
	provider.RefreshFn = func(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
		if cred.RefreshToken != "rt" {
			t.Errorf("provider got refresh token %q", cred.RefreshToken)
		}
		return &domain.Credential{AccessToken: "at-2", TokenType: "Bearer", Expiry: expiry}, nil
	}
	r := newTestRefresher(provider, time.Now())

	old := &domain.Credential{
		AccessToken:  "at-1",
		RefreshToken: "rt",
		Scopes:       []string{"drive"},
		Account:      "user@example.com",
	}
	fresh, err := r.Refresh(context.Background(), old)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fresh.AccessToken != "at-2" {
		t.Errorf("expected new access token, got %q", fresh.AccessToken)
	}
	if fresh.RefreshToken != "rt" {
		t.Errorf("expected refresh token to be kept, got %q", fresh.RefreshToken)
	}
	if len(fresh.Scopes) != 1 || fresh.Scopes[0] != "drive" {
		t.Errorf("expected scopes to be kept, got %v", fresh.Scopes)
	}
	if fresh.Account != "user@example.com" {
		t.Errorf("expected account to be kept, got %q", fresh.Account)
	}
	if !fresh.Expiry.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, fresh.Expiry)
	}
}

func TestCredentialRefresher_Refresh_RotatedRefreshToken(t *testing.T) {
	provider := mocks.NewMockOAuthProvider()
	provider.RefreshFn = func(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
		return &domain.Credential{AccessToken: "at-2", RefreshToken: "rt-2"}, nil
	}
	r := newTestRefresher(provider, time.Now())

	fresh, err := r.Refresh(context.Background(), &domain.Credential{AccessToken: "at", RefreshToken: "rt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.RefreshToken != "rt-2" {
		t.Errorf("expected rotated refresh token, got %q", fresh.RefreshToken)
	}
}
