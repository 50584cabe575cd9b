package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCredentialValidate(t *testing.T) {
	tests := []struct {
		name    string
		cred    *Credential
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing access token", &Credential{RefreshToken: "r"}, true},
		{"access token only", &Credential{AccessToken: "a"}, false},
		{"full", &Credential{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Now()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cred.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredential) {
					t.Errorf("expected ErrInvalidCredential, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCredentialExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expiry  time.Time
		margin  time.Duration
		expired bool
	}{
		{"no expiry", time.Time{}, time.Minute, false},
		{"future", now.Add(time.Hour), 0, false},
		{"exactly now", now, 0, true},
		{"past", now.Add(-time.Second), 0, true},
		{"inside margin", now.Add(30 * time.Second), time.Minute, true},
		{"outside margin", now.Add(2 * time.Minute), time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Credential{AccessToken: "a", Expiry: tt.expiry}
			if got := c.ExpiresWithin(now, tt.margin); got != tt.expired {
				t.Errorf("ExpiresWithin = %v, want %v", got, tt.expired)
			}
		})
	}

	c := &Credential{AccessToken: "a", Expiry: now}
	if !c.IsExpired(now.Add(time.Nanosecond)) {
		t.Error("expected credential to be expired just after expiry")
	}
	if c.IsExpired(now.Add(-time.Nanosecond)) {
		t.Error("expected credential to be valid just before expiry")
	}
}

func TestCredentialToSummary(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	c := &Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       expiry,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
		Account:      "user@example.com",
	}

	s := c.ToSummary()
	if s.Account != "user@example.com" {
		t.Errorf("expected account, got %q", s.Account)
	}
	if !s.HasRefreshToken {
		t.Error("expected HasRefreshToken")
	}
	if s.Expiry == nil || !s.Expiry.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, s.Expiry)
	}

	noExpiry := (&Credential{AccessToken: "a"}).ToSummary()
	if noExpiry.Expiry != nil {
		t.Error("expected nil expiry for non-expiring credential")
	}
	if !(&Credential{RefreshToken: "r"}).CanRefresh() {
		t.Error("expected CanRefresh with refresh token")
	}
}
