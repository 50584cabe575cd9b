package domain

import (
	"fmt"
	"time"
)

// Credential is the OAuth2 token set held for a single user.
// It is stored as a JSON blob, optionally sealed at rest.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`

	// Account is the provider account (email) the grant was issued for, when known.
	Account string `json:"account,omitempty"`
}

// CredentialSummary provides a safe view without token values
type CredentialSummary struct {
	Account         string     `json:"account,omitempty"`
	Scopes          []string   `json:"scopes,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	Expiry          *time.Time `json:"expiry,omitempty"`
}

// Validate checks the fields every usable credential must carry.
func (c *Credential) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil credential", ErrInvalidCredential)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", ErrInvalidCredential)
	}
	return nil
}

// IsExpired checks if the access token has expired at the given time.
// A zero expiry means the token does not expire.
func (c *Credential) IsExpired(now time.Time) bool {
	return c.ExpiresWithin(now, 0)
}

// ExpiresWithin reports whether the token expires before now+margin.
func (c *Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(margin).Before(c.Expiry)
}

// CanRefresh reports whether a refresh token is available.
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// ToSummary converts Credential to CredentialSummary
func (c *Credential) ToSummary() *CredentialSummary {
	s := &CredentialSummary{
		Account:         c.Account,
		Scopes:          c.Scopes,
		HasRefreshToken: c.RefreshToken != "",
	}
	if !c.Expiry.IsZero() {
		expiry := c.Expiry
		s.Expiry = &expiry
	}
	return s
}
