package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredential indicates a stored or exchanged credential is malformed
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrMissingParameters indicates the authorization callback lacks code or state
	ErrMissingParameters = errors.New("missing callback parameters")

	// ErrUnknownSecret indicates the callback state is not a registered secret
	ErrUnknownSecret = errors.New("unknown authorization secret")

	// ErrGrantExchange indicates the provider rejected the authorization grant
	ErrGrantExchange = errors.New("grant exchange failed")

	// ErrRefreshFailed indicates the provider rejected the refresh token
	ErrRefreshFailed = errors.New("credential refresh failed")

	// ErrAuthorizationTimeout indicates no callback arrived before the deadline
	ErrAuthorizationTimeout = errors.New("authorization timed out")
)

// GrantExchangeError carries the provider's reason for rejecting a grant.
// The reason is shown to the user in the callback response.
type GrantExchangeError struct {
	Reason string
}

func (e *GrantExchangeError) Error() string {
	if e.Reason == "" {
		return ErrGrantExchange.Error()
	}
	return ErrGrantExchange.Error() + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrGrantExchange.
func (e *GrantExchangeError) Unwrap() error {
	return ErrGrantExchange
}
