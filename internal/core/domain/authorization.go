package domain

import "time"

// AuthState is the per-user position in the authorization state machine.
type AuthState string

const (
	// AuthStateUnauthenticated means no record exists for the user.
	AuthStateUnauthenticated AuthState = "unauthenticated"

	// AuthStatePending means a secret was issued and no credential has arrived yet.
	AuthStatePending AuthState = "pending"

	// AuthStateAuthorized means a credential is stored for the user.
	AuthStateAuthorized AuthState = "authorized"
)

// AuthorizationRecord is the durable per-user row shared by the bot and the
// callback endpoint. Secret is unique across all records.
type AuthorizationRecord struct {
	UserID         UserID
	Secret         string
	Credential     *Credential
	SecretIssuedAt time.Time
	UpdatedAt      time.Time
}

// State derives the state machine position from the stored fields.
func (r *AuthorizationRecord) State() AuthState {
	switch {
	case r == nil:
		return AuthStateUnauthenticated
	case r.Credential != nil:
		return AuthStateAuthorized
	default:
		return AuthStatePending
	}
}

// IsStalePending reports whether the record is still pending and its secret
// was issued before the cutoff.
func (r *AuthorizationRecord) IsStalePending(cutoff time.Time) bool {
	return r.State() == AuthStatePending && r.SecretIssuedAt.Before(cutoff)
}
