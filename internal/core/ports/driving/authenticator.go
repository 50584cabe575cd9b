package driving

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// SessionAuthenticator hands out usable credentials to the bot.
// A nil credential with a nil error means the user is not authorized and
// must go through StartAuthorization.
type SessionAuthenticator interface {
	// Authenticate returns the stored credential, refreshing it when expired.
	// A failed refresh deletes the user's record and returns nil.
	Authenticate(ctx context.Context, userID domain.UserID) (*domain.Credential, error)

	// StartAuthorization issues a secret, sends the authorization URL to the
	// user and waits for the callback to store a credential. Returns nil when
	// the wait times out.
	StartAuthorization(ctx context.Context, userID domain.UserID) (*domain.Credential, error)

	// State reports the user's position in the authorization state machine.
	State(ctx context.Context, userID domain.UserID) (domain.AuthState, error)

	// Revoke removes the user's record.
	Revoke(ctx context.Context, userID domain.UserID) error
}
