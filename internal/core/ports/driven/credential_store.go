package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// CredentialStore persists one AuthorizationRecord per user.
// It is the only coordination channel between the bot process and the
// callback endpoint, so every write must be durable and atomic before it
// returns. Implementations must be safe for concurrent use across processes.
type CredentialStore interface {
	// BeginAuthorization upserts the record for userID with the given secret.
	// An existing record gets the new secret; its credential is left untouched.
	// Returns domain.ErrAlreadyExists if another record already holds secret.
	BeginAuthorization(ctx context.Context, userID domain.UserID, secret string) error

	// SecretExists reports whether any record currently holds secret.
	SecretExists(ctx context.Context, secret string) (bool, error)

	// CompleteAuthorization writes cred on the record holding secret.
	// Returns false, nil when no record holds it (completed and cleared,
	// superseded, or timed out).
	CompleteAuthorization(ctx context.Context, secret string, cred *domain.Credential) (bool, error)

	// GetCredential returns the user's credential, or nil, nil when absent.
	GetCredential(ctx context.Context, userID domain.UserID) (*domain.Credential, error)

	// SaveCredential replaces the credential of an existing record without
	// secret matching. Used by the refresh path. No-op for unknown users.
	SaveCredential(ctx context.Context, userID domain.UserID, cred *domain.Credential) error

	// Get returns the whole record, or nil, nil when absent.
	Get(ctx context.Context, userID domain.UserID) (*domain.AuthorizationRecord, error)

	// Delete removes the record. Safe to call for unknown users.
	Delete(ctx context.Context, userID domain.UserID) error

	// DeleteStalePending removes records that have no credential and whose
	// secret was issued before issuedBefore. Returns the number removed.
	DeleteStalePending(ctx context.Context, issuedBefore time.Time) (int, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}
