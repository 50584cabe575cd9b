package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/crypto"
	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// uniqueViolation is the PostgreSQL error code for a unique constraint violation.
const uniqueViolation = "23505"

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// Every operation is a single statement, so each write commits atomically.
type CredentialStore struct {
	db    *sql.DB
	codec *crypto.CredentialCodec
	now   func() time.Time
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
// codec may be nil, in which case credentials are stored as plain JSON.
func NewCredentialStore(db *sql.DB, codec *crypto.CredentialCodec) *CredentialStore {
	if codec == nil {
		codec = crypto.NewCredentialCodec(nil)
	}
	return &CredentialStore{
		db:    db,
		codec: codec,
		now:   time.Now,
	}
}

// BeginAuthorization creates the user's record or replaces its secret.
// An existing credential is left in place.
func (s *CredentialStore) BeginAuthorization(ctx context.Context, userID domain.UserID, secret string) error {
	query := `
		INSERT INTO user_authorizations (user_id, secret, secret_issued_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			secret = EXCLUDED.secret,
			secret_issued_at = EXCLUDED.secret_issued_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, int64(userID), secret, s.now())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("begin authorization: %w", err)
	}
	return nil
}

// SecretExists reports whether any record holds secret.
func (s *CredentialStore) SecretExists(ctx context.Context, secret string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_authorizations WHERE secret = $1)`,
		secret,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check secret: %w", err)
	}
	return exists, nil
}

// CompleteAuthorization attaches cred to the record holding secret.
// It returns false when no record holds it.
func (s *CredentialStore) CompleteAuthorization(ctx context.Context, secret string, cred *domain.Credential) (bool, error) {
	blob, err := s.codec.Encode(cred)
	if err != nil {
		return false, fmt.Errorf("encode credential: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_authorizations SET credential = $2, updated_at = $3 WHERE secret = $1`,
		secret, blob, s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("complete authorization: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetCredential returns the user's credential, or nil if there is none.
func (s *CredentialStore) GetCredential(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT credential FROM user_authorizations WHERE user_id = $1`,
		int64(userID),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	cred, err := s.codec.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

// SaveCredential replaces the user's credential. A user without a record
// is left alone.
func (s *CredentialStore) SaveCredential(ctx context.Context, userID domain.UserID, cred *domain.Credential) error {
	blob, err := s.codec.Encode(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE user_authorizations SET credential = $2, updated_at = $3 WHERE user_id = $1`,
		int64(userID), blob, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Get returns the user's full record, or nil if there is none.
func (s *CredentialStore) Get(ctx context.Context, userID domain.UserID) (*domain.AuthorizationRecord, error) {
	query := `
		SELECT user_id, secret, credential, secret_issued_at, updated_at
		FROM user_authorizations
		WHERE user_id = $1
	`

	var (
		rec  domain.AuthorizationRecord
		id   int64
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, query, int64(userID)).Scan(
		&id,
		&rec.Secret,
		&blob,
		&rec.SecretIssuedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get authorization: %w", err)
	}

	rec.UserID = domain.UserID(id)
	if len(blob) > 0 {
		cred, err := s.codec.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		rec.Credential = cred
	}
	return &rec, nil
}

// Delete removes the user's record. Deleting a missing record is not an error.
func (s *CredentialStore) Delete(ctx context.Context, userID domain.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_authorizations WHERE user_id = $1`, int64(userID))
	if err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	return nil
}

// DeleteStalePending removes pending records whose secret was issued before
// issuedBefore and returns how many were removed.
func (s *CredentialStore) DeleteStalePending(ctx context.Context, issuedBefore time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_authorizations WHERE credential IS NULL AND secret_issued_at < $1`,
		issuedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale pending: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}

// Ping checks if the database is reachable.
func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
