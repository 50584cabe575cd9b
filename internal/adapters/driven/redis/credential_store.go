package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/crypto"
	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialStore = (*CredentialStore)(nil)

const (
	// Key prefixes for Redis. The {auth} hash tag keeps every key in one
	// cluster slot, since scripts derive some key names from their arguments.
	authUserPrefix   = "drivelink:{auth}:user:"
	authSecretPrefix = "drivelink:{auth}:secret:"
	authPendingKey   = "drivelink:{auth}:pending"

	// Hash fields of a user record
	fieldSecret         = "secret"
	fieldCredential     = "credential"
	fieldSecretIssuedAt = "secret_issued_at"
	fieldUpdatedAt      = "updated_at"
)

// CredentialStore implements driven.CredentialStore using Redis.
//
// Each user is a hash; the secret index maps a secret to its user and the
// pending sorted set orders records without a credential by issue time.
// Every write is a Lua script so the three structures change together.
// All keys share the {auth} hash tag, so the store also runs on Redis Cluster.
type CredentialStore struct {
	client *redis.Client
	codec  *crypto.CredentialCodec
	now    func() time.Time
}

// NewCredentialStore creates a new Redis-backed CredentialStore.
// codec may be nil, in which case credentials are stored as plain JSON.
func NewCredentialStore(client *redis.Client, codec *crypto.CredentialCodec) *CredentialStore {
	if codec == nil {
		codec = crypto.NewCredentialCodec(nil)
	}
	return &CredentialStore{
		client: client,
		codec:  codec,
		now:    time.Now,
	}
}

func userKey(userID domain.UserID) string {
	return authUserPrefix + userID.String()
}

func secretKey(secret string) string {
	return authSecretPrefix + secret
}

// beginScript upserts the user's secret, dropping the previous secret's
// index entry. Returns 0 if the secret belongs to another user.
var beginScript = redis.NewScript(`
	local owner = redis.call("GET", KEYS[2])
	if owner and owner ~= ARGV[1] then
		return 0
	end
	local old = redis.call("HGET", KEYS[1], "secret")
	if old and old ~= ARGV[2] then
		redis.call("DEL", ARGV[4] .. old)
	end
	redis.call("HSET", KEYS[1], "secret", ARGV[2], "secret_issued_at", ARGV[3], "updated_at", ARGV[3])
	redis.call("SET", KEYS[2], ARGV[1])
	if redis.call("HEXISTS", KEYS[1], "credential") == 0 then
		redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
	end
	return 1
`)

// BeginAuthorization creates the user's record or replaces its secret.
// An existing credential is left in place.
func (s *CredentialStore) BeginAuthorization(ctx context.Context, userID domain.UserID, secret string) error {
	now := s.now().UnixMilli()
	res, err := beginScript.Run(ctx, s.client,
		[]string{userKey(userID), secretKey(secret), authPendingKey},
		userID.String(), secret, now, authSecretPrefix,
	).Int64()
	if err != nil {
		return fmt.Errorf("begin authorization: %w", err)
	}
	if res == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// SecretExists reports whether any record holds secret.
func (s *CredentialStore) SecretExists(ctx context.Context, secret string) (bool, error) {
	n, err := s.client.Exists(ctx, secretKey(secret)).Result()
	if err != nil {
		return false, fmt.Errorf("check secret: %w", err)
	}
	return n > 0, nil
}

// completeScript writes the credential on the record the secret points to.
// Returns 0 if no record holds the secret.
var completeScript = redis.NewScript(`
	local id = redis.call("GET", KEYS[1])
	if not id then
		return 0
	end
	local user = ARGV[3] .. id
	if redis.call("EXISTS", user) == 0 then
		return 0
	end
	redis.call("HSET", user, "credential", ARGV[1], "updated_at", ARGV[2])
	redis.call("ZREM", KEYS[2], id)
	return 1
`)

// CompleteAuthorization attaches cred to the record holding secret.
// It returns false when no record holds it.
func (s *CredentialStore) CompleteAuthorization(ctx context.Context, secret string, cred *domain.Credential) (bool, error) {
	blob, err := s.codec.Encode(cred)
	if err != nil {
		return false, fmt.Errorf("encode credential: %w", err)
	}

	res, err := completeScript.Run(ctx, s.client,
		[]string{secretKey(secret), authPendingKey},
		blob, s.now().UnixMilli(), authUserPrefix,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("complete authorization: %w", err)
	}
	return res == 1, nil
}

// GetCredential returns the user's credential, or nil if there is none.
func (s *CredentialStore) GetCredential(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	blob, err := s.client.HGet(ctx, userKey(userID), fieldCredential).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	cred, err := s.codec.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

// saveScript replaces the credential of an existing record only.
var saveScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	redis.call("HSET", KEYS[1], "credential", ARGV[1], "updated_at", ARGV[2])
	redis.call("ZREM", KEYS[2], ARGV[3])
	return 1
`)

// SaveCredential replaces the user's credential. A user without a record
// is left alone.
func (s *CredentialStore) SaveCredential(ctx context.Context, userID domain.UserID, cred *domain.Credential) error {
	blob, err := s.codec.Encode(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	err = saveScript.Run(ctx, s.client,
		[]string{userKey(userID), authPendingKey},
		blob, s.now().UnixMilli(), userID.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Get returns the user's full record, or nil if there is none.
func (s *CredentialStore) Get(ctx context.Context, userID domain.UserID) (*domain.AuthorizationRecord, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get authorization: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &domain.AuthorizationRecord{
		UserID:         userID,
		Secret:         fields[fieldSecret],
		SecretIssuedAt: parseMillis(fields[fieldSecretIssuedAt]),
		UpdatedAt:      parseMillis(fields[fieldUpdatedAt]),
	}
	if blob, ok := fields[fieldCredential]; ok {
		cred, err := s.codec.Decode([]byte(blob))
		if err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		rec.Credential = cred
	}
	return rec, nil
}

// deleteScript removes a user record and its index entries.
var deleteScript = redis.NewScript(`
	local secret = redis.call("HGET", KEYS[1], "secret")
	if secret then
		redis.call("DEL", ARGV[2] .. secret)
	end
	redis.call("DEL", KEYS[1])
	redis.call("ZREM", KEYS[2], ARGV[1])
	return 1
`)

// Delete removes the user's record. Deleting a missing record is not an error.
func (s *CredentialStore) Delete(ctx context.Context, userID domain.UserID) error {
	err := deleteScript.Run(ctx, s.client,
		[]string{userKey(userID), authPendingKey},
		userID.String(), authSecretPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	return nil
}

// deleteStaleScript removes pending records issued before the cutoff.
// Entries whose record gained a credential are only dropped from the set.
var deleteStaleScript = redis.NewScript(`
	local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
	local removed = 0
	for _, id in ipairs(ids) do
		local user = ARGV[2] .. id
		if redis.call("HEXISTS", user, "credential") == 0 then
			local secret = redis.call("HGET", user, "secret")
			if secret then
				redis.call("DEL", ARGV[3] .. secret)
			end
			removed = removed + redis.call("DEL", user)
		end
		redis.call("ZREM", KEYS[1], id)
	end
	return removed
`)

// DeleteStalePending removes pending records whose secret was issued before
// issuedBefore and returns how many were removed.
func (s *CredentialStore) DeleteStalePending(ctx context.Context, issuedBefore time.Time) (int, error) {
	removed, err := deleteStaleScript.Run(ctx, s.client,
		[]string{authPendingKey},
		issuedBefore.UnixMilli(), authUserPrefix, authSecretPrefix,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("delete stale pending: %w", err)
	}
	return int(removed), nil
}

// Ping checks if the Redis backend is healthy.
func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
