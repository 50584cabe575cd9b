package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// MockCredentialStore is an in-memory CredentialStore with the same
// secret-matching semantics as the real backends.
type MockCredentialStore struct {
	mu       sync.RWMutex
	records  map[domain.UserID]*domain.AuthorizationRecord
	bySecret map[string]domain.UserID

	// Optional error injection
	GetCredentialErr  error
	SaveCredentialErr error
	DeleteErr         error
	PingErr           error

	// Call counters (for test assertions)
	GetCredentialCalls int
	DeleteCalls        int
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		records:  make(map[domain.UserID]*domain.AuthorizationRecord),
		bySecret: make(map[string]domain.UserID),
	}
}

func (m *MockCredentialStore) BeginAuthorization(ctx context.Context, userID domain.UserID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, taken := m.bySecret[secret]; taken && owner != userID {
		return domain.ErrAlreadyExists
	}

	now := time.Now()
	rec, ok := m.records[userID]
	if !ok {
		rec = &domain.AuthorizationRecord{UserID: userID}
		m.records[userID] = rec
	} else {
		delete(m.bySecret, rec.Secret)
	}
	rec.Secret = secret
	rec.SecretIssuedAt = now
	rec.UpdatedAt = now
	m.bySecret[secret] = userID
	return nil
}

func (m *MockCredentialStore) SecretExists(ctx context.Context, secret string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bySecret[secret]
	return ok, nil
}

func (m *MockCredentialStore) CompleteAuthorization(ctx context.Context, secret string, cred *domain.Credential) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.bySecret[secret]
	if !ok {
		return false, nil
	}
	rec := m.records[userID]
	rec.Credential = copyCredential(cred)
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockCredentialStore) GetCredential(ctx context.Context, userID domain.UserID) (*domain.Credential, error) {
	m.mu.Lock()
	m.GetCredentialCalls++
	m.mu.Unlock()

	if m.GetCredentialErr != nil {
		return nil, m.GetCredentialErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok || rec.Credential == nil {
		return nil, nil
	}
	return copyCredential(rec.Credential), nil
}

func (m *MockCredentialStore) SaveCredential(ctx context.Context, userID domain.UserID, cred *domain.Credential) error {
	if m.SaveCredentialErr != nil {
		return m.SaveCredentialErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil
	}
	rec.Credential = copyCredential(cred)
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialStore) Get(ctx context.Context, userID domain.UserID) (*domain.AuthorizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	out := *rec
	out.Credential = copyCredential(rec.Credential)
	return &out, nil
}

func (m *MockCredentialStore) Delete(ctx context.Context, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if rec, ok := m.records[userID]; ok {
		delete(m.bySecret, rec.Secret)
		delete(m.records, userID)
	}
	return nil
}

func (m *MockCredentialStore) DeleteStalePending(ctx context.Context, issuedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.records {
		if rec.IsStalePending(issuedBefore) {
			delete(m.bySecret, rec.Secret)
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockCredentialStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Put stores a record directly (for test setup).
func (m *MockCredentialStore) Put(rec *domain.AuthorizationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.records[rec.UserID]; ok {
		delete(m.bySecret, old.Secret)
	}
	stored := *rec
	stored.Credential = copyCredential(rec.Credential)
	m.records[rec.UserID] = &stored
	if rec.Secret != "" {
		m.bySecret[rec.Secret] = rec.UserID
	}
}

// Counts returns the GetCredential and Delete call counts.
func (m *MockCredentialStore) Counts() (getCredential, del int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.GetCredentialCalls, m.DeleteCalls
}

// Len returns the number of stored records.
func (m *MockCredentialStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func copyCredential(c *domain.Credential) *domain.Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	return &out
}
