package mocks

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// MockOAuthProvider is a configurable OAuthProvider for testing.
type MockOAuthProvider struct {
	mu sync.Mutex

	ExchangeFn func(ctx context.Context, code string) (*domain.Credential, error)
	RefreshFn  func(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)

	ExchangeCalls int
	RefreshCalls  int
}

// NewMockOAuthProvider creates a new MockOAuthProvider
func NewMockOAuthProvider() *MockOAuthProvider {
	return &MockOAuthProvider{}
}

// AuthorizationURL returns a fake consent URL carrying state.
func (m *MockOAuthProvider) AuthorizationURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?" + url.Values{
		"state":       {state},
		"access_type": {"offline"},
	}.Encode()
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*domain.Credential, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(ctx, code)
	}
	return nil, errors.New("not implemented")
}

func (m *MockOAuthProvider) Refresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, cred)
	}
	return nil, errors.New("not implemented")
}

// Calls returns the exchange and refresh call counts.
func (m *MockOAuthProvider) Calls() (exchange, refresh int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExchangeCalls, m.RefreshCalls
}
