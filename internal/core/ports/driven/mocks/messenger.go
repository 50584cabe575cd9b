package mocks

import (
	"context"
	"net/url"
	"sync"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// SentAuthorization is one captured authorization request.
type SentAuthorization struct {
	UserID domain.UserID
	URL    string
}

// State returns the state query parameter of the captured URL.
func (s SentAuthorization) State() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}

// MockMessenger captures authorization requests and publishes them on Sent.
type MockMessenger struct {
	mu   sync.Mutex
	sent []SentAuthorization

	// Sent receives every captured request (buffered).
	Sent chan SentAuthorization

	// Err is returned from SendAuthorizationRequest when set.
	Err error
}

// NewMockMessenger creates a new MockMessenger
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{Sent: make(chan SentAuthorization, 64)}
}

func (m *MockMessenger) SendAuthorizationRequest(ctx context.Context, userID domain.UserID, authorizationURL string) error {
	msg := SentAuthorization{UserID: userID, URL: authorizationURL}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	select {
	case m.Sent <- msg:
	default:
	}
	return m.Err
}

// All returns every captured request in order.
func (m *MockMessenger) All() []SentAuthorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentAuthorization(nil), m.sent...)
}
