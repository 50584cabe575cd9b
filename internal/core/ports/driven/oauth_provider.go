package driven

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// OAuthProvider is the identity provider's authorization and token endpoints.
type OAuthProvider interface {
	// AuthorizationURL builds the consent URL carrying state as the
	// correlation value. Offline access and incremental scopes are requested.
	AuthorizationURL(state string) string

	// Exchange trades an authorization code for a credential.
	Exchange(ctx context.Context, code string) (*domain.Credential, error)

	// Refresh trades the credential's refresh token for a renewed credential.
	Refresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
}
