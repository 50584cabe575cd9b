package driven

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// AuthorizationMessenger delivers the authorization URL to the user.
// Delivery is best-effort; callers log failures and do not retry.
type AuthorizationMessenger interface {
	SendAuthorizationRequest(ctx context.Context, userID domain.UserID, authorizationURL string) error
}
