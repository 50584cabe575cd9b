package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure CallbackService implements driving.CallbackService
var _ driving.CallbackService = (*CallbackService)(nil)

// CallbackService completes authorizations when the provider redirects the
// user back with an authorization code. The state parameter is the secret
// issued by the SessionAuthenticator.
type CallbackService struct {
	store    driven.CredentialStore
	provider driven.OAuthProvider
	logger   *slog.Logger
}

// NewCallbackService creates a new CallbackService.
func NewCallbackService(store driven.CredentialStore, provider driven.OAuthProvider, logger *slog.Logger) *CallbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackService{
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// Complete validates the callback, exchanges the code and attaches the
// resulting credential to the record holding the secret.
func (s *CallbackService) Complete(ctx context.Context, req driving.CallbackRequest) error {
	if req.Error != "" {
		s.logger.Warn("provider returned an authorization error",
			"error", req.Error,
			"description", req.ErrorDescription,
		)
	}
	if req.Code == "" || req.State == "" {
		return domain.ErrMissingParameters
	}

	exists, err := s.store.SecretExists(ctx, req.State)
	if err != nil {
		return fmt.Errorf("check secret: %w", err)
	}
	if !exists {
		s.logger.Warn("callback with unknown secret")
		return domain.ErrUnknownSecret
	}

	cred, err := s.provider.Exchange(ctx, req.Code)
	if err != nil {
		var grantErr *domain.GrantExchangeError
		if errors.As(err, &grantErr) {
			return grantErr
		}
		return &domain.GrantExchangeError{Reason: err.Error()}
	}

	matched, err := s.store.CompleteAuthorization(ctx, req.State, cred)
	if err != nil {
		return fmt.Errorf("complete authorization: %w", err)
	}
	if !matched {
		// The record was deleted (timeout or revoke) while the code was exchanged.
		s.logger.Warn("authorization record vanished during exchange")
		return domain.ErrUnknownSecret
	}

	summary := cred.ToSummary()
	s.logger.Info("authorization completed",
		"account", summary.Account,
		"scopes", summary.Scopes,
		"has_refresh_token", summary.HasRefreshToken,
	)
	return nil
}
