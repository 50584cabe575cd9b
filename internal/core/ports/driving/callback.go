package driving

import "context"

// CallbackRequest represents the redirect from the identity provider.
type CallbackRequest struct {
	// Code is the authorization grant.
	Code string

	// State is the correlation secret issued by StartAuthorization.
	State string

	// Error is set if the provider returned an error (e.g. access_denied).
	Error string

	// ErrorDescription provides details about the error.
	ErrorDescription string
}

// CallbackService completes pending authorizations from provider redirects.
type CallbackService interface {
	// Complete validates the request, exchanges the grant and stores the
	// credential against the matching secret. Errors match
	// domain.ErrMissingParameters, domain.ErrUnknownSecret or
	// *domain.GrantExchangeError.
	Complete(ctx context.Context, req CallbackRequest) error
}
