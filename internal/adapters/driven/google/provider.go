package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthProvider = (*Provider)(nil)

// DefaultScopes grants full Drive access plus the account email.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive",
	"openid",
	"email",
}

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides Google's endpoints (tests).
	Endpoint oauth2.Endpoint

	// HTTPClient is used for token requests when set.
	HTTPClient *http.Client
}

// Provider implements driven.OAuthProvider against Google's OAuth2 endpoints.
type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewProvider creates a Google OAuth provider.
func NewProvider(cfg Config) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = googleoauth.Endpoint
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
	}
}

// AuthorizationURL builds the consent URL. Offline access and a forced
// consent prompt make Google issue a refresh token on every grant.
func (p *Provider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("prompt", "select_account consent"),
	)
}

// Exchange trades an authorization code for a credential.
func (p *Provider) Exchange(ctx context.Context, code string) (*domain.Credential, error) {
	tok, err := p.oauth.Exchange(p.context(ctx), code)
	if err != nil {
		return nil, &domain.GrantExchangeError{Reason: describe(err)}
	}
	return p.credentialFromToken(tok), nil
}

// Refresh obtains a new access token with the credential's refresh token.
func (p *Provider) Refresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	src := p.oauth.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %s", describe(err))
	}
	return p.credentialFromToken(tok), nil
}

// Client returns an HTTP client that authorizes Drive API requests with
// cred and refreshes it transparently in memory.
func (p *Provider) Client(ctx context.Context, cred *domain.Credential) *http.Client {
	return p.oauth.Client(p.context(ctx), TokenFromCredential(cred))
}

// TokenFromCredential converts a stored credential to an oauth2 token.
func TokenFromCredential(cred *domain.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.Expiry,
	}
}

func (p *Provider) context(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) credentialFromToken(tok *oauth2.Token) *domain.Credential {
	cred := &domain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}

	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		cred.Scopes = strings.Fields(scope)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		cred.Account = emailFromIDToken(idToken)
	}
	return cred
}

// emailFromIDToken reads the email claim. The token comes straight from the
// token endpoint over TLS, so its signature is not checked.
func emailFromIDToken(idToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

// describe renders a token endpoint failure as the provider's own error text.
func describe(err error) string {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return err.Error()
	}
	switch {
	case rErr.ErrorCode != "" && rErr.ErrorDescription != "":
		return rErr.ErrorCode + ": " + rErr.ErrorDescription
	case rErr.ErrorCode != "":
		return rErr.ErrorCode
	case rErr.Response != nil:
		return fmt.Sprintf("token endpoint returned %s", rErr.Response.Status)
	default:
		return err.Error()
	}
}
