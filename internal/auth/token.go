// Package auth resolves bearer credentials for the upload destination. The
// transfer core consumes tokens as opaque strings; refresh and exchange of
// long-lived credentials live entirely here.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider yields a valid bearer token at call time.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pass-through provider for callers that supply a bearer
// token inline with the request.
type StaticToken string

// Token returns the wrapped token string.
func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return string(t), nil
}

// OAuthConfig holds client credentials for the refresh-token exchange.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// Configured reports whether a server-side refresh-token exchange is
// possible.
func (c OAuthConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// OAuthTokenSource exchanges a stored refresh token for short-lived access
// tokens. Access tokens are cached and refreshed by the underlying oauth2
// token source; the refresh token itself is never rewritten.
type OAuthTokenSource struct {
	cfg     *oauth2.Config
	refresh string
}

// NewOAuthTokenSource creates a provider from client credentials and a
// refresh token obtained via the one-time browser consent flow.
func NewOAuthTokenSource(cfg OAuthConfig) *OAuthTokenSource {
	return &OAuthTokenSource{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		refresh: cfg.RefreshToken,
	}
}

// Token exchanges the refresh token for an access token.
func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	ts := s.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refresh})
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("refresh token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
