// Package auth exchanges identity provider authorization codes for user
// identities and enforces the email domain policy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrExchange is returned when the provider rejects the authorization code
// or returns an unusable token response.
var ErrExchange = errors.New("authorization code exchange failed")

// Config holds the hosted UI settings.
type Config struct {
	Domain         string // e.g. archpal.auth.us-east-1.amazoncognito.com
	ClientID       string
	ClientSecret   string // empty for public app clients
	RedirectURL    string
	LogoutURL      string // where the provider sends the browser after logout
	AllowedDomains []string
}

// Identity is the authenticated user as reported by the provider.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// Provider is the identity provider collaborator.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
	LogoutURL() string
}

// CognitoProvider runs the OAuth2 authorization-code flow against a
// Cognito hosted UI domain.
type CognitoProvider struct {
	oauth     *oauth2.Config
	baseURL   string
	clientID  string
	logoutURI string
	policy    *DomainPolicy
}

var _ Provider = (*CognitoProvider)(nil)

// idTokenClaims are the ID token claims we read.
type idTokenClaims struct {
	Email    string `json:"email"`
	Username string `json:"cognito:username"`
	jwt.RegisteredClaims
}

// NewCognitoProvider creates a provider.
func NewCognitoProvider(cfg Config) (*CognitoProvider, error) {
	if cfg.Domain == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("cognito domain, client id and redirect url are required")
	}

	base := strings.TrimSuffix(cfg.Domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	return &CognitoProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/oauth2/authorize",
				TokenURL: base + "/oauth2/token",
			},
		},
		baseURL:   base,
		clientID:  cfg.ClientID,
		logoutURI: cfg.LogoutURL,
		policy:    NewDomainPolicy(cfg.AllowedDomains),
	}, nil
}

// AuthCodeURL returns the hosted UI login URL.
func (p *CognitoProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades code for tokens, reads the ID token claims and applies
// the domain policy. The ID token signature is not verified; the token
// comes straight from the provider's token endpoint over TLS.
func (p *CognitoProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrExchange)
	}

	identity, err := parseIDToken(rawIDToken)
	if err != nil {
		return nil, err
	}

	if err := p.policy.Check(identity.Email); err != nil {
		return nil, err
	}
	return identity, nil
}

// LogoutURL returns the provider logout URL.
func (p *CognitoProvider) LogoutURL() string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("logout_uri", p.logoutURI)
	return p.baseURL + "/logout?" + q.Encode()
}

func parseIDToken(raw string) (*Identity, error) {
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: invalid id_token: %v", ErrExchange, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: id_token has no subject", ErrExchange)
	}

	username := claims.Username
	if username == "" {
		username = claims.Email
	}
	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: username,
	}, nil
}
