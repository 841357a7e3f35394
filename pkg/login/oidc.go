package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/authbridge/authbridge/pkg/provider"
)

// OIDCClient wraps the discovered issuer, the token verifier, and the OAuth2
// exchange configuration for one registry entry.
type OIDCClient struct {
	provider      *oidc.Provider
	verifier      *oidc.IDTokenVerifier
	config        *oauth2.Config
	selectAccount bool
}

func (h *Hub) buildOpenIDClient(ctx context.Context, p provider.Provider) (*OIDCClient, error) {
	issuer := p.GetString(provider.FieldIssuerURI)
	if issuer == "" {
		return nil, fmt.Errorf("%w: missing issuerUri", provider.ErrInvalidProvider)
	}
	ctx = oidc.ClientContext(ctx, h.client)
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer: %w", err)
	}

	verifierConfig := &oidc.Config{ClientID: p.GetString(provider.FieldClientID)}
	if algo := p.GetString(provider.FieldSigningAlgo); algo != "" {
		verifierConfig.SupportedSigningAlgs = []string{algo}
	}

	base := strings.TrimSuffix(h.baseURI(), "/")
	return &OIDCClient{
		provider: discovered,
		verifier: discovered.Verifier(verifierConfig),
		config: &oauth2.Config{
			ClientID:     p.GetString(provider.FieldClientID),
			ClientSecret: p.GetString(provider.FieldClientSecret),
			Endpoint:     discovered.Endpoint(),
			RedirectURL:  base + "/oidc/callback",
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		selectAccount: p.GetBool(provider.FieldSelectAccount),
	}, nil
}

// AuthURL builds the authorization redirect. The state parameter carries the
// login request identifier; the nonce binds the eventual ID token to this
// handshake.
func (c *OIDCClient) AuthURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{oidc.Nonce(nonce)}
	if c.selectAccount {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	return c.config.AuthCodeURL(state, opts...)
}

// Exchange redeems the authorization code and verifies the returned ID
// token, including the nonce binding, returning the token claims.
func (c *OIDCClient) Exchange(ctx context.Context, code, nonce string) (map[string]any, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("token response carried no id_token")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, fmt.Errorf("ID token nonce mismatch")
	}
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims, nil
}
