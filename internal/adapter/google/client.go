package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/smallbiznis/teamdocs-auth/internal/identity"
)

// ProviderName tags users provisioned through this client.
const ProviderName = "google"

const issuerURL = "https://accounts.google.com"

// Client implements identity.HandshakeClient against Google's OIDC stack.
// The returned profile is trusted downstream: the id_token is verified here.
type Client struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

var _ identity.HandshakeClient = (*Client)(nil)

// New discovers Google's OIDC endpoints and prepares the handshake client.
func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Client, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL builds the consent-dialog URL with state, nonce, and PKCE.
func (c *Client) AuthCodeURL(state, nonce, codeVerifier string) string {
	return c.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange trades the authorization code for tokens, verifies the id_token,
// and extracts the profile claims, including the hosted-domain claim that
// drives tenancy eligibility.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (*identity.Profile, error) {
	token, err := c.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google did not return id_token")
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google id_token verification: %w", err)
	}

	var claims struct {
		Subject      string `json:"sub"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		Picture      string `json:"picture"`
		HostedDomain string `json:"hd"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("google id_token missing subject claim")
	}

	return &identity.Profile{
		SubjectID:    claims.Subject,
		Name:         claims.Name,
		Email:        claims.Email,
		Picture:      claims.Picture,
		HostedDomain: claims.HostedDomain,
	}, nil
}
