package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	auth "github.com/goliatone/go-authcore"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

// DefaultScopes are requested by the redirect login
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// CodeFlow runs the browser redirect half of Google login: it builds the
// consent URL and trades the returned code for an ID token. The ID token is
// then handed to the same Exchanger used for direct token login.
type CodeFlow struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// CodeFlowOption customizes CodeFlow
type CodeFlowOption func(*CodeFlow)

// WithOAuthEndpoints overrides the authorization and token URLs
func WithOAuthEndpoints(authURL, tokenURL string) CodeFlowOption {
	return func(f *CodeFlow) {
		if authURL != "" {
			f.config.Endpoint.AuthURL = authURL
		}
		if tokenURL != "" {
			f.config.Endpoint.TokenURL = tokenURL
		}
	}
}

// WithScopes overrides the requested scopes
func WithScopes(scopes ...string) CodeFlowOption {
	return func(f *CodeFlow) {
		if len(scopes) > 0 {
			f.config.Scopes = scopes
		}
	}
}

// WithCodeFlowHTTPClient overrides the HTTP client used for the code exchange
func WithCodeFlowHTTPClient(client *http.Client) CodeFlowOption {
	return func(f *CodeFlow) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewCodeFlow creates a CodeFlow. All three values are required.
func NewCodeFlow(clientID, clientSecret, redirectURL string, opts ...CodeFlowOption) (*CodeFlow, error) {
	var missing []string
	if strings.TrimSpace(clientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(clientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(redirectURL) == "" {
		missing = append(missing, "redirect_url")
	}
	if len(missing) > 0 {
		return nil, auth.WithCause(auth.ErrConfiguration, nil, map[string]any{
			"provider": ProviderName,
			"missing":  missing,
		})
	}

	f := &CodeFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       DefaultScopes(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   defaultAuthURL,
				TokenURL:  defaultTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f, nil
}

// AuthCodeURL returns the consent URL carrying state and the PKCE challenge
// for verifier.
func (f *CodeFlow) AuthCodeURL(state, verifier string) string {
	return f.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades an authorization code for the raw ID token
func (f *CodeFlow) Exchange(ctx context.Context, code, verifier string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", invalidProviderToken(providerError("code_exchange", 0, "missing_code", "authorization code is required", nil))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)

	token, err := f.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", classifyExchangeError(err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", invalidProviderToken(providerError("code_exchange", 0, "missing_id_token", "token response has no id_token", nil))
	}

	return idToken, nil
}

func classifyExchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}

		perr := providerError("code_exchange", status, rerr.ErrorCode, rerr.ErrorDescription, err)
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return upstreamUnavailable(perr)
		}
		return invalidProviderToken(perr)
	}

	// transport failures and unreadable responses alike
	return upstreamUnavailable(providerError("code_exchange", 0, "", "", err))
}
