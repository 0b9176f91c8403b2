package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// ProviderName is reported on every identity and error from this package
	ProviderName = "google"

	defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

	maxResponseBytes = 1 << 20
)

// Introspector turns a raw provider token into claims. Implementations
// report transport problems as auth.ErrUpstreamUnavailable and rejected
// tokens as auth.ErrInvalidProviderToken.
type Introspector interface {
	Introspect(ctx context.Context, token string) (Claims, error)
}

// TokenInfo asks Google's tokeninfo endpoint to validate an ID token
type TokenInfo struct {
	endpoint   string
	httpClient *http.Client
}

// TokenInfoOption customizes TokenInfo
type TokenInfoOption func(*TokenInfo)

// WithEndpoint overrides the tokeninfo URL
func WithEndpoint(endpoint string) TokenInfoOption {
	return func(t *TokenInfo) {
		if endpoint != "" {
			t.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) TokenInfoOption {
	return func(t *TokenInfo) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// NewTokenInfo creates a tokeninfo introspector.
func NewTokenInfo(opts ...TokenInfoOption) *TokenInfo {
	t := &TokenInfo{
		endpoint:   defaultTokenInfoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Introspect implements Introspector.
func (t *TokenInfo) Introspect(ctx context.Context, token string) (Claims, error) {
	data := url.Values{"id_token": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return Claims{}, upstreamUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Claims{}, upstreamUnavailable(providerError("tokeninfo", 0, "transport", "", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Claims{}, upstreamUnavailable(providerError("tokeninfo", resp.StatusCode, "read_body", "", err))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		code, desc := parseGoogleError(body)
		return Claims{}, upstreamUnavailable(providerError("tokeninfo", resp.StatusCode, code, desc, nil))
	case resp.StatusCode != http.StatusOK:
		code, desc := parseGoogleError(body)
		return Claims{}, invalidProviderToken(providerError("tokeninfo", resp.StatusCode, code, desc, nil))
	}

	var info tokenInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return Claims{}, upstreamUnavailable(providerError("tokeninfo", resp.StatusCode, "invalid_response", "failed to decode tokeninfo response", err))
	}

	return info.claims(), nil
}
