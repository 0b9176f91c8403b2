package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	auth "github.com/goliatone/go-authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientSecret = "client-secret"
	testRedirectURL  = "http://localhost:3000/auth/google/callback"
)

func tokenEndpoint(t *testing.T, status int, payload map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))
		assert.Equal(t, testClientID, r.PostForm.Get("client_id"))
		assert.Equal(t, testClientSecret, r.PostForm.Get("client_secret"))
		assert.Equal(t, testRedirectURL, r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestCodeFlow(t *testing.T, tokenURL string) *CodeFlow {
	t.Helper()
	flow, err := NewCodeFlow(testClientID, testClientSecret, testRedirectURL,
		WithOAuthEndpoints("https://accounts.example.com/auth", tokenURL),
	)
	require.NoError(t, err)
	return flow
}

func TestNewCodeFlowRequiresCredentials(t *testing.T) {
	_, err := NewCodeFlow(testClientID, "", "")
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrConfiguration))
	assert.Equal(t, []string{"client_secret", "redirect_url"}, providerErrorMetadata(t, err)["missing"])
}

func TestCodeFlowAuthCodeURL(t *testing.T) {
	flow := newTestCodeFlow(t, "http://unused")

	raw := flow.AuthCodeURL("state-1", "the-verifier")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.example.com", u.Host)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, testRedirectURL, q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier("the-verifier"), q.Get("code_challenge"))
}

func TestCodeFlowExchange(t *testing.T) {
	server := tokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     "raw-id-token",
	})

	idToken, err := newTestCodeFlow(t, server.URL).Exchange(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "raw-id-token", idToken)
}

func TestCodeFlowExchangeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload map[string]any
		kind    error
		code    string
	}{
		{
			name:    "rejected code",
			status:  http.StatusBadRequest,
			payload: map[string]any{"error": "invalid_grant", "error_description": "Bad Request"},
			kind:    auth.ErrInvalidProviderToken,
			code:    "invalid_grant",
		},
		{
			name:    "provider down",
			status:  http.StatusServiceUnavailable,
			payload: map[string]any{"error": "unavailable"},
			kind:    auth.ErrUpstreamUnavailable,
		},
		{
			name:    "no id token",
			status:  http.StatusOK,
			payload: map[string]any{"access_token": "access", "token_type": "Bearer"},
			kind:    auth.ErrInvalidProviderToken,
			code:    "missing_id_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tokenEndpoint(t, tt.status, tt.payload)

			_, err := newTestCodeFlow(t, server.URL).Exchange(context.Background(), "the-code", "the-verifier")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.code != "" {
				assert.Equal(t, tt.code, providerErrorMetadata(t, err)["code"])
			}
		})
	}
}

func TestCodeFlowExchangeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	_, err := newTestCodeFlow(t, endpoint).Exchange(context.Background(), "the-code", "the-verifier")
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrUpstreamUnavailable))
}

func TestCodeFlowExchangeRequiresCode(t *testing.T) {
	_, err := newTestCodeFlow(t, "http://unused").Exchange(context.Background(), " ", "the-verifier")
	assert.True(t, auth.IsErrorKind(err, auth.ErrInvalidProviderToken))
}

func TestStateCodecRoundTrip(t *testing.T) {
	codec, err := NewStateCodec("secret")
	require.NoError(t, err)

	state, cookie, err := codec.New()
	require.NoError(t, err)
	assert.NotEmpty(t, state.Nonce)
	assert.NotEmpty(t, state.Verifier)
	assert.NotContains(t, cookie, state.Verifier)

	got, err := codec.Verify(cookie, state.Nonce)
	require.NoError(t, err)
	assert.Equal(t, state.Nonce, got.Nonce)
	assert.Equal(t, state.Verifier, got.Verifier)
	assert.True(t, state.ExpiresAt.Equal(got.ExpiresAt))
}

func TestStateCodecRejects(t *testing.T) {
	start := time.Now()
	current := start

	codec, err := NewStateCodec("secret", WithStateTTL(time.Minute), WithStateClock(func() time.Time { return current }))
	require.NoError(t, err)
	other, err := NewStateCodec("another-secret")
	require.NoError(t, err)

	state, cookie, err := codec.New()
	require.NoError(t, err)
	_, foreignCookie, err := other.New()
	require.NoError(t, err)

	tests := map[string]struct {
		cookie string
		state  string
		code   string
	}{
		"missing cookie":  {"", state.Nonce, "missing_state"},
		"missing state":   {cookie, "", "missing_state"},
		"other state":     {cookie, "someone-elses-state", "state_mismatch"},
		"tampered cookie": {cookie + "x", state.Nonce, "invalid_state"},
		"other key":       {foreignCookie, state.Nonce, "invalid_state"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(tt.cookie, tt.state)
			require.Error(t, err)
			assert.True(t, auth.IsErrorKind(err, auth.ErrInvalidProviderToken))
			assert.Equal(t, tt.code, providerErrorMetadata(t, err)["code"])
		})
	}

	current = start.Add(2 * time.Minute)
	_, err = codec.Verify(cookie, state.Nonce)
	require.Error(t, err)
	assert.Equal(t, "invalid_state", providerErrorMetadata(t, err)["code"])
}

func TestStateCookieIsNotASessionCredential(t *testing.T) {
	codec, err := NewStateCodec("shared-secret")
	require.NoError(t, err)
	_, cookie, err := codec.New()
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(stateTestConfig{}, nil)
	require.NoError(t, err)

	_, err = tokens.Verify(cookie)
	assert.True(t, auth.IsErrorKind(err, auth.ErrInvalidCredential))
}

func TestNewStateCodecRequiresSecret(t *testing.T) {
	_, err := NewStateCodec(" ")
	assert.True(t, auth.IsErrorKind(err, auth.ErrConfiguration))
}

type stateTestConfig struct{}

func (stateTestConfig) GetSigningKey() string      { return "shared-secret" }
func (stateTestConfig) GetTokenTTL() time.Duration { return time.Hour }
func (stateTestConfig) GetIssuer() string          { return "" }
func (stateTestConfig) GetAudience() []string      { return nil }
