package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
	"github.com/goliatone/go-authcore/httpapi"
	"github.com/goliatone/go-authcore/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testConfig struct{}

func (testConfig) GetSigningKey() string      { return "http-test-key" }
func (testConfig) GetTokenTTL() time.Duration { return time.Hour }
func (testConfig) GetIssuer() string          { return "go-authcore" }
func (testConfig) GetAudience() []string      { return nil }

type exchangerFunc func(ctx context.Context, token string) (auth.FederatedIdentity, error)

func (f exchangerFunc) Exchange(ctx context.Context, token string) (auth.FederatedIdentity, error) {
	return f(ctx, token)
}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenService
}

func googleStub(_ context.Context, token string) (auth.FederatedIdentity, error) {
	switch token {
	case "good-google-token":
		return auth.FederatedIdentity{Provider: "google", Email: "fed@x.com", EmailVerified: true}, nil
	case "google-down":
		return auth.FederatedIdentity{}, auth.ErrUpstreamUnavailable
	default:
		return auth.FederatedIdentity{}, auth.ErrInvalidProviderToken
	}
}

func newTestServer(t *testing.T, configure ...func(*httpapi.Handlers)) testServer {
	t.Helper()

	db, err := repository.OpenDB(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))

	store := repository.NewBunAccounts(db)
	tokens, err := auth.NewTokenService(testConfig{}, nil)
	require.NoError(t, err)

	auther := auth.NewAuthenticator(store, tokens, exchangerFunc(googleStub)).
		WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost))
	accounts := auth.NewAccountService(store, store)

	handlers := httpapi.NewHandlers(auther, accounts, tokens)
	for _, fn := range configure {
		fn(handlers)
	}

	app := httpapi.NewApp(handlers, nil)
	return testServer{app: app, tokens: tokens}
}

type envelope struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
}

func (s testServer) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := envelope{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func tokenFrom(t *testing.T, e envelope) string {
	t.Helper()
	data := httpapi.TokenResponse{}
	require.NoError(t, json.Unmarshal(e.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/signup", credentials("a@x.com", "password-1"), "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Signup Success", body.Message)
	signupToken := tokenFrom(t, body)

	status, body = s.do(t, http.MethodPost, "/auth/login", credentials("A@x.com", "password-1"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login Success", body.Message)
	loginToken := tokenFrom(t, body)

	signupSubject, err := s.tokens.Verify(signupToken)
	require.NoError(t, err)
	loginSubject, err := s.tokens.Verify(loginToken)
	require.NoError(t, err)
	assert.Equal(t, signupSubject, loginSubject)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/auth/signup", credentials("a@x.com", "password-1"), "")
	require.Equal(t, http.StatusCreated, status)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate signup", "/auth/signup", credentials("a@x.com", "password-2"), http.StatusConflict, auth.TextCodeDuplicateAccount},
		{"invalid signup", "/auth/signup", credentials("nope", "short"), http.StatusBadRequest, auth.TextCodeInvalidInput},
		{"wrong password", "/auth/login", credentials("a@x.com", "password-2"), http.StatusUnauthorized, auth.TextCodeInvalidPassword},
		{"unknown account", "/auth/login", credentials("b@x.com", "password-1"), http.StatusNotFound, auth.TextCodeAccountNotFound},
		{"broken body", "/auth/login", "{not json", http.StatusBadRequest, auth.TextCodeInvalidInput},
		{"provider rejects", "/auth/google/login", map[string]string{"token": "forged"}, http.StatusUnauthorized, auth.TextCodeInvalidProviderToken},
		{"provider down", "/auth/google/login", map[string]string{"token": "google-down"}, http.StatusBadGateway, auth.TextCodeUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestSignupValidationDetails(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/signup", credentials("nope", "short"), "")
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, body.Details)
	assert.Contains(t, body.Details, "fields")
}

func TestGoogleLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/auth/google/login", map[string]string{"token": "good-google-token"}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Success", body.Message)
	token := tokenFrom(t, body)

	status, body = s.do(t, http.MethodGet, "/user", nil, token)
	require.Equal(t, http.StatusOK, status)

	account := auth.Account{}
	require.NoError(t, json.Unmarshal(body.Data, &account))
	assert.Equal(t, "fed@x.com", account.Email)
	assert.True(t, account.FederationOnly)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(t, http.MethodPost, "/auth/signup", credentials("a@x.com", "password-1"), "")
	token := tokenFrom(t, body)
	_, _ = s.do(t, http.MethodPost, "/auth/signup", credentials("b@x.com", "password-1"), "")

	status, body := s.do(t, http.MethodGet, "/user", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body.Data), "credential")
	assert.NotContains(t, string(body.Data), "$2a$")

	status, body = s.do(t, http.MethodPatch, "/user", map[string]string{"email": "C@x.com"}, token)
	require.Equal(t, http.StatusOK, status)
	updated := auth.Account{}
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, "c@x.com", updated.Email)

	status, body = s.do(t, http.MethodPatch, "/user", map[string]string{"email": "b@x.com"}, token)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, auth.TextCodeDuplicateAccount, body.Code)

	status, body = s.do(t, http.MethodGet, "/user/all", nil, token)
	require.Equal(t, http.StatusOK, status)
	all := []auth.Account{}
	require.NoError(t, json.Unmarshal(body.Data, &all))
	assert.Len(t, all, 2)

	status, _ = s.do(t, http.MethodDelete, "/user", nil, token)
	require.Equal(t, http.StatusOK, status)

	// the credential outlives the account
	status, body = s.do(t, http.MethodGet, "/user", nil, token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, auth.TextCodeAccountNotFound, body.Code)
}

func TestBearerGuard(t *testing.T) {
	s := newTestServer(t)

	expiredTokens, err := auth.NewTokenService(testConfig{}, nil, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	require.NoError(t, err)
	expired, err := expiredTokens.Issue("7d0c8a51-7a0e-4c55-9a57-7c7d0f4f6a11")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, auth.TextCodeInvalidCredential},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusBadRequest, auth.TextCodeMalformedCredential},
		{"empty bearer", "Bearer ", http.StatusBadRequest, auth.TextCodeMalformedCredential},
		{"not a token", "Bearer abc", http.StatusBadRequest, auth.TextCodeMalformedCredential},
		{"bad signature", "Bearer aaa.bbb.ccc", http.StatusUnauthorized, auth.TextCodeInvalidCredential},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, auth.TextCodeExpiredCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}

			resp, err := s.app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			body := envelope{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

type failingAccounts struct{}

func (failingAccounts) Profile(context.Context, string) (*auth.Account, error) {
	return nil, errors.New("connection reset by peer")
}

func (failingAccounts) UpdateProfile(context.Context, string, auth.ProfileInput) (*auth.Account, error) {
	return nil, errors.New("connection reset by peer")
}

func (failingAccounts) List(context.Context) ([]*auth.Account, error) {
	return nil, errors.New("connection reset by peer")
}

func (failingAccounts) Remove(context.Context, string) (*auth.Account, error) {
	return nil, errors.New("connection reset by peer")
}

type staticVerifier string

func (v staticVerifier) Verify(string) (string, error) { return string(v), nil }

func TestUnexpectedErrorsAreInternal(t *testing.T) {
	app := httpapi.NewApp(httpapi.NewHandlers(nil, failingAccounts{}, staticVerifier("id-1")), nil)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer anything")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := envelope{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body.Message, "connection reset")
	assert.Nil(t, body.Details)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
