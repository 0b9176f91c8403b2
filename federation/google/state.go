package google

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-authcore"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	stateAudience   = "google-login-state"
	defaultStateTTL = 10 * time.Minute
)

// LoginState is what the redirect login remembers between the consent
// redirect and the callback. Nonce travels as the OAuth state parameter,
// Verifier never leaves the server signed cookie.
type LoginState struct {
	Nonce     string
	Verifier  string
	ExpiresAt time.Time
}

type stateClaims struct {
	Verifier string `json:"cv"`
	jwt.RegisteredClaims
}

// StateCodec signs LoginState into a cookie value and checks it on return
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// StateOption customizes StateCodec
type StateOption func(*StateCodec)

// WithStateTTL sets how long a login attempt stays valid
func WithStateTTL(ttl time.Duration) StateOption {
	return func(s *StateCodec) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStateClock overrides the time source
func WithStateClock(now func() time.Time) StateOption {
	return func(s *StateCodec) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStateCodec derives its own key from secret so a state cookie is never
// accepted as a session credential and the other way around.
func NewStateCodec(secret string, opts ...StateOption) (*StateCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, auth.WithCause(auth.ErrConfiguration, nil, map[string]any{
			"provider": ProviderName,
			"reason":   "missing state secret",
		})
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stateAudience))

	s := &StateCodec{
		key: mac.Sum(nil),
		ttl: defaultStateTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// TTL returns the lifetime of a login attempt
func (s *StateCodec) TTL() time.Duration {
	return s.ttl
}

// New starts a login attempt and returns it with its signed cookie value
func (s *StateCodec) New() (LoginState, string, error) {
	now := s.now().UTC().Truncate(time.Second)
	state := LoginState{
		Nonce:     uuid.NewString(),
		Verifier:  oauth2.GenerateVerifier(),
		ExpiresAt: now.Add(s.ttl),
	}

	claims := stateClaims{
		Verifier: state.Verifier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        state.Nonce,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(state.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return LoginState{}, "", auth.WithCause(auth.ErrConfiguration, err, nil)
	}

	return state, signed, nil
}

// Verify checks the cookie signature and expiry and that the state returned
// by Google is the one issued with it.
func (s *StateCodec) Verify(cookie, state string) (LoginState, error) {
	if cookie == "" || state == "" {
		return LoginState{}, invalidState("missing_state", "login state is missing", nil)
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(cookie, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(stateAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return LoginState{}, invalidState("invalid_state", "login state is invalid or expired", err)
	}

	if claims.ID == "" || subtle.ConstantTimeCompare([]byte(claims.ID), []byte(state)) != 1 {
		return LoginState{}, invalidState("state_mismatch", "login state does not match", nil)
	}

	return LoginState{
		Nonce:     claims.ID,
		Verifier:  claims.Verifier,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func invalidState(code, description string, err error) error {
	return invalidProviderToken(providerError("state", 0, code, description, err))
}
