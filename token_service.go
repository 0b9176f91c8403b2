package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService signs and verifies bearer credentials. It holds the signing
// key for its lifetime and is safe for concurrent use.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

// TokenOption customizes a TokenService
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issue and verify
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

var _ TokenCodec = (*TokenService)(nil)

// NewTokenService creates a TokenService. It fails with ErrConfiguration
// when no signing key is configured or the TTL is not positive, which
// callers should treat as fatal at startup.
func NewTokenService(cfg Config, logger Logger, opts ...TokenOption) (*TokenService, error) {
	if cfg == nil {
		return nil, WithCause(ErrConfiguration, nil, map[string]any{"reason": "missing config"})
	}

	key := cfg.GetSigningKey()
	if strings.TrimSpace(key) == "" {
		return nil, WithCause(ErrConfiguration, nil, map[string]any{"reason": "missing signing key"})
	}

	ttl := cfg.GetTokenTTL()
	if ttl <= 0 {
		return nil, WithCause(ErrConfiguration, nil, map[string]any{
			"reason": "token ttl must be positive",
			"ttl":    ttl.String(),
		})
	}

	var aud jwt.ClaimStrings
	for _, a := range cfg.GetAudience() {
		if a = strings.TrimSpace(a); a != "" {
			aud = append(aud, a)
		}
	}

	ts := &TokenService{
		signingKey: []byte(key),
		ttl:        ttl,
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		now:        time.Now,
		logger:     normalizeLogger(logger),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// TTL returns the configured credential lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue mints a credential for the given account id
func (ts *TokenService) Issue(subjectID string) (string, error) {
	token, _, err := ts.IssueWithExpiry(subjectID)
	return token, err
}

// IssueWithExpiry mints a credential and returns its expiration time
func (ts *TokenService) IssueWithExpiry(subjectID string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, WithCause(ErrInvalidInput, nil, map[string]any{"field": "subject"})
	}

	// second precision keeps the returned expiry equal to the encoded one
	now := ts.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ts.ttl)

	claims := &AccountClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subjectID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// SignClaims signs the claims with the configured key
func (ts *TokenService) SignClaims(claims *AccountClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify checks the credential and returns the account id it carries
func (ts *TokenService) Verify(token string) (string, error) {
	claims, err := ts.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.Subject(), nil
}

// Validate parses and validates a token string. Errors are always one of
// ErrMalformedCredential, ErrExpiredCredential or ErrInvalidCredential.
func (ts *TokenService) Validate(tokenString string) (*AccountClaims, error) {
	if !credentialShaped(tokenString) {
		return nil, ErrMalformedCredential
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		// the v5 parser only validates claims once the signature matched
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, WithCause(ErrExpiredCredential, err, nil)
		}
		return nil, WithCause(ErrInvalidCredential, err, nil)
	}

	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid || claims.Subject() == "" {
		ts.logger.Warn("TokenService validate could not decode account claims")
		return nil, ErrInvalidCredential
	}

	if !ts.audienceAllowed(claims.Audience) {
		ts.logger.Warn("TokenService validate audience mismatch", "aud", claims.Audience)
		return nil, WithCause(ErrInvalidCredential, jwt.ErrTokenInvalidAudience, nil)
	}

	return claims, nil
}

// audienceAllowed accepts a token carrying at least one configured audience.
// Without configured audiences any token is accepted.
func (ts *TokenService) audienceAllowed(aud jwt.ClaimStrings) bool {
	if len(ts.audience) == 0 {
		return true
	}
	for _, want := range ts.audience {
		if slices.Contains(aud, want) {
			return true
		}
	}
	return false
}

// credentialShaped rejects input that cannot be a JWS compact token at all.
// A single byte change to an issued token still has between one and three
// separators, so it is parsed and reported as invalid rather than malformed.
func credentialShaped(token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	dots := strings.Count(token, ".")
	return dots >= 1 && dots <= 3
}
