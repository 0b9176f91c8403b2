package google

import (
	"context"
	"slices"
	"strings"
	"time"

	auth "github.com/goliatone/go-authcore"
)

const defaultTimeout = 5 * time.Second

var defaultIssuers = []string{"accounts.google.com", DefaultIssuer}

// Exchanger is the one place that decides whether a Google identity can be
// trusted for account resolution. Only a present, verified email issued for
// one of our client ids makes it through.
type Exchanger struct {
	introspector Introspector
	clientIDs    []string
	issuers      []string
	timeout      time.Duration
	now          func() time.Time
	logger       auth.Logger
}

var _ auth.IdentityExchanger = (*Exchanger)(nil)

// ExchangerOption customizes the Exchanger
type ExchangerOption func(*Exchanger)

// WithClientIDs limits accepted tokens to these audiences
func WithClientIDs(ids ...string) ExchangerOption {
	return func(e *Exchanger) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				e.clientIDs = append(e.clientIDs, id)
			}
		}
	}
}

// WithTimeout bounds each provider call
func WithTimeout(d time.Duration) ExchangerOption {
	return func(e *Exchanger) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithIssuers replaces the accepted issuers
func WithIssuers(issuers ...string) ExchangerOption {
	return func(e *Exchanger) {
		if len(issuers) > 0 {
			e.issuers = issuers
		}
	}
}

// WithNow overrides the clock used for expiry checks
func WithNow(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l auth.Logger) ExchangerOption {
	return func(e *Exchanger) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExchanger creates an Exchanger on top of an Introspector
func NewExchanger(introspector Introspector, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		introspector: introspector,
		issuers:      defaultIssuers,
		timeout:      defaultTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Exchange implements auth.IdentityExchanger.
func (e *Exchanger) Exchange(ctx context.Context, providerToken string) (auth.FederatedIdentity, error) {
	providerToken = strings.TrimSpace(providerToken)
	if providerToken == "" {
		return auth.FederatedIdentity{}, invalidProviderToken(providerError("exchange", 0, "missing_token", "provider token is empty", nil))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	claims, err := e.introspector.Introspect(ctx, providerToken)
	if err != nil {
		if !auth.IsErrorKind(err, auth.ErrUpstreamUnavailable) && !auth.IsErrorKind(err, auth.ErrInvalidProviderToken) {
			// unknown failures from custom introspectors count as unreachable
			err = upstreamUnavailable(err)
		}
		e.log("google exchange introspection failed", "error", err)
		return auth.FederatedIdentity{}, err
	}

	if err := e.trust(claims); err != nil {
		e.log("google exchange rejected identity", "error", err)
		return auth.FederatedIdentity{}, err
	}

	return auth.FederatedIdentity{
		Provider:      ProviderName,
		Subject:       claims.Subject,
		Email:         auth.NormalizeEmail(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (e *Exchanger) trust(c Claims) error {
	reject := func(code, desc string) error {
		return invalidProviderToken(providerError("exchange", 0, code, desc, nil))
	}

	if len(e.issuers) > 0 && !slices.Contains(e.issuers, c.Issuer) {
		return reject("issuer_mismatch", "token issuer is not trusted")
	}

	if len(e.clientIDs) > 0 && !audienceAllowed(c.Audience, e.clientIDs) {
		return reject("audience_mismatch", "token was not issued for this client")
	}

	if !c.ExpiresAt.IsZero() && !e.now().Before(c.ExpiresAt) {
		return reject("token_expired", "token expired")
	}

	if auth.NormalizeEmail(c.Email) == "" {
		return reject("missing_email", "token has no email claim")
	}

	if !c.EmailVerified {
		return reject("email_not_verified", "email not verified")
	}

	return nil
}

func audienceAllowed(aud, allowed []string) bool {
	for _, a := range aud {
		if slices.Contains(allowed, a) {
			return true
		}
	}
	return false
}

func (e *Exchanger) log(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
