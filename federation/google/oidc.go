package google

import (
	"context"
	"crypto"
	"errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DefaultIssuer is Google's OpenID Connect issuer
const DefaultIssuer = "https://accounts.google.com"

// OIDC verifies ID tokens locally against the provider's published keys.
// Audience checks happen in the Exchanger so both introspectors share them.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the issuer configuration and builds a verifier.
// Discovery happens once, key fetches later reuse client.
func NewOIDC(ctx context.Context, issuer string, client *http.Client) (*OIDC, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, upstreamUnavailable(providerError("discovery", 0, "", "", err))
	}

	return &OIDC{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

// NewOIDCWithKeys builds a verifier from a fixed key set, no discovery.
func NewOIDCWithKeys(issuer string, keys []crypto.PublicKey, algs ...string) *OIDC {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	cfg := &oidc.Config{
		SkipClientIDCheck:    true,
		SupportedSigningAlgs: algs,
	}
	return &OIDC{
		verifier: oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: keys}, cfg),
	}
}

type idTokenClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// Introspect implements Introspector.
func (o *OIDC) Introspect(ctx context.Context, token string) (Claims, error) {
	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if !errors.As(err, &expired) && isTransportError(err) {
			return Claims{}, upstreamUnavailable(providerError("verify", 0, "transport", "", err))
		}
		return Claims{}, invalidProviderToken(providerError("verify", 0, "invalid_token", err.Error(), err))
	}

	var extra idTokenClaims
	if err := idToken.Claims(&extra); err != nil {
		return Claims{}, invalidProviderToken(providerError("verify", 0, "invalid_claims", "failed to decode id token claims", err))
	}

	return Claims{
		Issuer:        idToken.Issuer,
		Subject:       idToken.Subject,
		Audience:      idToken.Audience,
		Email:         extra.Email,
		EmailVerified: bool(extra.EmailVerified),
		Name:          extra.Name,
		Picture:       extra.Picture,
		ExpiresAt:     idToken.Expiry,
	}, nil
}
