package auth

import (
	"strings"
	"time"
)

// Account is the single persistent entity managed by the core
type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	CredentialSecret string    `json:"-"`
	FederationOnly   bool      `json:"federation_only"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can be reached by password login
func (a *Account) HasPassword() bool {
	return a != nil && !a.FederationOnly && !IsUnusableSecret(a.CredentialSecret)
}

// AccountPatch lists the mutable profile fields. Nil fields are left unchanged.
type AccountPatch struct {
	Email *string `json:"email,omitempty"`
}

// IsEmpty is true when the patch would not change anything
func (p AccountPatch) IsEmpty() bool {
	return p.Email == nil
}

// FederatedIdentity holds the claims returned by an identity provider for
// one exchange. Only Email is used to resolve an Account.
type FederatedIdentity struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// Session is what the flows hand back to a caller after authentication
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AccountID string    `json:"account_id"`
}

// NormalizeEmail is the only place emails are canonicalized. Stores compare
// the result byte for byte.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
