package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccountClaims carries the account id as subject plus the registered
// time bounds. Nothing else is placed in the token.
type AccountClaims struct {
	jwt.RegisteredClaims
}

// Subject returns the subject claim
func (c *AccountClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID is an alias of Subject
func (c *AccountClaims) AccountID() string {
	return c.Subject()
}

// Expires returns the expiration time
func (c *AccountClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *AccountClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
