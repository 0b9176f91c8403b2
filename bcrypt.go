package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const unusableSecretPrefix = "!federated:"

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. Out of range
// values fall back to the build default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &BcryptHasher{cost: cost}
}

// HashPassword will generate a salted password hash
func (b *BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", WithCause(ErrInvalidInput, err, map[string]any{
			"field": "password",
		})
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (b *BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if IsUnusableSecret(hash) {
		return ErrInvalidPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return WithCause(ErrInvalidPassword, err, nil)
	}
	return nil
}

// HashPassword hashes with the default build cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(passwordHashCost()).HashPassword(password)
}

// ComparePasswordAndHash compares using bcrypt
func ComparePasswordAndHash(password, hash string) error {
	return NewBcryptHasher(passwordHashCost()).ComparePasswordAndHash(password, hash)
}

// UnusableSecret returns a fresh per account value that no password can
// satisfy. bcrypt hashes always start with "$2" so the prefix never parses.
func UnusableSecret() string {
	return unusableSecretPrefix + uuid.NewString()
}

// IsUnusableSecret reports whether secret was produced by UnusableSecret
// or is empty.
func IsUnusableSecret(secret string) bool {
	return secret == "" || strings.HasPrefix(secret, unusableSecretPrefix)
}
