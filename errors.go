package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateAccount     = "DUPLICATE_ACCOUNT"
	TextCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidPassword      = "INVALID_PASSWORD"
	TextCodeInvalidCredential    = "INVALID_CREDENTIAL"
	TextCodeExpiredCredential    = "EXPIRED_CREDENTIAL"
	TextCodeMalformedCredential  = "MALFORMED_CREDENTIAL"
	TextCodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	TextCodeInvalidProviderToken = "INVALID_PROVIDER_TOKEN"
	TextCodeConfigurationError   = "CONFIGURATION_ERROR"
	TextCodeInvalidInput         = "INVALID_INPUT"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
)

// ErrDuplicateAccount is returned when an account with the email already exists
var ErrDuplicateAccount = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when no account matches the lookup
var ErrAccountNotFound = goerrors.New("no account found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidPassword is returned when the presented password does not match
var ErrInvalidPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredential is returned for bearer credentials that fail verification
var ErrInvalidCredential = goerrors.New("invalid bearer credential", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrExpiredCredential is returned for bearer credentials past their expiry
var ErrExpiredCredential = goerrors.New("bearer credential expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeExpiredCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrMalformedCredential is returned when the input is not a bearer credential at all
var ErrMalformedCredential = goerrors.New("malformed bearer credential", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedCredential).
	WithCode(goerrors.CodeBadRequest)

// ErrUpstreamUnavailable is returned when the identity provider cannot be reached
var ErrUpstreamUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeUpstreamUnavailable).
	WithCode(http.StatusBadGateway)

// ErrInvalidProviderToken is returned when the identity provider rejects the token
var ErrInvalidProviderToken = goerrors.New("identity provider rejected the token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidProviderToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrConfiguration is returned when the core is missing required configuration
var ErrConfiguration = goerrors.New("authentication is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeConfigurationError).
	WithCode(goerrors.CodeInternal)

// ErrInvalidInput is returned when signup or login input fails validation
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsErrorKind reports whether err belongs to the same taxonomy entry as kind.
// Matching is done on the text code so clones carrying metadata still match.
func IsErrorKind(err error, kind *goerrors.Error) bool {
	if err == nil || kind == nil {
		return false
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}

	return richErr.TextCode == kind.TextCode
}

// WithCause returns a copy of base that keeps its taxonomy entry and records
// the underlying cause and metadata.
func WithCause(base *goerrors.Error, cause error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}

	if cause != nil {
		clone.Source = cause
	}

	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}

	return clone
}
