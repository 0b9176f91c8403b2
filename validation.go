package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 8
	// bcrypt ignores anything past 72 bytes
	maxPasswordLength = 72
)

// CredentialsInput is the email/password pair used by signup and login
type CredentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the payload for signup
func (r CredentialsInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

// ValidateLogin only checks presence. Password rules may change over time
// and older accounts must still be able to log in.
func (r CredentialsInput) ValidateLogin() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ProfileInput is the payload accepted by profile updates
type ProfileInput struct {
	Email *string `json:"email"`
}

// Validate checks the normalized payload, so padded or mixed case emails are
// judged the same way signup judges them.
func (r ProfileInput) Validate() error {
	n := r.normalized()
	return validation.ValidateStruct(&n,
		validation.Field(&n.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
	)
}

// ToPatch normalizes the input into an AccountPatch
func (r ProfileInput) ToPatch() AccountPatch {
	return AccountPatch{Email: r.normalized().Email}
}

func (r ProfileInput) normalized() ProfileInput {
	if r.Email == nil {
		return r
	}
	email := NormalizeEmail(*r.Email)
	return ProfileInput{Email: &email}
}

// validationError wraps ozzo errors into ErrInvalidInput and keeps the
// per field messages in the metadata.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	}

	return WithCause(ErrInvalidInput, err, map[string]any{
		"fields": fields,
	})
}
