package auth

import (
	"context"
)

// CredentialVerifier checks password login attempts against stored secrets
type CredentialVerifier struct {
	store  AccountStore
	hasher PasswordHasher
	logger Logger
}

// NewCredentialVerifier will create a new CredentialVerifier
func NewCredentialVerifier(store AccountStore, hasher PasswordHasher) *CredentialVerifier {
	if hasher == nil {
		hasher = NewBcryptHasher(passwordHashCost())
	}
	return &CredentialVerifier{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (v *CredentialVerifier) WithLogger(l Logger) *CredentialVerifier {
	v.logger = normalizeLogger(l)
	return v
}

// VerifyLogin finds the account for email and compares the presented password
// with its credential secret. The account is returned unchanged on success.
func (v *CredentialVerifier) VerifyLogin(ctx context.Context, email, password string) (*Account, error) {
	input := CredentialsInput{Email: NormalizeEmail(email), Password: password}
	if err := input.ValidateLogin(); err != nil {
		return nil, validationError(err)
	}

	account, err := v.store.FindByEmail(ctx, input.Email)
	if err != nil {
		if !IsErrorKind(err, ErrAccountNotFound) {
			v.logger.Error("VerifyLogin store lookup failed", "error", err)
		}
		return nil, err
	}

	// federation only accounts have nothing to compare against
	if !account.HasPassword() {
		return nil, ErrInvalidPassword
	}

	if err := v.hasher.ComparePasswordAndHash(input.Password, account.CredentialSecret); err != nil {
		if !IsErrorKind(err, ErrInvalidPassword) {
			v.logger.Error("VerifyLogin compare failed", "error", err)
			return nil, WithCause(ErrInvalidPassword, err, nil)
		}
		return nil, err
	}

	return account, nil
}
