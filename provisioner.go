package auth

import (
	"context"
)

// Provisioner creates accounts for signup and resolves or creates accounts
// for federated logins. It never checks uniqueness on its own authority: the
// store's violation decides whether an email is taken.
type Provisioner struct {
	store  AccountStore
	hasher PasswordHasher
	logger Logger
}

// NewProvisioner will create a new Provisioner
func NewProvisioner(store AccountStore, hasher PasswordHasher) *Provisioner {
	if hasher == nil {
		hasher = NewBcryptHasher(passwordHashCost())
	}
	return &Provisioner{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (p *Provisioner) WithLogger(l Logger) *Provisioner {
	p.logger = normalizeLogger(l)
	return p
}

// Signup validates the input, hashes the password and creates the account.
// Concurrent signups for the same email yield one account, the others get
// ErrDuplicateAccount from the store.
func (p *Provisioner) Signup(ctx context.Context, email, password string) (*Account, error) {
	input := CredentialsInput{Email: NormalizeEmail(email), Password: password}
	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	// fast path to skip hashing for an obvious duplicate
	if _, err := p.store.FindByEmail(ctx, input.Email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !IsErrorKind(err, ErrAccountNotFound) {
		return nil, err
	}

	secret, err := p.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	account, err := p.store.Create(ctx, &Account{
		Email:            input.Email,
		CredentialSecret: secret,
	})
	if err != nil {
		if !IsErrorKind(err, ErrDuplicateAccount) {
			p.logger.Error("Signup create account failed", "error", err)
		}
		return nil, err
	}

	return account, nil
}

// ResolveOrCreateFederated returns the account for the identity email,
// creating a federation only account when none exists. Existing accounts
// are returned unmodified.
func (p *Provisioner) ResolveOrCreateFederated(ctx context.Context, identity FederatedIdentity) (*Account, error) {
	email := NormalizeEmail(identity.Email)
	if email == "" {
		return nil, WithCause(ErrInvalidProviderToken, nil, map[string]any{"reason": "missing email"})
	}

	account, err := p.store.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !IsErrorKind(err, ErrAccountNotFound) {
		return nil, err
	}

	account, err = p.store.Create(ctx, &Account{
		Email:            email,
		CredentialSecret: UnusableSecret(),
		FederationOnly:   true,
	})
	if err == nil {
		return account, nil
	}

	if !IsErrorKind(err, ErrDuplicateAccount) {
		p.logger.Error("ResolveOrCreateFederated create account failed", "error", err)
		return nil, err
	}

	// lost a race against another creator, converge on the winner
	p.logger.Debug("ResolveOrCreateFederated lost create race, reading winner", "email", email)
	return p.store.FindByEmail(ctx, email)
}
