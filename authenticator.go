package auth

import (
	"context"
)

// Auther runs the three authentication flows end to end. Each flow resolves
// exactly one Account and hands its id to the token codec.
type Auther struct {
	store        AccountStore
	tokens       TokenCodec
	exchanger    IdentityExchanger
	hasher       PasswordHasher
	provisioner  *Provisioner
	verifier     *CredentialVerifier
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator. exchanger may be nil when
// federated login is not enabled.
func NewAuthenticator(store AccountStore, tokens TokenCodec, exchanger IdentityExchanger) *Auther {
	hasher := NewBcryptHasher(passwordHashCost())
	return &Auther{
		store:        store,
		tokens:       tokens,
		exchanger:    exchanger,
		hasher:       hasher,
		provisioner:  NewProvisioner(store, hasher),
		verifier:     NewCredentialVerifier(store, hasher),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

// WithLogger sets the logger on the Auther and its collaborators
func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.provisioner.WithLogger(s.logger)
	s.verifier.WithLogger(s.logger)
	return s
}

// WithPasswordHasher replaces the hasher used for signup and login
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher == nil {
		return s
	}
	s.hasher = hasher
	s.provisioner = NewProvisioner(s.store, hasher).WithLogger(s.logger)
	s.verifier = NewCredentialVerifier(s.store, hasher).WithLogger(s.logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Provisioner exposes the account provisioner
func (s *Auther) Provisioner() *Provisioner {
	return s.provisioner
}

// Verifier exposes the credential verifier
func (s *Auther) Verifier() *CredentialVerifier {
	return s.verifier
}

// Signup creates a password account and returns a session for it
func (s *Auther) Signup(ctx context.Context, email, password string) (Session, error) {
	if s.tokens == nil {
		return Session{}, ErrConfiguration
	}

	account, err := s.provisioner.Signup(ctx, email, password)
	if err != nil {
		s.logger.Warn("Signup failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventSignupFailure, "", email, map[string]any{
			"error": err.Error(),
		})
		return Session{}, err
	}

	session, err := s.issue(account)
	if err != nil {
		return Session{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventSignup, account.ID, account.Email, nil)

	return session, nil
}

// Login verifies the email and password pair and returns a session
func (s *Auther) Login(ctx context.Context, email, password string) (Session, error) {
	if s.tokens == nil {
		return Session{}, ErrConfiguration
	}

	account, err := s.verifier.VerifyLogin(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", email, map[string]any{
			"error": err.Error(),
		})
		return Session{}, err
	}

	session, err := s.issue(account)
	if err != nil {
		return Session{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, account.ID, account.Email, nil)

	return session, nil
}

// OAuthLogin exchanges a provider token for a verified identity, resolves
// or creates the matching account and returns a session for it.
func (s *Auther) OAuthLogin(ctx context.Context, providerToken string) (Session, error) {
	if s.tokens == nil || s.exchanger == nil {
		return Session{}, WithCause(ErrConfiguration, nil, map[string]any{
			"reason": "federated login is not configured",
		})
	}

	identity, err := s.exchanger.Exchange(ctx, providerToken)
	if err != nil {
		s.logger.Warn("OAuthLogin exchange failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventFederatedFailed, "", "", map[string]any{
			"error": err.Error(),
		})
		return Session{}, err
	}

	account, err := s.provisioner.ResolveOrCreateFederated(ctx, identity)
	if err != nil {
		s.logger.Error("OAuthLogin resolve account failed", "error", err)
		s.emitAuthEvent(ctx, ActivityEventFederatedFailed, "", identity.Email, map[string]any{
			"provider": identity.Provider,
			"error":    err.Error(),
		})
		return Session{}, err
	}

	session, err := s.issue(account)
	if err != nil {
		return Session{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventFederatedLogin, account.ID, account.Email, map[string]any{
		"provider":        identity.Provider,
		"federation_only": account.FederationOnly,
	})

	return session, nil
}

// AccountFromToken verifies the bearer credential and loads its account
func (s *Auther) AccountFromToken(ctx context.Context, token string) (*Account, error) {
	if s.tokens == nil {
		return nil, ErrConfiguration
	}

	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("AccountFromToken account lookup failed", "account_id", id, "error", err)
		return nil, err
	}

	return account, nil
}

func (s *Auther) issue(account *Account) (Session, error) {
	token, expiresAt, err := s.tokens.IssueWithExpiry(account.ID)
	if err != nil {
		s.logger.Error("failed to issue credential", "account_id", account.ID, "error", err)
		return Session{}, err
	}

	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		AccountID: account.ID,
	}, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, accountID, email string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	recordActivity(ctx, normalizeActivitySink(s.activitySink), s.logger, ActivityEvent{
		EventType: eventType,
		AccountID: accountID,
		Email:     NormalizeEmail(email),
		Metadata:  metadata,
	})
}
