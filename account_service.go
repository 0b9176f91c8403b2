package auth

import (
	"context"
)

// AccountService serves the user management side: profile reads, updates,
// listing and removal. Authentication flows never call into it.
type AccountService struct {
	store        AccountStore
	directory    AccountDirectory
	logger       Logger
	activitySink ActivitySink
}

// NewAccountService will create a new AccountService
func NewAccountService(store AccountStore, directory AccountDirectory) *AccountService {
	return &AccountService{
		store:        store,
		directory:    directory,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

// WithLogger sets the logger
func (a *AccountService) WithLogger(l Logger) *AccountService {
	a.logger = normalizeLogger(l)
	return a
}

// WithActivitySink configures an ActivitySink for emitting account events.
func (a *AccountService) WithActivitySink(sink ActivitySink) *AccountService {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// Profile returns the account with the given id
func (a *AccountService) Profile(ctx context.Context, id string) (*Account, error) {
	return a.store.FindByID(ctx, id)
}

// UpdateProfile validates and applies the input. A new email that belongs
// to another account fails with ErrDuplicateAccount.
func (a *AccountService) UpdateProfile(ctx context.Context, id string, input ProfileInput) (*Account, error) {
	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}

	patch := input.ToPatch()
	if patch.IsEmpty() {
		return a.store.FindByID(ctx, id)
	}

	account, err := a.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		AccountID: account.ID,
		Email:     account.Email,
		Metadata:  map[string]any{},
	})

	return account, nil
}

// List returns every account
func (a *AccountService) List(ctx context.Context) ([]*Account, error) {
	if a.directory == nil {
		return nil, WithCause(ErrConfiguration, nil, map[string]any{"reason": "account directory not configured"})
	}
	return a.directory.List(ctx)
}

// Remove deletes the account and returns its last state
func (a *AccountService) Remove(ctx context.Context, id string) (*Account, error) {
	if a.directory == nil {
		return nil, WithCause(ErrConfiguration, nil, map[string]any{"reason": "account directory not configured"})
	}

	account, err := a.directory.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType: ActivityEventAccountRemoved,
		AccountID: account.ID,
		Email:     account.Email,
		Metadata:  map[string]any{},
	})

	return account, nil
}
