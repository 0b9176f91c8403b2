package auth_test

import (
	"context"
	"encoding/json"
	"testing"

	auth "github.com/goliatone/go-authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAccountServiceProfileAndUpdate(t *testing.T) {
	store := newAccountStore(t)
	ctx := context.Background()
	activity := &activityRecorder{}

	p := auth.NewProvisioner(store, fastHasher()).WithLogger(quietLogger())
	svc := auth.NewAccountService(store, store).WithLogger(quietLogger()).WithActivitySink(activity)

	a, err := p.Signup(ctx, "a@x.com", "password-1")
	require.NoError(t, err)
	_, err = p.Signup(ctx, "b@x.com", "password-1")
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", profile.Email)

	updated, err := svc.UpdateProfile(ctx, a.ID, auth.ProfileInput{Email: strPtr(" C@X.com ")})
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", updated.Email)
	assert.Equal(t, a.CredentialSecret, updated.CredentialSecret)

	_, err = svc.UpdateProfile(ctx, a.ID, auth.ProfileInput{Email: strPtr("b@x.com")})
	assert.True(t, auth.IsErrorKind(err, auth.ErrDuplicateAccount))

	_, err = svc.UpdateProfile(ctx, a.ID, auth.ProfileInput{Email: strPtr("nope")})
	assert.True(t, auth.IsErrorKind(err, auth.ErrInvalidInput))

	unchanged, err := svc.UpdateProfile(ctx, a.ID, auth.ProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "c@x.com", unchanged.Email)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventProfileUpdated}, activity.types())
}

func TestAccountServiceListAndRemove(t *testing.T) {
	store := newAccountStore(t)
	ctx := context.Background()

	p := auth.NewProvisioner(store, fastHasher()).WithLogger(quietLogger())
	svc := auth.NewAccountService(store, store).WithLogger(quietLogger())

	a, err := p.Signup(ctx, "a@x.com", "password-1")
	require.NoError(t, err)
	_, err = p.ResolveOrCreateFederated(ctx, auth.FederatedIdentity{Email: "fed@x.com"})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	removed, err := svc.Remove(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)

	_, err = svc.Profile(ctx, a.ID)
	assert.True(t, auth.IsErrorKind(err, auth.ErrAccountNotFound))

	_, err = svc.Remove(ctx, a.ID)
	assert.True(t, auth.IsErrorKind(err, auth.ErrAccountNotFound))
}

func TestAccountServiceWithoutDirectory(t *testing.T) {
	svc := auth.NewAccountService(newAccountStore(t), nil)

	_, err := svc.List(context.Background())
	assert.True(t, auth.IsErrorKind(err, auth.ErrConfiguration))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", auth.NormalizeEmail("  A@X.Com\t"))
	assert.Equal(t, "", auth.NormalizeEmail("   "))
}

func TestAccountJSONHidesSecret(t *testing.T) {
	account := auth.Account{ID: "1", Email: "a@x.com", CredentialSecret: "$2a$secret"}
	assert.False(t, account.FederationOnly)
	assert.True(t, account.HasPassword())

	raw, err := json.Marshal(account)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}
