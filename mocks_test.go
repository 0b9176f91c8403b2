package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-authcore"
	"github.com/goliatone/go-authcore/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testConfig implements auth.Config
type testConfig struct {
	key      string
	ttl      time.Duration
	issuer   string
	audience []string
}

func (c testConfig) GetSigningKey() string      { return c.key }
func (c testConfig) GetTokenTTL() time.Duration { return c.ttl }
func (c testConfig) GetIssuer() string          { return c.issuer }
func (c testConfig) GetAudience() []string      { return c.audience }

func defaultTestConfig() testConfig {
	return testConfig{
		key:      "test-signing-key",
		ttl:      time.Hour,
		issuer:   "authcore-test",
		audience: []string{"authcore-clients"},
	}
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

func quietLogger() *MockLogger {
	l := &MockLogger{}
	l.On("Debug", mock.Anything, mock.Anything).Maybe()
	l.On("Info", mock.Anything, mock.Anything).Maybe()
	l.On("Warn", mock.Anything, mock.Anything).Maybe()
	l.On("Error", mock.Anything, mock.Anything).Maybe()
	return l
}

// MockExchanger implements auth.IdentityExchanger
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Exchange(ctx context.Context, providerToken string) (auth.FederatedIdentity, error) {
	args := m.Called(ctx, providerToken)
	return args.Get(0).(auth.FederatedIdentity), args.Error(1)
}

// activityRecorder collects events in memory
type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

func fastHasher() *auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

func newAccountStore(t *testing.T) *repository.BunAccounts {
	t.Helper()

	db, err := repository.OpenDB(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db))

	return repository.NewBunAccounts(db)
}

func newTokenService(t *testing.T, opts ...auth.TokenOption) *auth.TokenService {
	t.Helper()

	ts, err := auth.NewTokenService(defaultTestConfig(), quietLogger(), opts...)
	require.NoError(t, err)
	return ts
}
