package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	auth "github.com/goliatone/go-authcore"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// Accounts is what a backend has to offer
type Accounts interface {
	auth.AccountStore
	auth.AccountDirectory
}

// Options selects and configures the account backend
type Options struct {
	Backend       string
	Driver        string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Manager owns the selected backend and the connections behind it
type Manager struct {
	accounts Accounts
	closers  []func() error
}

// NewManager wraps an already built backend
func NewManager(accounts Accounts, closers ...func() error) *Manager {
	return &Manager{accounts: accounts, closers: closers}
}

// Open builds the backend described by opts. For the SQL backend the
// schema is migrated before returning.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQL:
		db, err := OpenDB(opts.Driver, opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, storeError("ping", err)
		}
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return NewManager(NewBunAccounts(db), db.Close), nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, storeError("ping", err)
		}
		return NewManager(NewRedisAccounts(client, opts.RedisPrefix), client.Close), nil
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported account backend %q", opts.Backend), goerrors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_BACKEND")
	}
}

func (m *Manager) Validate() error {
	if m == nil || m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}
	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Accounts returns the store used by the authentication flows
func (m *Manager) Accounts() auth.AccountStore {
	return m.accounts
}

// Directory returns the listing and removal side of the backend
func (m *Manager) Directory() auth.AccountDirectory {
	return m.accounts
}

// Close releases every connection held by the manager
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
