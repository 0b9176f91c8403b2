package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package. It matches the
// method set of *slog.Logger so a structured logger can be passed directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the token signing options
type Config interface {
	GetSigningKey() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// AccountStore is the only component that touches persistence. Implementations
// must enforce email uniqueness themselves and report violations as
// ErrDuplicateAccount from Create and Update.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	// Create persists a new account. The store assigns the ID.
	Create(ctx context.Context, account *Account) (*Account, error)
	Update(ctx context.Context, id string, patch AccountPatch) (*Account, error)
}

// AccountDirectory exposes listing and removal for user management. It is
// kept apart from AccountStore since the authentication flows never delete.
type AccountDirectory interface {
	List(ctx context.Context) ([]*Account, error)
	Delete(ctx context.Context, id string) (*Account, error)
}

// PasswordHasher derives and checks credential secrets
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// IdentityExchanger trades a third party token for verified claims
type IdentityExchanger interface {
	Exchange(ctx context.Context, providerToken string) (FederatedIdentity, error)
}

// TokenCodec mints and checks bearer credentials
type TokenCodec interface {
	IssueWithExpiry(subjectID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	for i := 0; i+1 < len(args); i += 2 {
		msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		msg += fmt.Sprintf(" %v", args[len(args)-1])
	}
	return newline(msg)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
