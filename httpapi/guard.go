package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
)

const (
	// AccountIDKey is the fiber locals key holding the authenticated account id
	AccountIDKey = "account_id"

	bearerScheme = "Bearer"
)

// TokenVerifier resolves a bearer credential to its subject
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireBearer rejects requests without a valid bearer credential in the
// Authorization header and stores the subject under AccountIDKey.
func RequireBearer(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			return err
		}

		c.Locals(AccountIDKey, subject)
		return c.Next()
	}
}

// AccountID returns the id stored by RequireBearer
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(AccountIDKey).(string)
	return id
}

func bearerFromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.WithCause(auth.ErrInvalidCredential, nil, map[string]any{
			"reason": "missing authorization header",
		})
	}

	l := len(bearerScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], bearerScheme) && header[l] == ' ' {
		if token := strings.TrimSpace(header[l:]); token != "" {
			return token, nil
		}
	}

	return "", auth.WithCause(auth.ErrMalformedCredential, nil, map[string]any{
		"reason": "authorization header must use the Bearer scheme",
	})
}
