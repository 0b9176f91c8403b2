package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
	"github.com/goliatone/go-authcore/federation/google"
)

const googleStateCookie = "authcore_google_login"

// RedirectFlow builds the consent URL and trades the callback code for an
// ID token
type RedirectFlow interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (string, error)
}

// LoginStates issues and checks the state of a redirect login
type LoginStates interface {
	New() (google.LoginState, string, error)
	Verify(cookie, state string) (google.LoginState, error)
}

// WithGoogleRedirect enables GET /auth/google and its callback. The ID token
// obtained on callback goes through the same OAuthLogin as POST
// /auth/google/login.
func (h *Handlers) WithGoogleRedirect(flow RedirectFlow, states LoginStates) *Handlers {
	h.redirect = flow
	h.states = states
	return h
}

// GoogleRedirect starts the browser login by redirecting to Google
func (h *Handlers) GoogleRedirect(c *fiber.Ctx) error {
	state, cookie, err := h.states.New()
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     googleStateCookie,
		Value:    cookie,
		Path:     "/auth/google",
		Expires:  state.ExpiresAt,
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect(h.redirect.AuthCodeURL(state.Nonce, state.Verifier), fiber.StatusFound)
}

// GoogleCallback finishes the browser login and returns a credential
func (h *Handlers) GoogleCallback(c *fiber.Ctx) error {
	cookie := c.Cookies(googleStateCookie)
	c.Cookie(&fiber.Cookie{
		Name:     googleStateCookie,
		Path:     "/auth/google",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if reason := c.Query("error"); reason != "" {
		return auth.WithCause(auth.ErrInvalidProviderToken, nil, map[string]any{
			"provider": google.ProviderName,
			"code":     reason,
		})
	}

	state, err := h.states.Verify(cookie, c.Query("state"))
	if err != nil {
		return err
	}

	idToken, err := h.redirect.Exchange(c.UserContext(), c.Query("code"), state.Verifier)
	if err != nil {
		h.logger.Warn("google code exchange failed", "error", err)
		return err
	}

	session, err := h.auther.OAuthLogin(c.UserContext(), idToken)
	if err != nil {
		return err
	}

	return c.JSON(Response{
		Message: "Success",
		Data:    tokenResponse(session),
	})
}
