// Package httpapi exposes the authentication flows and the account
// endpoints over fiber.
package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
)

// Authenticator runs the signup, login and federated login flows
type Authenticator interface {
	Signup(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	OAuthLogin(ctx context.Context, providerToken string) (auth.Session, error)
}

// Accounts manages the authenticated caller's account
type Accounts interface {
	Profile(ctx context.Context, id string) (*auth.Account, error)
	UpdateProfile(ctx context.Context, id string, input auth.ProfileInput) (*auth.Account, error)
	List(ctx context.Context) ([]*auth.Account, error)
	Remove(ctx context.Context, id string) (*auth.Account, error)
}

// Response is the success envelope
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// TokenResponse carries a freshly issued bearer credential
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

// Handlers binds the HTTP surface to the core services
type Handlers struct {
	auther   Authenticator
	accounts Accounts
	tokens   TokenVerifier
	redirect RedirectFlow
	states   LoginStates
	logger   auth.Logger
}

// NewHandlers creates the route handlers
func NewHandlers(auther Authenticator, accounts Accounts, tokens TokenVerifier) *Handlers {
	return &Handlers{
		auther:   auther,
		accounts: accounts,
		tokens:   tokens,
		logger:   nopLogger{},
	}
}

// WithLogger sets the logger
func (h *Handlers) WithLogger(logger auth.Logger) *Handlers {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Register mounts the /auth and /user groups
func (h *Handlers) Register(router fiber.Router) {
	authGroup := router.Group("/auth")
	authGroup.Post("/signup", h.Signup)
	authGroup.Post("/login", h.Login)
	authGroup.Post("/google/login", h.GoogleLogin)
	if h.redirect != nil && h.states != nil {
		authGroup.Get("/google", h.GoogleRedirect)
		authGroup.Get("/google/callback", h.GoogleCallback)
	}

	user := router.Group("/user", RequireBearer(h.tokens))
	user.Get("/all", h.ListAccounts)
	user.Get("/", h.Profile)
	user.Patch("/", h.UpdateProfile)
	user.Delete("/", h.RemoveAccount)
}

// Signup creates a password account and returns a credential
func (h *Handlers) Signup(c *fiber.Ctx) error {
	payload := auth.CredentialsInput{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(err)
	}

	session, err := h.auther.Signup(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(Response{
		Message: "Signup Success",
		Data:    tokenResponse(session),
	})
}

// Login exchanges an email and password for a credential
func (h *Handlers) Login(c *fiber.Ctx) error {
	payload := auth.CredentialsInput{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(err)
	}

	session, err := h.auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(Response{
		Message: "Login Success",
		Data:    tokenResponse(session),
	})
}

// GoogleLogin exchanges a Google ID token for a credential
func (h *Handlers) GoogleLogin(c *fiber.Ctx) error {
	payload := googleLoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(err)
	}

	session, err := h.auther.OAuthLogin(c.UserContext(), payload.Token)
	if err != nil {
		return err
	}

	return c.JSON(Response{
		Message: "Success",
		Data:    tokenResponse(session),
	})
}

// Profile returns the caller's account
func (h *Handlers) Profile(c *fiber.Ctx) error {
	account, err := h.accounts.Profile(c.UserContext(), AccountID(c))
	if err != nil {
		return err
	}
	return c.JSON(Response{Message: "Success", Data: account})
}

// UpdateProfile patches the caller's account
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	payload := auth.ProfileInput{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(err)
	}

	account, err := h.accounts.UpdateProfile(c.UserContext(), AccountID(c), payload)
	if err != nil {
		return err
	}
	return c.JSON(Response{Message: "Success", Data: account})
}

// RemoveAccount deletes the caller's account
func (h *Handlers) RemoveAccount(c *fiber.Ctx) error {
	account, err := h.accounts.Remove(c.UserContext(), AccountID(c))
	if err != nil {
		return err
	}

	h.logger.Info("account removed", "account_id", account.ID)
	return c.JSON(Response{Message: "Success", Data: account})
}

// ListAccounts returns every account
func (h *Handlers) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.accounts.List(c.UserContext())
	if err != nil {
		return err
	}
	if accounts == nil {
		accounts = []*auth.Account{}
	}
	return c.JSON(Response{Message: "Success", Data: accounts})
}

func tokenResponse(session auth.Session) TokenResponse {
	out := TokenResponse{Token: session.Token}
	if !session.ExpiresAt.IsZero() {
		out.ExpiresAt = session.ExpiresAt.Unix()
	}
	return out
}
