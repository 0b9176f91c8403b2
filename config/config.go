// Package config loads the server configuration from the environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	auth "github.com/goliatone/go-authcore"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config is the full server configuration
type Config struct {
	SigningKey string        `env:"AUTH_SIGNING_KEY"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	Issuer     string        `env:"AUTH_ISSUER" envDefault:"go-authcore"`
	Audience   []string      `env:"AUTH_AUDIENCE" envSeparator:","`
	BcryptCost int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Store  Store  `envPrefix:"STORE_"`
	Google Google `envPrefix:"GOOGLE_"`
}

// Store selects the account backend
type Store struct {
	Backend       string `env:"BACKEND" envDefault:"sql"`
	Driver        string `env:"DRIVER" envDefault:"sqlite"`
	DSN           string `env:"DSN" envDefault:"file:authcore.db?cache=shared"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"authcore"`
}

// Google configures the federation exchange
type Google struct {
	ClientIDs    []string      `env:"CLIENT_IDS" envSeparator:","`
	Mode         string        `env:"MODE" envDefault:"tokeninfo"`
	TokenInfoURL string        `env:"TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	Issuer       string        `env:"ISSUER" envDefault:"https://accounts.google.com"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`

	// redirect login, enabled when ClientSecret and RedirectURL are set
	ClientSecret string        `env:"CLIENT_SECRET"`
	RedirectURL  string        `env:"REDIRECT_URL"`
	StateTTL     time.Duration `env:"STATE_TTL" envDefault:"10m"`
}

// RedirectEnabled reports whether the browser redirect login is configured
func (g Google) RedirectEnabled() bool {
	return g.ClientSecret != "" || g.RedirectURL != ""
}

const (
	GoogleModeTokenInfo = "tokeninfo"
	GoogleModeOIDC      = "oidc"
)

var _ auth.Config = Config{}

// Load reads the given .env files, missing files are ignored, and then
// parses the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read env file "+f).
				WithTextCode(auth.TextCodeConfigurationError)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, configError(err)
	}

	return cfg, cfg.Validate()
}

// Parse builds a Config from an explicit environment map
func Parse(environment map[string]string) (Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, configError(err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that make startup impossible
func (c Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.SigningKey) == "" {
		problems = append(problems, "AUTH_SIGNING_KEY is required")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "AUTH_TOKEN_TTL must be positive")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "sql", "redis":
	default:
		problems = append(problems, "STORE_BACKEND must be sql or redis")
	}

	switch strings.ToLower(c.Google.Mode) {
	case GoogleModeTokenInfo, GoogleModeOIDC:
	default:
		problems = append(problems, "GOOGLE_MODE must be tokeninfo or oidc")
	}

	if c.Google.RedirectEnabled() {
		if len(c.Google.ClientIDs) == 0 {
			problems = append(problems, "GOOGLE_CLIENT_IDS is required for the redirect login")
		}
		if c.Google.ClientSecret == "" || c.Google.RedirectURL == "" {
			problems = append(problems, "GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set together")
		}
		if c.Google.StateTTL <= 0 {
			problems = append(problems, "GOOGLE_STATE_TTL must be positive")
		}
	}

	if len(problems) == 0 {
		return nil
	}

	return auth.WithCause(auth.ErrConfiguration, nil, map[string]any{
		"problems": problems,
	})
}

// GetSigningKey implements auth.Config
func (c Config) GetSigningKey() string { return c.SigningKey }

// GetTokenTTL implements auth.Config
func (c Config) GetTokenTTL() time.Duration { return c.TokenTTL }

// GetIssuer implements auth.Config
func (c Config) GetIssuer() string { return c.Issuer }

// GetAudience implements auth.Config
func (c Config) GetAudience() []string { return c.Audience }

// Redacted returns a printable view without secrets
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"auth": map[string]any{
			"signing_key": mask(c.SigningKey),
			"token_ttl":   c.TokenTTL.String(),
			"issuer":      c.Issuer,
			"audience":    c.Audience,
			"bcrypt_cost": c.BcryptCost,
		},
		"http_addr": c.HTTPAddr,
		"log_level": c.LogLevel,
		"store": map[string]any{
			"backend":        c.Store.Backend,
			"driver":         c.Store.Driver,
			"dsn":            mask(c.Store.DSN),
			"redis_addr":     c.Store.RedisAddr,
			"redis_password": mask(c.Store.RedisPassword),
			"redis_db":       c.Store.RedisDB,
			"redis_prefix":   c.Store.RedisPrefix,
		},
		"google": map[string]any{
			"client_ids":    c.Google.ClientIDs,
			"mode":          c.Google.Mode,
			"tokeninfo_url": c.Google.TokenInfoURL,
			"issuer":        c.Google.Issuer,
			"timeout":       c.Google.Timeout.String(),
			"client_secret": mask(c.Google.ClientSecret),
			"redirect_url":  c.Google.RedirectURL,
			"state_ttl":     c.Google.StateTTL.String(),
		},
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func configError(err error) error {
	return auth.WithCause(auth.ErrConfiguration, err, map[string]any{
		"error": err.Error(),
	})
}
