package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
	"github.com/goliatone/go-authcore/activitymap"
	"github.com/goliatone/go-authcore/config"
	"github.com/goliatone/go-authcore/federation/google"
	"github.com/goliatone/go-authcore/httpapi"
	"github.com/goliatone/go-authcore/repository"
	"github.com/goliatone/go-print"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config config.Config
	logger *slog.Logger
	repo   *repository.Manager
	tokens *auth.TokenService
	auther *auth.Auther
	srv    *fiber.App
}

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so main can exit with a status code
// without skipping them.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	fmt.Println("============")
	fmt.Println(print.MaybePrettyJSON(cfg.Redacted()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: newLogger(cfg.LogLevel),
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		app.close()
		return 1
	}
	defer app.close()

	if err := WithAuth(ctx, app); err != nil {
		app.logger.Error("auth setup failed", "error", err)
		return 1
	}

	if err := WithHTTPServer(app); err != nil {
		app.logger.Error("http setup failed", "error", err)
		return 1
	}

	go func() {
		app.logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := app.srv.Listen(cfg.HTTPAddr); err != nil {
			app.logger.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Error("shutdown failed", "error", err)
		return 1
	}
	return 0
}

func (app *App) close() {
	if app.repo == nil {
		return
	}
	if err := app.repo.Close(); err != nil {
		app.logger.Error("closing store failed", "error", err)
	}
	app.repo = nil
}

func WithPersistence(ctx context.Context, app *App) error {
	store := app.config.Store
	repo, err := repository.Open(ctx, repository.Options{
		Backend:       store.Backend,
		Driver:        store.Driver,
		DSN:           store.DSN,
		RedisAddr:     store.RedisAddr,
		RedisPassword: store.RedisPassword,
		RedisDB:       store.RedisDB,
		RedisPrefix:   store.RedisPrefix,
	})
	if err != nil {
		return err
	}

	app.repo = repo
	return repo.Validate()
}

func WithAuth(ctx context.Context, app *App) error {
	tokens, err := auth.NewTokenService(app.config, app.logger)
	if err != nil {
		return err
	}

	exchanger, err := newExchanger(ctx, app.config.Google, app.logger)
	if err != nil {
		return err
	}

	app.tokens = tokens
	app.auther = auth.NewAuthenticator(app.repo.Accounts(), tokens, exchanger).
		WithPasswordHasher(auth.NewBcryptHasher(app.config.BcryptCost)).
		WithLogger(app.logger).
		WithActivitySink(activityLogger(app.logger))

	return nil
}

func WithHTTPServer(app *App) error {
	accounts := auth.NewAccountService(app.repo.Accounts(), app.repo.Directory()).
		WithLogger(app.logger).
		WithActivitySink(activityLogger(app.logger))

	handlers := httpapi.NewHandlers(app.auther, accounts, app.tokens).WithLogger(app.logger)

	if cfg := app.config.Google; cfg.RedirectEnabled() {
		flow, err := google.NewCodeFlow(cfg.ClientIDs[0], cfg.ClientSecret, cfg.RedirectURL,
			google.WithCodeFlowHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
		if err != nil {
			return err
		}
		states, err := google.NewStateCodec(app.config.SigningKey, google.WithStateTTL(cfg.StateTTL))
		if err != nil {
			return err
		}
		handlers.WithGoogleRedirect(flow, states)
		app.logger.Info("google redirect login enabled", "redirect_url", cfg.RedirectURL)
	}

	app.srv = httpapi.NewApp(handlers, app.logger)
	return nil
}

func newExchanger(ctx context.Context, cfg config.Google, logger *slog.Logger) (*google.Exchanger, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var introspector google.Introspector
	switch strings.ToLower(cfg.Mode) {
	case config.GoogleModeOIDC:
		oidc, err := google.NewOIDC(ctx, cfg.Issuer, client)
		if err != nil {
			return nil, err
		}
		introspector = oidc
	default:
		introspector = google.NewTokenInfo(
			google.WithEndpoint(cfg.TokenInfoURL),
			google.WithHTTPClient(client),
		)
	}

	if len(cfg.ClientIDs) == 0 {
		logger.Warn("GOOGLE_CLIENT_IDS is empty, any Google audience will be accepted")
	}

	return google.NewExchanger(introspector,
		google.WithClientIDs(cfg.ClientIDs...),
		google.WithTimeout(cfg.Timeout),
		google.WithLogger(logger),
	), nil
}

func activityLogger(logger *slog.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		logger.InfoContext(ctx, "activity", activitymap.Normalize(event).Attrs()...)
		return nil
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
