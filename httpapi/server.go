package httpapi

import (
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
)

// NewApp returns a fiber app with the error handler installed and the
// handlers mounted at the root.
func NewApp(h *Handlers, logger auth.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-authcore",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})

	h.WithLogger(logger).Register(app)
	return app
}
