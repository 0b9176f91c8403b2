package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-authcore"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders go-errors values using the status code attached to
// the taxonomy entry. Anything else is reported as an internal error.
func ErrorHandler(logger auth.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = nopLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Message: fiberErr.Message})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		status := statusFor(richErr)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"error", err.Error(),
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
			// internal causes stay in the log
			return c.Status(status).JSON(ErrorResponse{
				Message: richErr.Message,
				Code:    richErr.TextCode,
			})
		}

		logger.Debug("request rejected",
			"path", c.Path(),
			"error", richErr.Message,
			"code", richErr.TextCode,
		)

		return c.Status(status).JSON(ErrorResponse{
			Message: richErr.Message,
			Code:    richErr.TextCode,
			Details: richErr.Metadata,
		})
	}
}

func statusFor(err *goerrors.Error) int {
	if err.Code >= 400 && err.Code < 600 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func invalidBody(err error) error {
	return auth.WithCause(auth.ErrInvalidInput, err, map[string]any{
		"body": "request body must be a JSON object",
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
