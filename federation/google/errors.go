package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	auth "github.com/goliatone/go-authcore"
	goerrors "github.com/goliatone/go-errors"
)

// ProviderError captures normalized provider response details.
type ProviderError struct {
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "google error"
	}

	scope := "google"
	if e.Operation != "" {
		scope = fmt.Sprintf("google %s", e.Operation)
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{"provider": ProviderName}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}

	return meta
}

func providerError(operation string, status int, code, description string, err error) *ProviderError {
	return &ProviderError{
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}

// wrapProviderError attaches provider details to a taxonomy error
func wrapProviderError(base *goerrors.Error, err error) error {
	meta := map[string]any{"provider": ProviderName}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	return auth.WithCause(base, err, meta)
}

func upstreamUnavailable(err error) error {
	return wrapProviderError(auth.ErrUpstreamUnavailable, err)
}

func invalidProviderToken(err error) error {
	return wrapProviderError(auth.ErrInvalidProviderToken, err)
}

// isTransportError reports failures to reach the provider at all
func isTransportError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
