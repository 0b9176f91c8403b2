package repository

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// TextCodeStoreFailure marks engine failures that are not part of the
// account taxonomy.
const TextCodeStoreFailure = "STORE_FAILURE"

const pgUniqueViolation = "23505"

var storeFailure = goerrors.New("account store failure", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreFailure)

// storeError hides the engine error behind an internal error. The engine
// error stays reachable through Unwrap for logging only.
func storeError(op string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "account store "+op+" failed").
		WithTextCode(TextCodeStoreFailure).
		WithCode(goerrors.CodeInternal)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	// sqlite drivers only expose the constraint through the message
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
