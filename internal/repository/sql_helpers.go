package repository

import (
	"errors"
	"strings"

	medbridge_errors "medbridge/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isDuplicateKey recognizes a unique violation from any of the drivers we
// run against: gorm's translated error, raw pgconn, or sqlite's message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps storage errors onto the sentinel kinds.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return medbridge_errors.NotFound(what + " not found")
	case isDuplicateKey(err):
		return medbridge_errors.Wrap(medbridge_errors.ErrConflict, what+" already exists", err)
	}
	return err
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
