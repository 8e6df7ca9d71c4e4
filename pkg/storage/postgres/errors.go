package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
)

// PostgreSQL error codes handled by TranslateError
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint
func IsUniqueViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != CodeUniqueViolation {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	for _, c := range constraint {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// TranslateError maps storage errors onto application errors. Unique
// violations become Conflict, foreign key violations and missing rows become
// NotFound, check violations become Validation. Other errors pass through.
func TranslateError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.KindNotFound, message, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case CodeUniqueViolation:
			return apperrors.Wrap(apperrors.KindConflict, message, err)
		case CodeForeignKeyViolation:
			return apperrors.Wrap(apperrors.KindNotFound, message, err)
		case CodeCheckViolation:
			return apperrors.Wrap(apperrors.KindValidation, message, err)
		}
	}
	return err
}
