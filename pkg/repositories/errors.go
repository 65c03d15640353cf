package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/epd-normalizer/pkg/apperrors"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// conflictError reports a row another writer created that could not be read back.
func conflictError(entity, key string, cause error) error {
	return fmt.Errorf("%w: %s %s created concurrently but not readable: %v", apperrors.ErrConflict, entity, key, cause)
}
