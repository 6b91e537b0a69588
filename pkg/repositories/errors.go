package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/database"
)

// wrapErr maps driver errors onto the apperrors taxonomy.
func wrapErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrConflict, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
