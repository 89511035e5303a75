package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE for a unique or primary key conflict.
const uniqueViolation = "23505"

// MapError converts the two storage outcomes every System reports in domain
// terms. A missing row, including the one ExecExpectOne reports for a guarded
// UPDATE that matched nothing, becomes notFoundErr; a unique conflict becomes
// duplicateErr. Anything else passes through so callers can wrap it.
func MapError(err error, notFoundErr, duplicateErr error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFoundErr
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return duplicateErr
	default:
		return err
	}
}
