package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate unique constraint violated
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidData rejected by a check constraint or malformed
	ErrInvalidData = errors.New("invalid data")
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// classifyPgError maps Postgres error codes onto the package sentinels.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgCheckViolation:
			return ErrInvalidData
		}
	}
	return err
}
