package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/StorRi/internal/errs"
)

// PostgreSQL SQLSTATE error codes (checkpoint-relevant only)
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrConnectionFailure = "08006"
	pgErrUndefinedTable    = "42P01"
)

// mapError converts a pgx error into the StorRi error taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.New(errs.ErrKindNotFound, op, "", "no checkpoint saved under this name")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrConnectionFailure:
			return errs.Wrap(errs.ErrKindConnectionFailed, "database connection failed", err)
		case pgErrUndefinedTable:
			return errs.Wrap(errs.ErrKindInvalidInput, "checkpoint table missing, run EnsureSchema", err)
		}
	}

	return errs.Wrap(errs.ErrKindUnknown, "checkpoint store error", err)
}
