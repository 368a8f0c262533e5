package mysql

import (
	"database/sql"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/StorRi/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errNoSuchTable     = 1146
	errAccessDenied    = 1045
	errConnRefused     = 2003
	errUnknownDatabase = 1049
)

// mapError converts a MySQL driver error into the StorRi error taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.New(errs.ErrKindNotFound, op, "", "no checkpoint saved under this name")
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errAccessDenied, errConnRefused, errUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed, "database connection failed", err)
		case errNoSuchTable:
			return errs.Wrap(errs.ErrKindInvalidInput, "checkpoint table missing, run EnsureSchema", err)
		}
	}

	return errs.Wrap(errs.ErrKindUnknown, "checkpoint store error", err)
}
