package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the field name from a unique violation detail message
// of the form `Key (field)=(value) already exists.`.
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError classifies a database driver error into the application error
// taxonomy. Missing rows become not-found, schema errors become
// configuration errors (migrations did not run), and constraint violations
// become validation errors. Anything unrecognized is wrapped with the
// operation name and passed through unchanged.
func MapDBError(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return Wrapf(err, ErrCodeNotFound, "%s: no rows", op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
			return Wrapf(err, ErrCodeConfiguration, "%s: schema out of date, run migrations", op)
		case pgerrcode.UniqueViolation:
			field := "value"
			if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
				field = m[1]
			}
			return Wrapf(err, ErrCodeValidation, "%s: duplicate %s", op, field)
		case pgerrcode.NotNullViolation:
			return Wrapf(err, ErrCodeValidation, "%s: %s is required", op, pgErr.ColumnName)
		case pgerrcode.CheckViolation:
			return Wrapf(err, ErrCodeValidation, "%s: constraint %s violated", op, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
