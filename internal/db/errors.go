package db

import (
	"errors"
	"fmt"
	"log"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the service reacts to.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeInvalidDatetime     = "22007"
)

// QueryError is a failed statement. It keeps the SQL for diagnosis; bound
// values are logged but not carried. Rejections of the stored values
// themselves also unwrap to utils.ErrValidation.
type QueryError struct {
	Op  string
	SQL string
	Err error

	invalid bool
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() []error {
	if e.invalid {
		return []error{e.Err, utils.ErrValidation}
	}
	return []error{e.Err}
}

// Fail logs a failed statement with its parameters and returns it wrapped in
// a QueryError.
func Fail(op, sql string, args []any, err error) error {
	log.Printf("[db] %s failed: %v\n\tsql: %s\n\targs: %v", op, err, sql, args)
	return &QueryError{Op: op, SQL: sql, Err: err, invalid: IsValueRejected(err)}
}

// IsValueRejected reports whether Postgres refused a value: a NOT NULL or
// CHECK violation, or an unparseable date/time.
func IsValueRejected(err error) bool {
	return hasCode(err, codeNotNullViolation) ||
		hasCode(err, codeCheckViolation) ||
		hasCode(err, codeInvalidDatetime)
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
