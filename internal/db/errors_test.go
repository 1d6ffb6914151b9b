package db_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsForeignKeyViolation(t *testing.T) {
	err := fmt.Errorf("insert access: %w", &pgconn.PgError{Code: "23503", Message: "violates foreign key"})
	if !db.IsForeignKeyViolation(err) {
		t.Errorf("expected wrapped 23503 to be a foreign key violation")
	}
	if db.IsUniqueViolation(err) {
		t.Errorf("expected 23503 not to be a unique violation")
	}
	if db.IsForeignKeyViolation(errors.New("connection reset")) {
		t.Errorf("expected plain error not to be a foreign key violation")
	}
}

func TestFailKeepsSQLAndCause(t *testing.T) {
	cause := &pgconn.PgError{Code: "23505"}
	err := db.Fail("insert data point", "INSERT INTO t VALUES ($1)", []any{"x"}, cause)

	var qe *db.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %T", err)
	}
	if !strings.Contains(qe.SQL, "INSERT INTO t") {
		t.Errorf("expected SQL to be kept, got %q", qe.SQL)
	}
	if !db.IsUniqueViolation(err) {
		t.Errorf("expected cause to stay reachable through QueryError")
	}
}

func TestFailClassifiesRejectedValues(t *testing.T) {
	for _, code := range []string{"23502", "23514", "22007"} {
		err := db.Fail("upsert data point", "INSERT", nil, &pgconn.PgError{Code: code})
		if !errors.Is(err, utils.ErrValidation) {
			t.Errorf("%s: expected a validation error", code)
		}
		if utils.HTTPStatus(err) != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", code, utils.HTTPStatus(err))
		}
	}

	for _, cause := range []error{&pgconn.PgError{Code: "23505"}, &pgconn.PgError{Code: "57P01"}, errors.New("connection reset")} {
		err := db.Fail("upsert data point", "INSERT", nil, cause)
		if errors.Is(err, utils.ErrValidation) {
			t.Errorf("%v: expected a server error, not a validation error", cause)
		}
		if utils.HTTPStatus(err) != http.StatusInternalServerError {
			t.Errorf("%v: expected 500, got %d", cause, utils.HTTPStatus(err))
		}
	}
}
