package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// FailureCode is the internal error taxonomy surfaced to callers. Raw driver
// detail never crosses the store boundary; it is logged and dropped.
type FailureCode string

const (
	CodeNotFound   FailureCode = "NOT_FOUND"
	CodeConflict   FailureCode = "CONFLICT"
	CodeTimeout    FailureCode = "TIMEOUT"
	CodeStoreError FailureCode = "STORE_ERROR"
)

// Failure is the only error type the gateway returns.
type Failure struct {
	Op   string
	Code FailureCode
}

func (f *Failure) Error() string {
	return "store: " + f.Op + ": " + string(f.Code)
}

// AsFailure unwraps a gateway error.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify maps a driver error onto the internal taxonomy.
func classify(err error) FailureCode {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return CodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23xxx: integrity constraint violations.
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return CodeConflict
		}
	}
	return CodeStoreError
}
