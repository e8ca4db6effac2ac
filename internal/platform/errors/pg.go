package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStates maps the SQLSTATEs the cluster tables can raise; anything else is ErrorCodeDB
var sqlStates = map[string]ErrorCode{
	"23505": ErrorCodeConflict,        // unique_violation
	"23502": ErrorCodeValidation,      // not_null_violation
	"23514": ErrorCodeValidation,      // check_violation
	"22P02": ErrorCodeInvalidArgument, // invalid_text_representation
	"22003": ErrorCodeInvalidArgument, // numeric_value_out_of_range
	"53100": ErrorCodeExhausted,       // disk_full
	"25006": ErrorCodeUnavailable,     // read_only_sql_transaction
	"57P03": ErrorCodeUnavailable,     // cannot_connect_now
}

// transientStates are worth retrying as-is
var transientStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P03": true,
}

// transientText catches failures that reach us without a SQLSTATE
var transientText = []string{
	"commit unexpectedly resulted in rollback",
	"terminating connection due to administrator command",
	"connection refused",
	"connection reset by peer",
}

// PgError finds a postgres error anywhere in err's chain
func PgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	ok := stderrs.As(err, &pe)
	return pe, ok
}

// IsSQLState reports whether err carries the given SQLSTATE
func IsSQLState(err error, state string) bool {
	pe, ok := PgError(err)
	return ok && pe.Code == state
}

// IsDuplicateRun reports a unique violation on a run or cluster key
func IsDuplicateRun(err error) bool { return IsSQLState(err, "23505") }

// FromPostgresf wraps err with the code its SQLSTATE maps to
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	code := ErrorCodeDB
	if pe, ok := PgError(err); ok {
		if c, known := sqlStates[pe.Code]; known {
			code = c
		}
	}
	return Wrap(err, code, fmt.Sprintf(format, a...))
}

// Retryable reports whether repeating the failed write may succeed
// cancellation never is; unavailable is regardless of backend
func Retryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pe, ok := PgError(err); ok {
		return transientStates[pe.Code] || sqlStates[pe.Code] == ErrorCodeUnavailable
	}
	if IsCode(err, ErrorCodeUnavailable) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, t := range transientText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
