package load

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ReasonUnexpected is the drop reason for errors that are not retried.
const ReasonUnexpected = "unexpected error"

// RowIntegrityError is a data-type or constraint failure while loading a row.
// Such rows are cleaned and retried.
type RowIntegrityError struct {
	Row   int
	Table string
	Err   error
}

func (e *RowIntegrityError) Error() string {
	return fmt.Sprintf("row %d: table %q: %v", e.Row, e.Table, e.Err)
}

func (e *RowIntegrityError) Unwrap() error { return e.Err }

// UnexpectedRowError is any other failure while loading a row.
// Such rows are dropped without retry.
type UnexpectedRowError struct {
	Row   int
	Table string
	Err   error
}

func (e *UnexpectedRowError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: table %q: %v", e.Row, e.Table, e.Err)
}

func (e *UnexpectedRowError) Unwrap() error { return e.Err }

// integrityPatterns classify errors that carry no SQLSTATE.
var integrityPatterns = []string{
	"invalid input syntax",
	"value too long",
	"out of range",
	"violates",
}

// IsIntegrity reports whether err is a data exception (SQLSTATE class 22)
// or an integrity constraint violation (class 23).
func IsIntegrity(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
	}
	msg := strings.ToLower(err.Error())
	for _, p := range integrityPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func classify(row int, table string, err error) error {
	if IsIntegrity(err) {
		return &RowIntegrityError{Row: row, Table: table, Err: err}
	}
	return &UnexpectedRowError{Row: row, Table: table, Err: err}
}

var spaceRun = regexp.MustCompile(`\s+`)

// Reason normalizes an error into a drop reason: the server message without
// the offending value, so rows failing the same way share a reason.
func Reason(err error) string {
	var unexpected *UnexpectedRowError
	if errors.As(err, &unexpected) {
		return ReasonUnexpected
	}
	var msg string
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg = pgErr.Message
	} else {
		cause := err
		for next := errors.Unwrap(cause); next != nil; next = errors.Unwrap(cause) {
			cause = next
		}
		msg = cause.Error()
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if i := strings.Index(msg, ": "); i > 0 && strings.HasPrefix(strings.TrimSpace(msg[i+2:]), `"`) {
		msg = msg[:i]
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(msg, " "))
}
