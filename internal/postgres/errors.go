package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidQuery is returned when a statement is empty. Such calls never
// reach the database.
var ErrInvalidQuery = errors.New("invalid query: statement is empty")

// StorageError is the single failure type surfaced by the gateway for
// connection, driver and constraint errors alike.
type StorageError struct {
	Op   string // gateway operation (read, write, batch)
	Code string // SQLSTATE when the server reported one
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage %s failed (sqlstate %s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Constraint reports whether the store rejected the statement because of an
// integrity constraint (SQLSTATE class 23).
func (e *StorageError) Constraint() bool {
	return len(e.Code) == 5 && e.Code[:2] == "23"
}

// IsConstraintViolation reports whether err carries a StorageError raised by
// an integrity constraint, such as a second row for a registered URL.
func IsConstraintViolation(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Constraint()
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	se := &StorageError{Op: op, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
	}
	return se
}
