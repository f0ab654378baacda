package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// errorClass says what the writer should do with a failed attempt.
type errorClass int

const (
	// classFatal aborts the batch with a storage error.
	classFatal errorClass = iota
	// classRetry aborts the attempt and retries the whole batch.
	classRetry
	// classReference aborts the batch with a reference error.
	classReference
)

func (c errorClass) String() string {
	switch c {
	case classRetry:
		return "retry"
	case classReference:
		return "reference"
	default:
		return "fatal"
	}
}

// errCurrentMoved is returned when the row being superseded stopped being
// current between the lookup and the update. Another writer got there first.
var errCurrentMoved = errors.New("current version changed concurrently")

// classify maps driver errors onto retry decisions.
//
// Unique violations mean a concurrent writer created or superseded the same
// logical asset; rerunning the batch recomputes versions against the new
// state. Busy, lock, serialization and deadlock errors are transient.
// Context errors are never retried.
func classify(err error) errorClass {
	if err == nil {
		return classFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classFatal
	}
	if errors.Is(err, errCurrentMoved) {
		return classRetry
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return classRetry
		case sqlite3.ErrConstraintForeignKey:
			return classReference
		}
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return classRetry
		}
		return classFatal
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505", "40001", "40P01", "55P03":
			// unique_violation, serialization_failure, deadlock_detected, lock_not_available
			return classRetry
		case "23503":
			// foreign_key_violation
			return classReference
		}
	}

	return classFatal
}
