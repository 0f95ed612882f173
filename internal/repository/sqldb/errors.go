package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/moviecatalog/internal/apperror"
)

// constraint is the kind of integrity rule a failed statement broke.
type constraint int

const (
	noConstraint constraint = iota
	uniqueConstraint
	foreignKeyConstraint
	checkConstraint
)

// PostgreSQL SQLSTATE codes for constraint violations (class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// classify inspects a driver error.
//
// Both drivers expose a typed error with a code, which is checked first. The
// message match at the end covers errors that reach us re-wrapped as plain text.
func classify(err error) constraint {
	if err == nil {
		return noConstraint
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return uniqueConstraint
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return foreignKeyConstraint
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return checkConstraint
		}
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		switch string(pe.Code) {
		case pgUniqueViolation:
			return uniqueConstraint
		case pgForeignKeyViolation:
			return foreignKeyConstraint
		case pgCheckViolation:
			return checkConstraint
		}
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint"):
		return uniqueConstraint
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint"):
		return foreignKeyConstraint
	case containsAny(msg, "CHECK constraint failed", "violates check constraint"):
		return checkConstraint
	}
	return noConstraint
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// parentRef names one parent row a child insert points at.
type parentRef struct {
	resource string // used in the error message: "user", "movie", ...
	table    string
	id       any
}

// referenceError turns a foreign-key failure into ReferenceNotFound naming the
// first missing parent.
//
// Neither driver says WHICH foreign key failed, so the parents are probed one
// by one. Call this after the failed transaction is over: it runs on the pool.
func (db *DB) referenceError(ctx context.Context, cause error, refs ...parentRef) error {
	return referenceErrorOn(ctx, db.conn, cause, refs...)
}

func referenceErrorOn(ctx context.Context, q sqlx.ExtContext, cause error, refs ...parentRef) error {
	for _, ref := range refs {
		ok, err := exists(ctx, q, ref.table, "id", ref.id)
		if err != nil {
			return errors.Join(cause, err)
		}
		if !ok {
			return apperror.ReferenceNotFound(ref.resource, fmt.Sprint(ref.id))
		}
	}
	// Every parent is there now; it was deleted and recreated mid-flight or
	// the failing key was one we were not told about.
	return fmt.Errorf("sqldb: foreign key violation: %w", cause)
}
