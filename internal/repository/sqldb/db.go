// Package sqldb implements the repository interfaces on a SQL database.
//
// Two dialects are supported:
//   - "sqlite"   → modernc.org/sqlite, a pure Go build of SQLite (default, used by tests)
//   - "postgres" → github.com/lib/pq
//
// Queries are written once with ? placeholders and rebound per dialect by sqlx,
// which also handles scanning rows into the model structs through their db tags.
//
// INTEGRITY RULES LIVE HERE:
// The store is the only place that writes rows, so it is also the place that
// enforces the invariants of the entity graph:
//   - unique keys (users.email, ratings PK, movie_list_items PK) → apperror.ErrConflict
//   - foreign keys on every child table                        → apperror.ErrReferenceNotFound
//   - deletes cascade to dependents inside one transaction
//
// Foreign keys are declared WITHOUT "ON DELETE CASCADE". The cascade is done
// explicitly in DeleteUser/DeleteMovie/DeleteMovieList, and a forgotten step
// makes the parent delete fail on the FK instead of silently leaving orphans.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sakif/moviecatalog/internal/repository"
)

// Supported values for Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", a name sqlx does not know yet.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// compile-time check that *DB implements the whole repository surface
var _ repository.Store = (*DB)(nil)

// Config describes how to reach the database.
type Config struct {
	Driver       string // DriverSQLite (default) or DriverPostgres
	DSN          string // file path / ":memory:" for sqlite, URL for postgres
	MaxOpenConns int    // ignored for sqlite, which always uses one connection
}

// DB wraps a sqlx connection pool and implements repository.Store.
type DB struct {
	conn    *sqlx.DB
	dialect string
	now     func() time.Time
}

// Open connects, verifies the connection and runs the migrations.
//
// SQLITE AND CONNECTIONS:
// A ":memory:" database exists per connection, and SQLite only ever has one
// writer anyway. The pool is therefore pinned to a single connection, which
// also makes concurrent writers queue up instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(cfg.DSN)
	case DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", cfg.Driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening database: %w", err)
	}

	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		maxConns := cfg.MaxOpenConns
		if maxConns <= 0 {
			maxConns = 10
		}
		conn.SetMaxOpenConns(maxConns)
		conn.SetMaxIdleConns(maxConns)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging database: %w", err)
	}

	db := newDB(conn, driver)

	if driver == DriverSQLite && !isMemoryDSN(cfg.DSN) {
		// WAL lets readers proceed while a write is in flight.
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqldb: setting WAL mode: %w", err)
		}
	}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	return db, nil
}

func newDB(conn *sqlx.DB, dialect string) *DB {
	return &DB{
		conn:    conn,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// sqliteDSN turns a path into a DSN with the pragmas every connection needs.
// Foreign keys are OFF by default in SQLite.
func sqliteDSN(path string) string {
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func isMemoryDSN(path string) bool {
	return path == "" || strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Dialect returns DriverSQLite or DriverPostgres.
func (db *DB) Dialect() string {
	return db.dialect
}

// withTx runs fn inside a transaction.
//
// fn's error (or a panic) rolls everything back, so a cascade either happens
// completely or not at all. Inside fn, ALWAYS use tx and never db.conn: with
// SQLite's single connection, touching the pool here would wait forever for
// the connection the transaction is holding.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("sqldb: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: committing transaction: %w", err)
	}
	return nil
}

// exists reports whether a row with the given key is present.
// table and column are always package constants, never user input.
func exists(ctx context.Context, q sqlx.ExtContext, table, column string, value any) (bool, error) {
	var one int
	err := q.QueryRowxContext(ctx,
		q.Rebind(fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = ?`, table, column)),
		value,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqldb: checking %s.%s: %w", table, column, err)
	}
	return true, nil
}

// rowsAffected reports how many rows a statement touched.
func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	return n, nil
}
