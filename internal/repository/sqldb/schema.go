package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/moviecatalog/internal/model"
)

// Table names are part of the persisted contract; other deployments read
// the same tables, so they never change.
const (
	tableUsers       = "users"
	tableMovies      = "movies"
	tableRatings     = "ratings"
	tableMovieLists  = "movie_lists"
	tableListItems   = "movie_list_items"
	tableResetTokens = "password_reset_tokens"
)

// columnTypes holds the few places where the dialects disagree.
type columnTypes struct {
	serial    string // auto-increment integer primary key
	bigint    string
	boolean   string
	flag      string // nullable 0/1 genre column
	timestamp string
	length    string // string length function for CHECK constraints
}

var dialectTypes = map[string]columnTypes{
	DriverSQLite: {
		serial:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		bigint:    "INTEGER",
		boolean:   "INTEGER",
		flag:      "INTEGER",
		timestamp: "DATETIME",
		length:    "length",
	},
	DriverPostgres: {
		serial:    "BIGSERIAL PRIMARY KEY",
		bigint:    "BIGINT",
		boolean:   "BOOLEAN",
		flag:      "SMALLINT",
		timestamp: "TIMESTAMPTZ",
		length:    "char_length",
	},
}

// schemaStatements builds the DDL for a dialect. Every statement is idempotent
// (IF NOT EXISTS), so migrate is safe to run on every start.
func schemaStatements(dialect string) ([]string, error) {
	t, ok := dialectTypes[dialect]
	if !ok {
		return nil, fmt.Errorf("no schema for dialect %q", dialect)
	}

	var genreCols strings.Builder
	for _, g := range model.AllGenres() {
		fmt.Fprintf(&genreCols, ",\n\t\t\t%s %s", g.Column(), t.flag)
	}

	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id          %[1]s,
			name        TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			phone       TEXT,
			age         %[2]s,
			gender      TEXT,
			location    TEXT,
			netflix     %[3]s NOT NULL DEFAULT %[4]s,
			prime_video %[3]s NOT NULL DEFAULT %[4]s,
			disney_plus %[3]s NOT NULL DEFAULT %[4]s,
			hulu        %[3]s NOT NULL DEFAULT %[4]s,
			hbo_max     %[3]s NOT NULL DEFAULT %[4]s,
			apple_tv    %[3]s NOT NULL DEFAULT %[4]s,
			password    TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL DEFAULT 'USER'
		)`, t.serial, t.bigint, t.boolean, falseLiteral(dialect)),

		// Emails are case-folded before they are written, so a plain unique
		// index gives case-insensitive uniqueness on every dialect.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users(email)`,

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS movies (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			type         TEXT,
			director     TEXT,
			cast_members TEXT,
			country      TEXT,
			release_year %s,
			rating       TEXT,
			duration     TEXT,
			description  TEXT,
			poster_url   TEXT%s
		)`, t.bigint, genreCols.String()),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS ratings (
			user_id  %s NOT NULL REFERENCES users(id),
			movie_id TEXT NOT NULL REFERENCES movies(id),
			rating   %s NOT NULL CHECK (rating BETWEEN %d AND %d),
			rated_at %s,
			PRIMARY KEY (user_id, movie_id)
		)`, t.bigint, t.bigint, model.MinRating, model.MaxRating, t.timestamp),
		`CREATE INDEX IF NOT EXISTS idx_ratings_movie_id ON ratings(movie_id)`,

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS movie_lists (
			id          %s,
			user_id     %s NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL DEFAULT '' CHECK (%s(name) <= %d),
			description TEXT,
			created_at  %s NOT NULL,
			is_public   %s NOT NULL DEFAULT %s
		)`, t.serial, t.bigint, t.length, model.MaxListNameLength, t.timestamp, t.boolean, falseLiteral(dialect)),
		`CREATE INDEX IF NOT EXISTS idx_movie_lists_user_id ON movie_lists(user_id)`,

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS movie_list_items (
			list_id    %s NOT NULL REFERENCES movie_lists(id),
			movie_id   TEXT NOT NULL REFERENCES movies(id),
			date_added %s NOT NULL,
			PRIMARY KEY (list_id, movie_id)
		)`, t.bigint, t.timestamp),
		`CREATE INDEX IF NOT EXISTS idx_movie_list_items_movie_id ON movie_list_items(movie_id)`,

		// expiry_date is unix milliseconds so the conditional consume can
		// compare it with a plain integer on both dialects.
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS password_reset_tokens (
			id          %s,
			user_id     %s NOT NULL REFERENCES users(id),
			token       TEXT NOT NULL UNIQUE,
			expiry_date %s NOT NULL,
			used        %s NOT NULL DEFAULT %s
		)`, t.serial, t.bigint, t.bigint, t.boolean, falseLiteral(dialect)),
		`CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_user_id ON password_reset_tokens(user_id)`,
	}, nil
}

func falseLiteral(dialect string) string {
	if dialect == DriverPostgres {
		return "FALSE"
	}
	return "0"
}

// migrate creates the schema.
func (db *DB) migrate(ctx context.Context) error {
	stmts, err := schemaStatements(db.dialect)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return stmt[:i]
	}
	return stmt
}
