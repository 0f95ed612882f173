package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
)

// MOVIES ARE SCANNED BY HAND:
// The 36 genre columns map onto the Genres array, which has no db tags, so
// sqlx's struct mapping cannot reach them. Instead movieColumnList and
// movieDest/movieArgs list the columns and their targets in the same order.

var movieColumnList = func() []string {
	cols := []string{
		"id", "title", "type", "director", "cast_members", "country",
		"release_year", "rating", "duration", "description", "poster_url",
	}
	for _, g := range model.AllGenres() {
		cols = append(cols, g.Column())
	}
	return cols
}()

var movieColumns = strings.Join(movieColumnList, ", ")

func movieDest(m *model.Movie) []any {
	dest := []any{
		&m.ID, &m.Title, &m.Type, &m.Director, &m.Cast, &m.Country,
		&m.ReleaseYear, &m.Rating, &m.Duration, &m.Description, &m.PosterURL,
	}
	for i := range m.Genres {
		dest = append(dest, &m.Genres[i])
	}
	return dest
}

func movieArgs(m *model.Movie) []any {
	args := []any{
		m.ID, m.Title, m.Type, m.Director, m.Cast, m.Country,
		m.ReleaseYear, m.Rating, m.Duration, m.Description, m.PosterURL,
	}
	for _, f := range m.Genres {
		args = append(args, f)
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// CreateMovie inserts a catalog title. The id comes from the catalog, so a
// second insert of the same id is a Conflict.
func (db *DB) CreateMovie(ctx context.Context, m *model.Movie) error {
	if m.ID == "" {
		return apperror.ValidationFailed("id", "movie id is required")
	}

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO movies (`+movieColumns+`) VALUES (`+placeholders(len(movieColumnList))+`)`),
		movieArgs(m)...,
	)
	if err != nil {
		if classify(err) == uniqueConstraint {
			return apperror.Conflict("movie", "id", m.ID)
		}
		return fmt.Errorf("sqldb: inserting movie %s: %w", m.ID, err)
	}
	return nil
}

// UpsertMovie inserts the movie or overwrites every column of an existing
// row with the same id. The catalog import uses it so a re-run is harmless.
func (db *DB) UpsertMovie(ctx context.Context, m *model.Movie) error {
	if m.ID == "" {
		return apperror.ValidationFailed("id", "movie id is required")
	}

	sets := make([]string, 0, len(movieColumnList)-1)
	for _, col := range movieColumnList[1:] {
		sets = append(sets, col+" = excluded."+col)
	}

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO movies (`+movieColumns+`) VALUES (`+placeholders(len(movieColumnList))+`)
		 ON CONFLICT (id) DO UPDATE SET `+strings.Join(sets, ", ")),
		movieArgs(m)...,
	)
	if err != nil {
		return fmt.Errorf("sqldb: upserting movie %s: %w", m.ID, err)
	}
	return nil
}

// GetMovie looks the id up exactly as given.
func (db *DB) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	var m model.Movie
	err := db.conn.QueryRowxContext(ctx,
		db.conn.Rebind(`SELECT `+movieColumns+` FROM movies WHERE id = ?`), id,
	).Scan(movieDest(&m)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("movie", id)
		}
		return nil, fmt.Errorf("sqldb: getting movie %s: %w", id, err)
	}
	return &m, nil
}

// GetMoviesByIDs returns the movies in the order of ids. Unknown ids are
// skipped, and a repeated id yields the same *Movie at each position.
func (db *DB) GetMoviesByIDs(ctx context.Context, ids []string) ([]*model.Movie, error) {
	byID, err := moviesByID(ctx, db.conn, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// moviesByID loads a set of movies with one IN query.
func moviesByID(ctx context.Context, q sqlx.ExtContext, ids []string) (map[string]*model.Movie, error) {
	byID := make(map[string]*model.Movie, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	query, args, err := sqlx.In(`SELECT `+movieColumns+` FROM movies WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("sqldb: building movie lookup: %w", err)
	}

	rows, err := q.QueryxContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: looking up %d movies: %w", len(ids), err)
	}
	defer rows.Close()

	for rows.Next() {
		m := new(model.Movie)
		if err := rows.Scan(movieDest(m)...); err != nil {
			return nil, fmt.Errorf("sqldb: scanning movie: %w", err)
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating movies: %w", err)
	}
	return byID, nil
}

// ListMovies returns one page of movies ordered by title, optionally only
// those flagged in a genre.
func (db *DB) ListMovies(ctx context.Context, f repository.MovieFilter) ([]model.Movie, error) {
	opts := f.ListOptions.Normalize()

	query := `SELECT ` + movieColumns + ` FROM movies`
	if f.Genre != nil {
		col := f.Genre.Column()
		if col == "" {
			return nil, apperror.ValidationFailed("genre", fmt.Sprintf("unknown genre %d", int(*f.Genre)))
		}
		// col comes from the fixed genre table, never from the request.
		query += ` WHERE ` + col + ` = 1`
	}
	query += ` ORDER BY title, id LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryxContext(ctx, db.conn.Rebind(query), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing movies: %w", err)
	}
	defer rows.Close()

	movies := []model.Movie{}
	for rows.Next() {
		var m model.Movie
		if err := rows.Scan(movieDest(&m)...); err != nil {
			return nil, fmt.Errorf("sqldb: scanning movie: %w", err)
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating movies: %w", err)
	}
	return movies, nil
}

// DeleteMovie removes the movie and every rating and list item that
// references it, in one transaction.
func (db *DB) DeleteMovie(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := runCascade(ctx, tx, movieCascade, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("movie", id)
		}
		return nil
	})
}
