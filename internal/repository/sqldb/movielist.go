package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/model"
)

const (
	movieListColumns = `id, user_id, name, description, created_at, is_public`
	listItemColumns  = `list_id, movie_id, date_added`
)

func listNameError(name string) error {
	return apperror.ValidationFailed("name",
		fmt.Sprintf("list name must be at most %d characters, got %d", model.MaxListNameLength, len([]rune(name))))
}

// CreateMovieList inserts a list owned by l.UserID and sets l.ID.
func (db *DB) CreateMovieList(ctx context.Context, l *model.MovieList) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = db.now()
	}

	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(
		`INSERT INTO movie_lists (user_id, name, description, created_at, is_public)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		l.UserID, l.Name, l.Description, l.CreatedAt, l.IsPublic,
	).Scan(&l.ID)
	if err != nil {
		switch classify(err) {
		case foreignKeyConstraint:
			return db.referenceError(ctx, err, parentRef{"user", tableUsers, l.UserID})
		case checkConstraint:
			return listNameError(l.Name)
		}
		return fmt.Errorf("sqldb: inserting movie list for user %d: %w", l.UserID, err)
	}
	return nil
}

func (db *DB) GetMovieList(ctx context.Context, id int64) (*model.MovieList, error) {
	return getMovieList(ctx, db.conn, id)
}

func getMovieList(ctx context.Context, q sqlx.ExtContext, id int64) (*model.MovieList, error) {
	var l model.MovieList
	err := sqlx.GetContext(ctx, q, &l,
		q.Rebind(`SELECT `+movieListColumns+` FROM movie_lists WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("movie list", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqldb: getting movie list %d: %w", id, err)
	}
	return &l, nil
}

// ListMovieListsByUser returns the user's lists in creation order.
func (db *DB) ListMovieListsByUser(ctx context.Context, userID int64) ([]model.MovieList, error) {
	return movieListsByUser(ctx, db.conn, userID)
}

func movieListsByUser(ctx context.Context, q sqlx.ExtContext, userID int64) ([]model.MovieList, error) {
	lists := []model.MovieList{}
	err := sqlx.SelectContext(ctx, q, &lists, q.Rebind(
		`SELECT `+movieListColumns+` FROM movie_lists WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing movie lists of user %d: %w", userID, err)
	}
	return lists, nil
}

// UpdateMovieList changes name, description and visibility. The owner of a
// list never changes.
func (db *DB) UpdateMovieList(ctx context.Context, l *model.MovieList) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`UPDATE movie_lists SET name = ?, description = ?, is_public = ? WHERE id = ?`),
		l.Name, l.Description, l.IsPublic, l.ID,
	)
	if err != nil {
		if classify(err) == checkConstraint {
			return listNameError(l.Name)
		}
		return fmt.Errorf("sqldb: updating movie list %d: %w", l.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("movie list", strconv.FormatInt(l.ID, 10))
	}
	return nil
}

// DeleteMovieList removes the list and its items in one transaction.
func (db *DB) DeleteMovieList(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := runCascade(ctx, tx, movieListCascade, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("movie list", strconv.FormatInt(id, 10))
		}
		return nil
	})
}

// AddListItem puts a movie on a list. Adding the same movie twice is a
// Conflict; the existing item keeps its original DateAdded.
func (db *DB) AddListItem(ctx context.Context, item *model.MovieListItem) error {
	if item.DateAdded.IsZero() {
		item.DateAdded = db.now()
	}

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO movie_list_items (`+listItemColumns+`) VALUES (?, ?, ?)`),
		item.ListID, item.MovieID, item.DateAdded,
	)
	if err != nil {
		switch classify(err) {
		case uniqueConstraint:
			return apperror.Conflict("movie list item", "list_id,movie_id",
				strconv.FormatInt(item.ListID, 10)+","+item.MovieID)
		case foreignKeyConstraint:
			return db.referenceError(ctx, err,
				parentRef{"movie list", tableMovieLists, item.ListID},
				parentRef{"movie", tableMovies, item.MovieID},
			)
		}
		return fmt.Errorf("sqldb: adding movie %s to list %d: %w", item.MovieID, item.ListID, err)
	}
	return nil
}

func (db *DB) RemoveListItem(ctx context.Context, listID int64, movieID string) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`DELETE FROM movie_list_items WHERE list_id = ? AND movie_id = ?`), listID, movieID)
	if err != nil {
		return fmt.Errorf("sqldb: removing movie %s from list %d: %w", movieID, listID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("movie list item", strconv.FormatInt(listID, 10)+","+movieID)
	}
	return nil
}

// ListItems returns the items of a list in the order they were added.
// An unknown list is NotFound rather than an empty result.
func (db *DB) ListItems(ctx context.Context, listID int64) ([]model.MovieListItem, error) {
	ok, err := exists(ctx, db.conn, tableMovieLists, "id", listID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("movie list", strconv.FormatInt(listID, 10))
	}
	return listItems(ctx, db.conn, listID)
}

func listItems(ctx context.Context, q sqlx.ExtContext, listIDs ...int64) ([]model.MovieListItem, error) {
	items := []model.MovieListItem{}
	if len(listIDs) == 0 {
		return items, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+listItemColumns+` FROM movie_list_items WHERE list_id IN (?) ORDER BY date_added, movie_id`,
		listIDs)
	if err != nil {
		return nil, fmt.Errorf("sqldb: building list item lookup: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqldb: listing items of %d lists: %w", len(listIDs), err)
	}
	return items, nil
}
