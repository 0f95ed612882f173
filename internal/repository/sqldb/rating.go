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
	"github.com/sakif/moviecatalog/internal/repository"
)

const ratingColumns = `user_id, movie_id, rating, rated_at`

func ratingKey(userID int64, movieID string) string {
	return strconv.FormatInt(userID, 10) + "," + movieID
}

// CreateRating inserts a new (user, movie) score.
//
//   - a second rating for the same pair  → apperror.ErrConflict
//   - unknown user or movie             → apperror.ErrReferenceNotFound
//   - score outside 1..5                → apperror.ErrValidation
func (db *DB) CreateRating(ctx context.Context, r *model.Rating) error {
	if r.RatedAt == nil {
		now := db.now()
		r.RatedAt = &now
	}

	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO ratings (`+ratingColumns+`) VALUES (?, ?, ?, ?)`),
		r.UserID, r.MovieID, r.Value, *r.RatedAt,
	)
	if err != nil {
		switch classify(err) {
		case uniqueConstraint:
			return apperror.Conflict("rating", "user_id,movie_id", ratingKey(r.UserID, r.MovieID))
		case foreignKeyConstraint:
			return db.referenceError(ctx, err,
				parentRef{"user", tableUsers, r.UserID},
				parentRef{"movie", tableMovies, r.MovieID},
			)
		case checkConstraint:
			return ratingRangeError(r.Value)
		}
		return fmt.Errorf("sqldb: inserting rating %s: %w", ratingKey(r.UserID, r.MovieID), err)
	}
	return nil
}

func ratingRangeError(v int) error {
	return apperror.ValidationFailed("rating",
		fmt.Sprintf("rating must be between %d and %d, got %d", model.MinRating, model.MaxRating, v))
}

// UpdateRating changes the score of an existing pair and refreshes rated_at.
func (db *DB) UpdateRating(ctx context.Context, r *model.Rating) error {
	now := db.now()
	if r.RatedAt == nil {
		r.RatedAt = &now
	}

	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`UPDATE ratings SET rating = ?, rated_at = ? WHERE user_id = ? AND movie_id = ?`),
		r.Value, *r.RatedAt, r.UserID, r.MovieID,
	)
	if err != nil {
		if classify(err) == checkConstraint {
			return ratingRangeError(r.Value)
		}
		return fmt.Errorf("sqldb: updating rating %s: %w", ratingKey(r.UserID, r.MovieID), err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("rating", ratingKey(r.UserID, r.MovieID))
	}
	return nil
}

func (db *DB) GetRating(ctx context.Context, userID int64, movieID string) (*model.Rating, error) {
	var r model.Rating
	err := sqlx.GetContext(ctx, db.conn, &r, db.conn.Rebind(
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = ? AND movie_id = ?`),
		userID, movieID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("rating", ratingKey(userID, movieID))
		}
		return nil, fmt.Errorf("sqldb: getting rating %s: %w", ratingKey(userID, movieID), err)
	}
	return &r, nil
}

// ListRatingsByUser returns the user's ratings, newest first.
func (db *DB) ListRatingsByUser(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Rating, error) {
	opts = opts.Normalize()

	ratings := []model.Rating{}
	err := sqlx.SelectContext(ctx, db.conn, &ratings, db.conn.Rebind(
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = ?
		 ORDER BY rated_at DESC, movie_id LIMIT ? OFFSET ?`),
		userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing ratings of user %d: %w", userID, err)
	}
	return ratings, nil
}

// ListRatingsByMovie returns the movie's ratings, newest first.
func (db *DB) ListRatingsByMovie(ctx context.Context, movieID string, opts repository.ListOptions) ([]model.Rating, error) {
	opts = opts.Normalize()

	ratings := []model.Rating{}
	err := sqlx.SelectContext(ctx, db.conn, &ratings, db.conn.Rebind(
		`SELECT `+ratingColumns+` FROM ratings WHERE movie_id = ?
		 ORDER BY rated_at DESC, user_id LIMIT ? OFFSET ?`),
		movieID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing ratings of movie %s: %w", movieID, err)
	}
	return ratings, nil
}

func (db *DB) DeleteRating(ctx context.Context, userID int64, movieID string) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`DELETE FROM ratings WHERE user_id = ? AND movie_id = ?`), userID, movieID)
	if err != nil {
		return fmt.Errorf("sqldb: deleting rating %s: %w", ratingKey(userID, movieID), err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("rating", ratingKey(userID, movieID))
	}
	return nil
}

// MovieRatingStats returns the count and mean score of a movie. A movie
// nobody rated has Count 0 and Average 0.
func (db *DB) MovieRatingStats(ctx context.Context, movieID string) (*model.RatingStats, error) {
	ok, err := exists(ctx, db.conn, tableMovies, "id", movieID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("movie", movieID)
	}

	stats := model.RatingStats{MovieID: movieID}
	err = db.conn.QueryRowxContext(ctx, db.conn.Rebind(
		`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM ratings WHERE movie_id = ?`), movieID,
	).Scan(&stats.Count, &stats.Average)
	if err != nil {
		return nil, fmt.Errorf("sqldb: aggregating ratings of movie %s: %w", movieID, err)
	}
	return &stats, nil
}
