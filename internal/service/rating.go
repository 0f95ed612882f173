package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
)

type RatingService struct {
	ratings repository.RatingRepository
	logger  *slog.Logger
}

func NewRatingService(ratings repository.RatingRepository, logger *slog.Logger) *RatingService {
	return &RatingService{ratings: ratings, logger: logger}
}

// Rate sets the user's score for a movie, creating the rating on the first
// call and updating it afterwards. The pair never gets a second row.
//
// Two concurrent first ratings race on the primary key. The loser sees a
// Conflict from CreateRating and falls back to an update.
func (s *RatingService) Rate(ctx context.Context, userID int64, movieID string, value int) (*model.Rating, error) {
	if value < model.MinRating || value > model.MaxRating {
		return nil, apperror.ValidationFailed("rating",
			fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	if movieID == "" {
		return nil, apperror.ValidationFailed("movieId", "movie id is required")
	}

	r := &model.Rating{UserID: userID, MovieID: movieID, Value: value}

	_, err := s.ratings.GetRating(ctx, userID, movieID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		err = s.ratings.CreateRating(ctx, r)
		if errors.Is(err, apperror.ErrConflict) {
			err = s.ratings.UpdateRating(ctx, r)
		}
	case err == nil:
		err = s.ratings.UpdateRating(ctx, r)
	}
	if err != nil {
		return nil, fmt.Errorf("service/rating: rating %s by user %d: %w", movieID, userID, err)
	}

	s.logger.Debug("movie rated",
		slog.Int64("userID", userID),
		slog.String("movieID", movieID),
		slog.Int("rating", value),
	)
	return r, nil
}

func (s *RatingService) Get(ctx context.Context, userID int64, movieID string) (*model.Rating, error) {
	return s.ratings.GetRating(ctx, userID, movieID)
}

func (s *RatingService) Delete(ctx context.Context, userID int64, movieID string) error {
	if err := s.ratings.DeleteRating(ctx, userID, movieID); err != nil {
		return fmt.Errorf("service/rating: deleting rating of %s by user %d: %w", movieID, userID, err)
	}
	return nil
}

// ByUser lists the user's ratings, newest first.
func (s *RatingService) ByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Rating, error) {
	return s.ratings.ListRatingsByUser(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset}.Normalize())
}

// ByMovie lists the movie's ratings, newest first.
func (s *RatingService) ByMovie(ctx context.Context, movieID string, limit, offset int) ([]model.Rating, error) {
	return s.ratings.ListRatingsByMovie(ctx, movieID, repository.ListOptions{Limit: limit, Offset: offset}.Normalize())
}
