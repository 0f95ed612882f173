// Package repository declares the data-access contracts of the catalog.
//
// Services depend on these interfaces, never on the sqldb package, so their
// tests can run against hand-written fakes. Every implementation must report
// failures with the apperror kinds:
//
//	apperror.ErrConflict          unique / composite key clash
//	apperror.ErrReferenceNotFound foreign key points at a missing parent
//	apperror.ErrNotFound          the addressed row does not exist
//
// and must run each write (including a delete with its cascade) as a single
// transaction.
package repository

import (
	"context"
	"time"

	"github.com/sakif/moviecatalog/internal/model"
)

// Pagination defaults, shared by the store and the services.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the options into the allowed range.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// MovieFilter narrows ListMovies. A nil Genre means any genre.
type MovieFilter struct {
	Genre *model.Genre
	ListOptions
}

// Include selects which relationships a graph loader fills in.
// Nothing is loaded unless asked for.
type Include struct {
	Ratings      bool // User.Ratings (each with Rating.User set)
	RatingMovies bool // Rating.Movie, implies Ratings
	Lists        bool // User.Lists (each with MovieList.User set)
	ListItems    bool // MovieList.Items (each with MovieListItem.List set), implies Lists
	ItemMovies   bool // MovieListItem.Movie, implies ListItems
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	LoadUserGraph(ctx context.Context, id int64, inc Include) (*model.User, error)
}

type MovieRepository interface {
	CreateMovie(ctx context.Context, m *model.Movie) error
	UpsertMovie(ctx context.Context, m *model.Movie) error
	GetMovie(ctx context.Context, id string) (*model.Movie, error)
	GetMoviesByIDs(ctx context.Context, ids []string) ([]*model.Movie, error)
	ListMovies(ctx context.Context, f MovieFilter) ([]model.Movie, error)
	DeleteMovie(ctx context.Context, id string) error
}

type RatingRepository interface {
	CreateRating(ctx context.Context, r *model.Rating) error
	UpdateRating(ctx context.Context, r *model.Rating) error
	GetRating(ctx context.Context, userID int64, movieID string) (*model.Rating, error)
	ListRatingsByUser(ctx context.Context, userID int64, opts ListOptions) ([]model.Rating, error)
	ListRatingsByMovie(ctx context.Context, movieID string, opts ListOptions) ([]model.Rating, error)
	DeleteRating(ctx context.Context, userID int64, movieID string) error
	MovieRatingStats(ctx context.Context, movieID string) (*model.RatingStats, error)
}

type MovieListRepository interface {
	CreateMovieList(ctx context.Context, l *model.MovieList) error
	GetMovieList(ctx context.Context, id int64) (*model.MovieList, error)
	ListMovieListsByUser(ctx context.Context, userID int64) ([]model.MovieList, error)
	UpdateMovieList(ctx context.Context, l *model.MovieList) error
	DeleteMovieList(ctx context.Context, id int64) error
	AddListItem(ctx context.Context, item *model.MovieListItem) error
	RemoveListItem(ctx context.Context, listID int64, movieID string) error
	ListItems(ctx context.Context, listID int64) ([]model.MovieListItem, error)
	LoadMovieListGraph(ctx context.Context, id int64, withMovies bool) (*model.MovieList, error)
}

// ResetTokenRepository holds the storage half of the password-reset state
// machine. ConsumeResetToken and ResetPassword must check validity and flip
// the used flag in one conditional update so two concurrent callers can
// never both succeed.
type ResetTokenRepository interface {
	IssueResetToken(ctx context.Context, t *model.PasswordResetToken) error
	GetResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	ConsumeResetToken(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error)
	ResetPassword(ctx context.Context, token string, now time.Time, hash string) (*model.PasswordResetToken, error)
	PurgeResetTokens(ctx context.Context, before time.Time) (int64, error)
}

// Store is everything the sqldb package implements.
type Store interface {
	UserRepository
	MovieRepository
	RatingRepository
	MovieListRepository
	ResetTokenRepository
}
