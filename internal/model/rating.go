package model

import "time"

// Scores are whole stars.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating is one user's score for one movie.
//
// The primary key is the pair (UserID, MovieID): a user rates a movie at most
// once. Changing a score means updating that row, never inserting a second one.
type Rating struct {
	UserID  int64      `json:"userId"            db:"user_id"`
	MovieID string     `json:"movieId"           db:"movie_id"`
	Value   int        `json:"rating"            db:"rating"`
	RatedAt *time.Time `json:"ratedAt,omitempty" db:"rated_at"`

	// Navigation (populated only by graph loaders).
	User  *User  `json:"-" db:"-"`
	Movie *Movie `json:"-" db:"-"`
}
