package model

import "time"

// MaxListNameLength bounds movie_lists.name.
const MaxListNameLength = 100

// MovieList is a user-curated collection of movies.
// It belongs to exactly one user and is deleted with them.
type MovieList struct {
	ID          int64     `json:"id"                    db:"id"`
	UserID      int64     `json:"userId"                db:"user_id"`
	Name        string    `json:"name"                  db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt"             db:"created_at"`
	IsPublic    bool      `json:"isPublic"              db:"is_public"`

	// Navigation (populated only by graph loaders).
	User  *User            `json:"-" db:"-"`
	Items []*MovieListItem `json:"-" db:"-"`
}

// MovieListItem places a movie on a list. (ListID, MovieID) is the key,
// so a movie appears on a given list at most once.
type MovieListItem struct {
	ListID    int64     `json:"listId"    db:"list_id"`
	MovieID   string    `json:"movieId"   db:"movie_id"`
	DateAdded time.Time `json:"dateAdded" db:"date_added"`

	// Navigation (populated only by graph loaders).
	List  *MovieList `json:"-" db:"-"`
	Movie *Movie     `json:"-" db:"-"`
}
