package model

// Movie is a catalog title.
//
// The ID is supplied by the catalog (e.g. "s8807") and is treated as an opaque
// string everywhere: the recommendation service returns these exact values and
// they are looked up without trimming or case changes.
//
// Movies are written by the catalog import and are effectively read-only after
// that. Ratings and list items reference a movie but do not own it.
type Movie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Type        *string `json:"type,omitempty"` // "Movie" or "TV Show"
	Director    *string `json:"director,omitempty"`
	Cast        *string `json:"cast,omitempty"`
	Country     *string `json:"country,omitempty"`
	ReleaseYear *int    `json:"releaseYear,omitempty"`
	Rating      *string `json:"rating,omitempty"` // content rating, e.g. "PG-13"
	Duration    *string `json:"duration,omitempty"`
	Description *string `json:"description,omitempty"`
	PosterURL   *string `json:"posterUrl,omitempty"`
	Genres      Genres  `json:"-"`

	// Navigation (populated only by graph loaders).
	Ratings []*Rating `json:"-"`
}

// RatingStats summarises the ratings of one movie.
type RatingStats struct {
	MovieID string  `json:"movieId" db:"movie_id"`
	Count   int     `json:"count"   db:"count"`
	Average float64 `json:"average" db:"average"`
}
