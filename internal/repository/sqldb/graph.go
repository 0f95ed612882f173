package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
)

// GRAPH LOADING:
// The loaders fill navigation fields with one query per relationship (never
// one per row) and then stitch the results together in memory, the way a
// dataloader batches keys. Back-references are set as well, so the result
// contains cycles:
//
//	user.Ratings[i].User == user
//	list.Items[j].List   == list
//
// A relationship that was asked for is always a non-nil slice, even when it
// has no rows. A relationship that was not asked for stays nil.
//
// All reads run in one transaction so the graph is a consistent snapshot.

// LoadUserGraph loads a user plus the relationships selected by inc.
func (db *DB) LoadUserGraph(ctx context.Context, id int64, inc repository.Include) (*model.User, error) {
	if inc.ItemMovies {
		inc.ListItems = true
	}
	if inc.ListItems {
		inc.Lists = true
	}
	if inc.RatingMovies {
		inc.Ratings = true
	}

	var u *model.User
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, id); err != nil {
			return err
		}

		var movieIDs []string
		if inc.Ratings {
			if err := loadUserRatings(ctx, tx, u); err != nil {
				return err
			}
			if inc.RatingMovies {
				for _, r := range u.Ratings {
					movieIDs = append(movieIDs, r.MovieID)
				}
			}
		}

		if inc.Lists {
			lists, err := movieListsByUser(ctx, tx, u.ID)
			if err != nil {
				return err
			}
			u.Lists = make([]*model.MovieList, len(lists))
			for i := range lists {
				lists[i].User = u
				u.Lists[i] = &lists[i]
			}

			if inc.ListItems {
				if err := loadListItems(ctx, tx, u.Lists...); err != nil {
					return err
				}
				if inc.ItemMovies {
					for _, l := range u.Lists {
						for _, it := range l.Items {
							movieIDs = append(movieIDs, it.MovieID)
						}
					}
				}
			}
		}

		if len(movieIDs) == 0 {
			return nil
		}
		movies, err := moviesByID(ctx, tx, movieIDs)
		if err != nil {
			return err
		}
		if inc.RatingMovies {
			for _, r := range u.Ratings {
				r.Movie = movies[r.MovieID]
			}
		}
		if inc.ItemMovies {
			for _, l := range u.Lists {
				for _, it := range l.Items {
					it.Movie = movies[it.MovieID]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// LoadMovieListGraph loads a list with its owner and items, and the movie of
// each item when withMovies is set.
func (db *DB) LoadMovieListGraph(ctx context.Context, id int64, withMovies bool) (*model.MovieList, error) {
	var l *model.MovieList
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if l, err = getMovieList(ctx, tx, id); err != nil {
			return err
		}
		if l.User, err = getUser(ctx, tx, l.UserID); err != nil {
			return fmt.Errorf("sqldb: loading owner of list %d: %w", id, err)
		}
		if err := loadListItems(ctx, tx, l); err != nil {
			return err
		}
		if !withMovies {
			return nil
		}

		ids := make([]string, len(l.Items))
		for i, it := range l.Items {
			ids[i] = it.MovieID
		}
		movies, err := moviesByID(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, it := range l.Items {
			it.Movie = movies[it.MovieID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func loadUserRatings(ctx context.Context, q sqlx.ExtContext, u *model.User) error {
	var ratings []model.Rating
	err := sqlx.SelectContext(ctx, q, &ratings, q.Rebind(
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = ? ORDER BY rated_at DESC, movie_id`), u.ID)
	if err != nil {
		return fmt.Errorf("sqldb: loading ratings of user %d: %w", u.ID, err)
	}

	u.Ratings = make([]*model.Rating, len(ratings))
	for i := range ratings {
		ratings[i].User = u
		u.Ratings[i] = &ratings[i]
	}
	return nil
}

// loadListItems fills Items of every list with a single query.
func loadListItems(ctx context.Context, q sqlx.ExtContext, lists ...*model.MovieList) error {
	byID := make(map[int64]*model.MovieList, len(lists))
	ids := make([]int64, len(lists))
	for i, l := range lists {
		l.Items = []*model.MovieListItem{}
		byID[l.ID] = l
		ids[i] = l.ID
	}

	items, err := listItems(ctx, q, ids...)
	if err != nil {
		return err
	}
	for i := range items {
		l := byID[items[i].ListID]
		items[i].List = l
		l.Items = append(l.Items, &items[i])
	}
	return nil
}
