package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// cascadeStep deletes one kind of dependent row. Every query takes the parent
// key as its only argument.
type cascadeStep struct {
	what  string
	query string
}

// Children are always removed before their parents. The last step of each
// cascade removes the root row itself, and runCascade returns how many rows
// it deleted so the caller can report NotFound.
var (
	userCascade = []cascadeStep{
		{"reset tokens", `DELETE FROM password_reset_tokens WHERE user_id = ?`},
		{"ratings", `DELETE FROM ratings WHERE user_id = ?`},
		{"list items", `DELETE FROM movie_list_items WHERE list_id IN (SELECT id FROM movie_lists WHERE user_id = ?)`},
		{"movie lists", `DELETE FROM movie_lists WHERE user_id = ?`},
		{"user", `DELETE FROM users WHERE id = ?`},
	}

	movieCascade = []cascadeStep{
		{"ratings", `DELETE FROM ratings WHERE movie_id = ?`},
		{"list items", `DELETE FROM movie_list_items WHERE movie_id = ?`},
		{"movie", `DELETE FROM movies WHERE id = ?`},
	}

	movieListCascade = []cascadeStep{
		{"list items", `DELETE FROM movie_list_items WHERE list_id = ?`},
		{"movie list", `DELETE FROM movie_lists WHERE id = ?`},
	}
)

// runCascade executes the steps in order inside tx. Any failure aborts the
// cascade; withTx then rolls back the steps that already ran.
func runCascade(ctx context.Context, tx *sqlx.Tx, steps []cascadeStep, key any) (int64, error) {
	var last int64
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, tx.Rebind(step.query), key)
		if err != nil {
			return 0, fmt.Errorf("sqldb: deleting %s of %v: %w", step.what, key, err)
		}
		if last, err = rowsAffected(res); err != nil {
			return 0, err
		}
	}
	return last, nil
}
