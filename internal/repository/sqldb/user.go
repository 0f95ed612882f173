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

const userColumns = `id, name, email, phone, age, gender, location,
	netflix, prime_video, disney_plus, hulu, hbo_max, apple_tv, password, role`

// CreateUser inserts a user and sets u.ID.
//
// The email is normalized before the insert, and the UNIQUE index on
// users.email does the duplicate check. Checking first with a SELECT would
// leave a window where two concurrent registrations both pass.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(
		`INSERT INTO users (name, email, phone, age, gender, location,
			netflix, prime_video, disney_plus, hulu, hbo_max, apple_tv, password, role)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		u.Name,
		u.Email,
		u.Phone,
		u.Age,
		u.Gender,
		u.Location,
		u.Netflix,
		u.PrimeVideo,
		u.DisneyPlus,
		u.Hulu,
		u.HBOMax,
		u.AppleTV,
		u.PasswordHash,
		string(u.Role),
	).Scan(&u.ID)
	if err != nil {
		if classify(err) == uniqueConstraint {
			return apperror.Conflict("user", "email", u.Email)
		}
		return fmt.Errorf("sqldb: inserting user %s: %w", u.Email, err)
	}
	return nil
}

// GetUser returns apperror.ErrNotFound if no user has that id.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return getUser(ctx, db.conn, id)
}

func getUser(ctx context.Context, q sqlx.ExtContext, id int64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u,
		q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqldb: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail looks the address up case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	var u model.User
	err := sqlx.GetContext(ctx, db.conn, &u,
		db.conn.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("user not found with email %s", email),
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("sqldb: getting user by email: %w", err)
	}
	return &u, nil
}

// UpdateUser rewrites the profile columns. The password and role are not
// touched here; see UpdatePassword.
func (db *DB) UpdateUser(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)

	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`UPDATE users SET name = ?, email = ?, phone = ?, age = ?, gender = ?, location = ?,
			netflix = ?, prime_video = ?, disney_plus = ?, hulu = ?, hbo_max = ?, apple_tv = ?
		 WHERE id = ?`),
		u.Name,
		u.Email,
		u.Phone,
		u.Age,
		u.Gender,
		u.Location,
		u.Netflix,
		u.PrimeVideo,
		u.DisneyPlus,
		u.Hulu,
		u.HBOMax,
		u.AppleTV,
		u.ID,
	)
	if err != nil {
		if classify(err) == uniqueConstraint {
			return apperror.Conflict("user", "email", u.Email)
		}
		return fmt.Errorf("sqldb: updating user %d: %w", u.ID, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(u.ID, 10))
	}
	return nil
}

// UpdatePassword stores a new bcrypt hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return updatePassword(ctx, db.conn, id, hash)
}

func updatePassword(ctx context.Context, q sqlx.ExtContext, id int64, hash string) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET password = ? WHERE id = ?`), hash, id)
	if err != nil {
		return fmt.Errorf("sqldb: updating password of user %d: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// DeleteUser removes the user together with their reset tokens, ratings,
// lists and the items on those lists. It is all-or-nothing.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := runCascade(ctx, tx, userCascade, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil
	})
}

// ListUsers returns one page of users ordered by id.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	opts = opts.Normalize()

	users := []model.User{}
	err := sqlx.SelectContext(ctx, db.conn, &users,
		db.conn.Rebind(`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`),
		opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing users: %w", err)
	}
	return users, nil
}
