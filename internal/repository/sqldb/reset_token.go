package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/model"
)

const resetTokenColumns = `id, user_id, token, expiry_date, used`

// resetTokenRow is the stored shape of a token. expiry_date is unix millis.
type resetTokenRow struct {
	ID         int64  `db:"id"`
	UserID     int64  `db:"user_id"`
	Token      string `db:"token"`
	ExpiryDate int64  `db:"expiry_date"`
	Used       bool   `db:"used"`
}

func (r *resetTokenRow) toModel() *model.PasswordResetToken {
	return &model.PasswordResetToken{
		ID:         r.ID,
		UserID:     r.UserID,
		Token:      r.Token,
		ExpiryDate: time.UnixMilli(r.ExpiryDate).UTC(),
		Used:       r.Used,
	}
}

// IssueResetToken stores a fresh token and retires the user's older ones.
//
// Both happen in one transaction, so after it commits the new token is the
// only live one the user has. Retired tokens stay in the table flagged used.
func (db *DB) IssueResetToken(ctx context.Context, t *model.PasswordResetToken) error {
	// Keep the in-memory copy at the stored precision.
	t.ExpiryDate = time.UnixMilli(t.ExpiryDate.UnixMilli()).UTC()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE password_reset_tokens SET used = ? WHERE user_id = ? AND used = ?`),
			true, t.UserID, false)
		if err != nil {
			return fmt.Errorf("sqldb: retiring reset tokens of user %d: %w", t.UserID, err)
		}

		return tx.QueryRowxContext(ctx, tx.Rebind(
			`INSERT INTO password_reset_tokens (user_id, token, expiry_date, used)
			 VALUES (?, ?, ?, ?)
			 RETURNING id`),
			t.UserID, t.Token, t.ExpiryDate.UnixMilli(), t.Used,
		).Scan(&t.ID)
	})
	if err != nil {
		switch classify(err) {
		case foreignKeyConstraint:
			return db.referenceError(ctx, err, parentRef{"user", tableUsers, t.UserID})
		case uniqueConstraint:
			// never echo the token value
			return apperror.Conflict("reset token", "token", "(redacted)")
		}
		return fmt.Errorf("sqldb: issuing reset token for user %d: %w", t.UserID, err)
	}
	return nil
}

// GetResetToken returns apperror.ErrTokenNotFound for an unknown value.
func (db *DB) GetResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	row, err := getResetTokenRow(ctx, db.conn, token)
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func getResetTokenRow(ctx context.Context, q sqlx.ExtContext, token string) (*resetTokenRow, error) {
	var row resetTokenRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(
		`SELECT `+resetTokenColumns+` FROM password_reset_tokens WHERE token = ?`), token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.TokenNotFound()
		}
		return nil, fmt.Errorf("sqldb: getting reset token: %w", err)
	}
	return &row, nil
}

// ConsumeResetToken marks a live token used and returns it.
//
// THE CHECK AND THE WRITE ARE ONE STATEMENT:
// "UPDATE ... WHERE used = false AND expiry_date >= now" only matches a live
// token, and the database serializes writers on the row. Of two concurrent
// callers exactly one sees the row come back; the other gets
// ErrTokenAlreadyUsed.
func (db *DB) ConsumeResetToken(ctx context.Context, token string, now time.Time) (*model.PasswordResetToken, error) {
	row, err := consumeResetToken(ctx, db.conn, token, now)
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func consumeResetToken(ctx context.Context, q sqlx.ExtContext, token string, now time.Time) (*resetTokenRow, error) {
	var row resetTokenRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(
		`UPDATE password_reset_tokens SET used = ?
		 WHERE token = ? AND used = ? AND expiry_date >= ?
		 RETURNING `+resetTokenColumns),
		true, token, false, now.UnixMilli())
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqldb: consuming reset token: %w", err)
	}

	// Nothing matched; find out why.
	current, err := getResetTokenRow(ctx, q, token)
	if err != nil {
		return nil, err
	}
	if current.toModel().Expired(now) {
		return nil, apperror.TokenExpired()
	}
	return nil, apperror.TokenAlreadyUsed()
}

// ResetPassword consumes the token and stores the new password hash of its
// user in one transaction. If the password write fails the token stays live.
func (db *DB) ResetPassword(ctx context.Context, token string, now time.Time, hash string) (*model.PasswordResetToken, error) {
	var row *resetTokenRow
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if row, err = consumeResetToken(ctx, tx, token, now); err != nil {
			return err
		}
		return updatePassword(ctx, tx, row.UserID, hash)
	})
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// PurgeResetTokens deletes tokens that expired before the cutoff, used or not.
func (db *DB) PurgeResetTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`DELETE FROM password_reset_tokens WHERE expiry_date < ?`), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqldb: purging reset tokens: %w", err)
	}
	return rowsAffected(res)
}
