package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/notify"
	"github.com/sakif/moviecatalog/internal/repository"
)

// DefaultResetTokenTTL is how long an issued reset token stays valid.
const DefaultResetTokenTTL = time.Hour

// PasswordResetService runs the reset-token life cycle:
//
//	NONE ──Issue──▶ ISSUED ──Consume──▶ CONSUMED
//	                  │
//	                  └── now > expiry ──▶ EXPIRED
//
// Issuing a new token retires every earlier unused one, so a user has at most
// one live token. Expiry is never stored as a state: it is decided by
// comparing the clock with expiry_date whenever a token is looked at.
type PasswordResetService struct {
	users     repository.UserRepository
	tokens    repository.ResetTokenRepository
	passwords *auth.PasswordService
	notifier  notify.ResetNotifier
	ttl       time.Duration
	logger    *slog.Logger

	now      func() time.Time
	newToken func() string
}

func NewPasswordResetService(
	users repository.UserRepository,
	tokens repository.ResetTokenRepository,
	passwords *auth.PasswordService,
	notifier notify.ResetNotifier,
	ttl time.Duration,
	logger *slog.Logger,
) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		notifier:  notifier,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

// IssuedToken is what Issue hands back. The token value is secret: the HTTP
// layer never returns it, it only travels through the notifier.
type IssuedToken struct {
	UserID    int64
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Issue creates a reset token for the account with this email.
//
// A failing notifier is logged and does not fail the call: the token is
// already stored, and the user can simply ask again.
func (s *PasswordResetService) Issue(ctx context.Context, email string) (*IssuedToken, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	t := &model.PasswordResetToken{
		UserID:     user.ID,
		Token:      s.newToken(),
		ExpiryDate: s.now().Add(s.ttl),
	}
	if err := s.tokens.IssueResetToken(ctx, t); err != nil {
		return nil, fmt.Errorf("service/reset: issuing token for user %d: %w", user.ID, err)
	}

	issued := &IssuedToken{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     t.Token,
		ExpiresAt: t.ExpiryDate,
	}

	notice := notify.ResetNotice{UserID: user.ID, Email: user.Email, Token: t.Token, ExpiresAt: t.ExpiryDate}
	if err := s.notifier.NotifyReset(ctx, notice); err != nil {
		s.logger.Error("reset notice not delivered",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("reset token issued",
		slog.Int64("userID", user.ID),
		slog.Time("expiresAt", t.ExpiryDate),
	)
	return issued, nil
}

// Validate checks the token without consuming it and returns its user.
//
// Checks run in a fixed order: unknown token, expired, already used, and
// finally whether email belongs to the token's user (compared case-folded).
func (s *PasswordResetService) Validate(ctx context.Context, token, email string) (*model.User, error) {
	t, err := s.tokens.GetResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	switch {
	case t.Expired(s.now()):
		return nil, apperror.TokenExpired()
	case t.Used:
		return nil, apperror.TokenAlreadyUsed()
	}

	user, err := s.users.GetUser(ctx, t.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/reset: loading user %d of token: %w", t.UserID, err)
	}
	if model.NormalizeEmail(email) != user.Email {
		return nil, apperror.EmailMismatch()
	}
	return user, nil
}

// Consume marks the token used. Of two concurrent calls exactly one
// succeeds; the other gets TokenAlreadyUsed.
func (s *PasswordResetService) Consume(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	return s.tokens.ConsumeResetToken(ctx, token, s.now())
}

// ResetPassword validates the token against email, then consumes it and
// stores the new password in one transaction.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, email, newPassword string) (*model.User, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	user, err := s.Validate(ctx, token, email)
	if err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("service/reset: hashing password: %w", err)
	}
	if _, err := s.tokens.ResetPassword(ctx, token, s.now(), hash); err != nil {
		return nil, err
	}

	s.logger.Info("password reset", slog.Int64("userID", user.ID))
	return user, nil
}

// PurgeStale deletes tokens whose expiry is more than olderThan in the past.
// It is housekeeping only; nothing depends on old rows being gone.
func (s *PasswordResetService) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.tokens.PurgeResetTokens(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("service/reset: purging tokens: %w", err)
	}
	if n > 0 {
		s.logger.Info("stale reset tokens purged", slog.Int64("count", n))
	}
	return n, nil
}
