// Package service contains the business rules of the catalog.
//
// THE LAYERS:
//
//	Handler (HTTP)       → parses requests, writes responses
//	Service (this layer) → validates input, checks who may do what
//	Repository (sqldb)   → integrity rules, transactions, cascades
//
// Services take repository interfaces, not *sqldb.DB, so their tests run
// against the in-memory fakes in fakes_test.go. They return apperror kinds
// and never HTTP status codes; the handler package does that mapping.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
)

// Profile limits.
const (
	MaxNameLength  = 100
	MaxEmailLength = 254
	MaxAge         = 150
)

// UserService manages accounts and their profiles.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// Profile is the user-editable part of an account. It replaces the stored
// values as a whole, so a nil optional field clears it.
type Profile struct {
	Name     string
	Email    string
	Phone    *string
	Age      *int
	Gender   *string
	Location *string
	model.StreamingPrefs
}

func (p *Profile) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = model.NormalizeEmail(p.Email)

	if p.Name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > MaxAge) {
		return apperror.ValidationFailed("age", fmt.Sprintf("age must be between 0 and %d", MaxAge))
	}
	p.Phone = trimOpt(p.Phone)
	p.Gender = trimOpt(p.Gender)
	p.Location = trimOpt(p.Location)
	return nil
}

func (p *Profile) applyTo(u *model.User) {
	u.Name = p.Name
	u.Email = p.Email
	u.Phone = p.Phone
	u.Age = p.Age
	u.Gender = p.Gender
	u.Location = p.Location
	u.StreamingPrefs = p.StreamingPrefs
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return apperror.ValidationFailed("email", fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email is not a valid address")
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < auth.MinPasswordLength {
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(pw) > auth.MaxPasswordLength {
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordLength))
	}
	return nil
}

// trimOpt trims an optional string and turns a blank one into nil.
func trimOpt(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// Register creates a USER account. A taken email (in any letter case) is a
// Conflict reported by the store's unique index.
func (s *UserService) Register(ctx context.Context, p Profile, password string) (*model.User, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	u := &model.User{PasswordHash: hash, Role: model.RoleUser}
	p.applyTo(u)

	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("service/user: registering %s: %w", p.Email, err)
	}

	s.logger.Info("user registered", slog.Int64("userID", u.ID))
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUser(ctx, id)
}

// Graph loads the user with the relationships named in inc.
func (s *UserService) Graph(ctx context.Context, id int64, inc repository.Include) (*model.User, error) {
	return s.users.LoadUserGraph(ctx, id, inc)
}

// UpdateProfile replaces the profile of the caller's own account. Role and
// password are not touched.
func (s *UserService) UpdateProfile(ctx context.Context, caller auth.Identity, id int64, p Profile) (*model.User, error) {
	if err := mayManageUser(caller, id); err != nil {
		return nil, err
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}

	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	p.applyTo(u)

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("service/user: updating user %d: %w", id, err)
	}
	return u, nil
}

// Delete removes the account together with its ratings, lists, list items
// and reset tokens. The store does all of it in one transaction.
func (s *UserService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	if err := mayManageUser(caller, id); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("service/user: deleting user %d: %w", id, err)
	}

	s.logger.Info("user deleted",
		slog.Int64("userID", id),
		slog.Int64("by", caller.UserID),
	)
	return nil
}

// List pages through all accounts. Admin only.
func (s *UserService) List(ctx context.Context, caller auth.Identity, limit, offset int) ([]model.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("only administrators can list users")
	}
	return s.users.ListUsers(ctx, repository.ListOptions{Limit: limit, Offset: offset}.Normalize())
}

// mayManageUser allows a user to act on their own account and an admin on any.
func mayManageUser(caller auth.Identity, id int64) error {
	if caller.UserID == id || caller.IsAdmin() {
		return nil
	}
	return apperror.Forbidden("you may only manage your own account (user " + strconv.FormatInt(id, 10) + ")")
}
