package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
)

// ListService manages movie lists.
//
// Private lists are invisible to everyone except their owner and admins:
// a stranger asking for one gets NotFound, not Forbidden, so list ids cannot
// be probed.
type ListService struct {
	lists  repository.MovieListRepository
	logger *slog.Logger
}

func NewListService(lists repository.MovieListRepository, logger *slog.Logger) *ListService {
	return &ListService{lists: lists, logger: logger}
}

// ListInput is what a client sends to create or update a list.
type ListInput struct {
	Name        string
	Description *string
	IsPublic    bool
}

func (in *ListInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperror.ValidationFailed("name", "list name is required")
	}
	if utf8.RuneCountInString(in.Name) > model.MaxListNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("list name must be %d characters or less", model.MaxListNameLength))
	}
	in.Description = trimOpt(in.Description)
	return nil
}

func (s *ListService) Create(ctx context.Context, caller auth.Identity, in ListInput) (*model.MovieList, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	l := &model.MovieList{
		UserID:      caller.UserID,
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
	}
	if err := s.lists.CreateMovieList(ctx, l); err != nil {
		return nil, fmt.Errorf("service/list: creating list for user %d: %w", caller.UserID, err)
	}
	return l, nil
}

// Get returns the list with its items (and their movies) loaded. caller may
// be the zero Identity for anonymous requests.
func (s *ListService) Get(ctx context.Context, caller auth.Identity, id int64) (*model.MovieList, error) {
	l, err := s.lists.LoadMovieListGraph(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !l.IsPublic && !owns(caller, l) {
		return nil, apperror.NotFound("movie list", strconv.FormatInt(id, 10))
	}
	return l, nil
}

// OfUser lists a user's lists. Other callers only see the public ones.
func (s *ListService) OfUser(ctx context.Context, caller auth.Identity, userID int64) ([]model.MovieList, error) {
	lists, err := s.lists.ListMovieListsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if caller.UserID == userID || caller.IsAdmin() {
		return lists, nil
	}

	public := make([]model.MovieList, 0, len(lists))
	for _, l := range lists {
		if l.IsPublic {
			public = append(public, l)
		}
	}
	return public, nil
}

func (s *ListService) Update(ctx context.Context, caller auth.Identity, id int64, in ListInput) (*model.MovieList, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	l, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	l.Name = in.Name
	l.Description = in.Description
	l.IsPublic = in.IsPublic
	if err := s.lists.UpdateMovieList(ctx, l); err != nil {
		return nil, fmt.Errorf("service/list: updating list %d: %w", id, err)
	}
	return l, nil
}

// Delete removes the list and its items.
func (s *ListService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.lists.DeleteMovieList(ctx, id); err != nil {
		return fmt.Errorf("service/list: deleting list %d: %w", id, err)
	}
	return nil
}

// AddItem puts a movie on the list. Adding it twice is a Conflict; an unknown
// movie is a ReferenceNotFound.
func (s *ListService) AddItem(ctx context.Context, caller auth.Identity, listID int64, movieID string) (*model.MovieListItem, error) {
	if movieID == "" {
		return nil, apperror.ValidationFailed("movieId", "movie id is required")
	}
	if _, err := s.owned(ctx, caller, listID); err != nil {
		return nil, err
	}

	item := &model.MovieListItem{ListID: listID, MovieID: movieID}
	if err := s.lists.AddListItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/list: adding %s to list %d: %w", movieID, listID, err)
	}
	return item, nil
}

func (s *ListService) RemoveItem(ctx context.Context, caller auth.Identity, listID int64, movieID string) error {
	if _, err := s.owned(ctx, caller, listID); err != nil {
		return err
	}
	if err := s.lists.RemoveListItem(ctx, listID, movieID); err != nil {
		return fmt.Errorf("service/list: removing %s from list %d: %w", movieID, listID, err)
	}
	return nil
}

// owned loads the list and checks the caller may change it. Someone else's
// private list reads as NotFound; someone else's public list as Forbidden.
func (s *ListService) owned(ctx context.Context, caller auth.Identity, id int64) (*model.MovieList, error) {
	l, err := s.lists.GetMovieList(ctx, id)
	if err != nil {
		return nil, err
	}
	if owns(caller, l) {
		return l, nil
	}
	if !l.IsPublic {
		return nil, apperror.NotFound("movie list", strconv.FormatInt(id, 10))
	}
	return nil, apperror.Forbidden("you may only change your own lists")
}

func owns(caller auth.Identity, l *model.MovieList) bool {
	return caller.UserID != 0 && (caller.UserID == l.UserID || caller.IsAdmin())
}
