package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/cache"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/recommend"
	"github.com/sakif/moviecatalog/internal/repository"
)

// MaxRecommendationPage bounds how far MoreRecommendations walks. Each page
// before the requested one is fetched to keep the pages disjoint.
const MaxRecommendationPage = 20

// Recommender is the part of recommend.Client the catalog uses.
type Recommender interface {
	Get(ctx context.Context, userID int64) (*recommend.Result, error)
	recommend.PageSource
}

// CatalogService serves movies. Reads go through the movie cache; writes
// (import and delete) invalidate it.
type CatalogService struct {
	movies      repository.MovieRepository
	ratings     repository.RatingRepository
	cache       cache.MovieCache
	recommender Recommender
	logger      *slog.Logger
}

// NewCatalogService wires the catalog. mc may be cache.Nop{} and rec may be
// nil when no recommendation service is configured.
func NewCatalogService(
	movies repository.MovieRepository,
	ratings repository.RatingRepository,
	mc cache.MovieCache,
	rec Recommender,
	logger *slog.Logger,
) *CatalogService {
	if mc == nil {
		mc = cache.Nop{}
	}
	return &CatalogService{movies: movies, ratings: ratings, cache: mc, recommender: rec, logger: logger}
}

// GetMovie looks the id up exactly as given.
func (s *CatalogService) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "movie id is required")
	}

	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("movie cache read failed", slog.String("movieID", id), slog.String("error", err.Error()))
	}

	m, err = s.movies.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.Warn("movie cache write failed", slog.String("movieID", id), slog.String("error", err.Error()))
	}
	return m, nil
}

// ListMovies pages through the catalog. genre may be a column name
// ("scifi_fantasy") or a display name ("Sci-Fi & Fantasy"); empty means all.
func (s *CatalogService) ListMovies(ctx context.Context, genre string, limit, offset int) ([]model.Movie, error) {
	f := repository.MovieFilter{ListOptions: repository.ListOptions{Limit: limit, Offset: offset}.Normalize()}

	if genre = strings.TrimSpace(genre); genre != "" {
		g, ok := model.ParseGenre(genre)
		if !ok {
			return nil, apperror.ValidationFailed("genre", fmt.Sprintf("unknown genre %q", genre))
		}
		f.Genre = &g
	}
	return s.movies.ListMovies(ctx, f)
}

// ImportMovie inserts or refreshes a catalog row. Existing ratings and list
// items keep pointing at it.
func (s *CatalogService) ImportMovie(ctx context.Context, m *model.Movie) error {
	if m.ID == "" {
		return apperror.ValidationFailed("id", "movie id is required")
	}
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return apperror.ValidationFailed("title", "movie title is required")
	}

	if err := s.movies.UpsertMovie(ctx, m); err != nil {
		return fmt.Errorf("service/catalog: importing movie %s: %w", m.ID, err)
	}
	s.invalidate(ctx, m.ID)
	return nil
}

// DeleteMovie is admin-only. The store removes the movie's ratings and list
// items in the same transaction.
func (s *CatalogService) DeleteMovie(ctx context.Context, caller auth.Identity, id string) error {
	if !caller.IsAdmin() {
		return apperror.Forbidden("only administrators can delete movies")
	}
	if err := s.movies.DeleteMovie(ctx, id); err != nil {
		return fmt.Errorf("service/catalog: deleting movie %s: %w", id, err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("movie deleted", slog.String("movieID", id), slog.Int64("by", caller.UserID))
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("movie cache invalidation failed", slog.String("movieID", id), slog.String("error", err.Error()))
	}
}

// Stats returns the number and average of a movie's ratings.
func (s *CatalogService) Stats(ctx context.Context, movieID string) (*model.RatingStats, error) {
	return s.ratings.MovieRatingStats(ctx, movieID)
}

// Recommendations is a recommend.Result with the ids resolved to movies.
// Ids the catalog does not know are dropped.
type Recommendations struct {
	Collaborative []*model.Movie
	ContentBased  []*model.Movie
	Genres        map[string][]*model.Movie
}

// Recommendations fetches every section for the user and resolves all ids in
// one store query.
func (s *CatalogService) Recommendations(ctx context.Context, userID int64) (*Recommendations, error) {
	if s.recommender == nil {
		return nil, fmt.Errorf("service/catalog: %w", recommend.ErrUnavailable)
	}

	res, err := s.recommender.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: recommendations for user %d: %w", userID, err)
	}

	all := append(append([]string{}, res.Collaborative...), res.ContentBased...)
	for _, ids := range res.Genres {
		all = append(all, ids...)
	}
	byID, err := s.resolve(ctx, all)
	if err != nil {
		return nil, err
	}

	out := &Recommendations{
		Collaborative: pick(byID, res.Collaborative),
		ContentBased:  pick(byID, res.ContentBased),
		Genres:        make(map[string][]*model.Movie, len(res.Genres)),
	}
	for name, ids := range res.Genres {
		out.Genres[name] = pick(byID, ids)
	}
	return out, nil
}

// MoreRecommendations returns one page of a section. Earlier pages are walked
// first so nothing on this page appeared on an earlier one.
func (s *CatalogService) MoreRecommendations(ctx context.Context, userID int64, section string, page, limit int) ([]*model.Movie, error) {
	if s.recommender == nil {
		return nil, fmt.Errorf("service/catalog: %w", recommend.ErrUnavailable)
	}
	if section == "" {
		return nil, apperror.ValidationFailed("section", "section is required")
	}
	if page < 1 || page > MaxRecommendationPage {
		return nil, apperror.ValidationFailed("page", fmt.Sprintf("page must be between 1 and %d", MaxRecommendationPage))
	}
	limit = repository.ListOptions{Limit: limit}.Normalize().Limit

	pager := recommend.NewPager(s.recommender, userID, section, limit)
	var ids []string
	for pager.Page() < page {
		next, err := pager.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("service/catalog: %s page %d for user %d: %w", section, pager.Page(), userID, err)
		}
		if next == nil {
			return []*model.Movie{}, nil
		}
		ids = next
	}

	byID, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	return pick(byID, ids), nil
}

func (s *CatalogService) resolve(ctx context.Context, ids []string) (map[string]*model.Movie, error) {
	movies, err := s.movies.GetMoviesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: resolving movie ids: %w", err)
	}
	byID := make(map[string]*model.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}
	return byID, nil
}

// pick keeps the recommender's order and drops unknown ids.
func pick(byID map[string]*model.Movie, ids []string) []*model.Movie {
	out := make([]*model.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
