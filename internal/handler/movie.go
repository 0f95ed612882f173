package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

// MovieHandler serves the catalog and the caller's ratings of it.
type MovieHandler struct {
	catalog *service.CatalogService
	ratings *service.RatingService
	ser     *serialize.Serializer
	logger  *slog.Logger
}

func NewMovieHandler(catalog *service.CatalogService, ratings *service.RatingService, ser *serialize.Serializer, logger *slog.Logger) *MovieHandler {
	return &MovieHandler{catalog: catalog, ratings: ratings, ser: ser, logger: logger}
}

// pageParams reads ?limit= and ?offset=. Zero limit means the default page size.
func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// HandleList pages through the catalog.
//
// HTTP: GET /api/movies?genre=dramas&limit=20&offset=0
func (h *MovieHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	movies, err := h.catalog.ListMovies(r.Context(), r.URL.Query().Get("genre"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, movies)
}

// HandleGet returns one movie.
//
// HTTP: GET /api/movies/{id}
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.GetMovie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, m)
}

// HandleStats returns the rating count and average of a movie.
//
// HTTP: GET /api/movies/{id}/stats
func (h *MovieHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, stats)
}

// HandleRatings lists a movie's ratings, newest first.
//
// HTTP: GET /api/movies/{id}/ratings?limit=&offset=
func (h *MovieHandler) HandleRatings(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ratings, err := h.ratings.ByMovie(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, ratings)
}

// movieRequest is the import payload. Genres maps a genre column name to its
// flag; genres that are left out stay unclassified.
type movieRequest struct {
	Title       string          `json:"title"`
	Type        *string         `json:"type"`
	Director    *string         `json:"director"`
	Cast        *string         `json:"cast"`
	Country     *string         `json:"country"`
	ReleaseYear *int            `json:"releaseYear"`
	Rating      *string         `json:"rating"`
	Duration    *string         `json:"duration"`
	Description *string         `json:"description"`
	PosterURL   *string         `json:"posterUrl"`
	Genres      map[string]bool `json:"genres"`
}

func (req *movieRequest) movie(id string) (*model.Movie, error) {
	m := &model.Movie{
		ID:          id,
		Title:       req.Title,
		Type:        req.Type,
		Director:    req.Director,
		Cast:        req.Cast,
		Country:     req.Country,
		ReleaseYear: req.ReleaseYear,
		Rating:      req.Rating,
		Duration:    req.Duration,
		Description: req.Description,
		PosterURL:   req.PosterURL,
	}
	for name, in := range req.Genres {
		g, ok := model.ParseGenre(name)
		if !ok {
			return nil, apperror.ValidationFailed("genres", "unknown genre "+name)
		}
		m.Genres.Set(g, in)
	}
	return m, nil
}

// HandleImport inserts or replaces a catalog entry. Admin only.
//
// HTTP: PUT /api/movies/{id}
func (h *MovieHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if !caller.IsAdmin() {
		writeError(w, h.logger, apperror.Forbidden("only administrators can import movies"))
		return
	}

	var req movieRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	m, err := req.movie(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.catalog.ImportMovie(r.Context(), m); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, m)
}

// HandleDelete removes a movie with its ratings and list entries. Admin only.
//
// HTTP: DELETE /api/movies/{id}
func (h *MovieHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.catalog.DeleteMovie(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// HandleRate creates or replaces the caller's rating.
//
// HTTP: PUT /api/movies/{id}/rating
// Body: {"rating": 4}
func (h *MovieHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rating, err := h.ratings.Rate(r.Context(), caller.UserID, chi.URLParam(r, "id"), req.Rating)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, rating)
}

// HandleMyRating returns the caller's rating of a movie.
//
// HTTP: GET /api/movies/{id}/rating
func (h *MovieHandler) HandleMyRating(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	rating, err := h.ratings.Get(r.Context(), caller.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, rating)
}

// HandleUnrate deletes the caller's rating.
//
// HTTP: DELETE /api/movies/{id}/rating
func (h *MovieHandler) HandleUnrate(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.ratings.Delete(r.Context(), caller.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
