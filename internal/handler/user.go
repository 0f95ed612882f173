package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/repository"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

type UserHandler struct {
	users   *service.UserService
	ratings *service.RatingService
	lists   *service.ListService
	ser     *serialize.Serializer
	logger  *slog.Logger
}

func NewUserHandler(
	users *service.UserService,
	ratings *service.RatingService,
	lists *service.ListService,
	ser *serialize.Serializer,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{users: users, ratings: ratings, lists: lists, ser: ser, logger: logger}
}

// profileRequest is the JSON shape of a profile. Streaming flags use the
// same names the serializer writes.
type profileRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Password   string  `json:"password,omitempty"`
	Phone      *string `json:"phone"`
	Age        *int    `json:"age"`
	Gender     *string `json:"gender"`
	Location   *string `json:"location"`
	Netflix    bool    `json:"netflix"`
	PrimeVideo bool    `json:"primeVideo"`
	DisneyPlus bool    `json:"disneyPlus"`
	Hulu       bool    `json:"hulu"`
	HBOMax     bool    `json:"hboMax"`
	AppleTV    bool    `json:"appleTv"`
}

func (p *profileRequest) profile() service.Profile {
	return service.Profile{
		Name:     p.Name,
		Email:    p.Email,
		Phone:    p.Phone,
		Age:      p.Age,
		Gender:   p.Gender,
		Location: p.Location,
		StreamingPrefs: model.StreamingPrefs{
			Netflix:    p.Netflix,
			PrimeVideo: p.PrimeVideo,
			DisneyPlus: p.DisneyPlus,
			Hulu:       p.Hulu,
			HBOMax:     p.HBOMax,
			AppleTV:    p.AppleTV,
		},
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.users.Register(r.Context(), req.profile(), req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusCreated, u)
}

// HandleList pages through all accounts. Admin only.
//
// HTTP: GET /api/users?limit=&offset=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, users)
}

// parseInclude turns "ratings,items,movies" into a repository.Include.
// "movies" expands the movie of every rating and list item that is loaded.
func parseInclude(raw string) (repository.Include, error) {
	var inc repository.Include
	movies := false
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "ratings":
			inc.Ratings = true
		case "lists":
			inc.Lists = true
		case "items":
			inc.Lists = true
			inc.ListItems = true
		case "movies":
			movies = true
		default:
			return repository.Include{}, apperror.ValidationFailed("include", "unknown include "+strings.TrimSpace(part))
		}
	}
	inc.RatingMovies = movies && inc.Ratings
	inc.ItemMovies = movies && inc.ListItems
	return inc, nil
}

// HandleGet returns a user with the requested relationships.
//
// HTTP: GET /api/users/{id}?include=ratings,lists,items,movies
//
// Only the user themself or an admin can request relationships, which
// include private lists, or see contact details. Everyone else gets id and
// name.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	inc, err := parseInclude(r.URL.Query().Get("include"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	if inc != (repository.Include{}) && caller.UserID != id && !caller.IsAdmin() {
		writeError(w, h.logger, apperror.Forbidden("relationships are only visible to their owner"))
		return
	}

	u, err := h.users.Graph(r.Context(), id, inc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ser := h.ser
	if caller.UserID != id && !caller.IsAdmin() {
		ser = h.ser.Public()
	}
	writeDoc(w, r, h.logger, ser, http.StatusOK, u)
}

// HandleMe returns the caller's own profile.
//
// HTTP: GET /api/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	u, err := h.users.Get(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, u)
}

// HandleUpdateMe replaces the caller's profile.
//
// HTTP: PUT /api/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Password != "" {
		writeError(w, h.logger, apperror.ValidationFailed("password", "use the password reset flow to change passwords"))
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), caller, caller.UserID, req.profile())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, u)
}

// HandleDeleteMe deletes the caller's account and everything it owns.
//
// HTTP: DELETE /api/me
func (h *UserHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.users.Delete(r.Context(), caller, caller.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMyRatings lists the caller's ratings, newest first.
//
// HTTP: GET /api/me/ratings?limit=&offset=
func (h *UserHandler) HandleMyRatings(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ratings, err := h.ratings.ByUser(r.Context(), caller.UserID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, ratings)
}

// HandleUserLists lists a user's movie lists; other callers see only the
// public ones.
//
// HTTP: GET /api/users/{id}/lists
func (h *UserHandler) HandleUserLists(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	lists, err := h.lists.OfUser(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, lists)
}
