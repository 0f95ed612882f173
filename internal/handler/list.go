package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

// ListHandler exposes movie lists. Visibility rules live in
// service.ListService; this layer only decodes and encodes.
type ListHandler struct {
	lists  *service.ListService
	ser    *serialize.Serializer
	logger *slog.Logger
}

func NewListHandler(lists *service.ListService, ser *serialize.Serializer, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: lists, ser: ser, logger: logger}
}

type listRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsPublic    bool    `json:"isPublic"`
}

func (req listRequest) input() service.ListInput {
	return service.ListInput{Name: req.Name, Description: req.Description, IsPublic: req.IsPublic}
}

// HandleCreate creates a list owned by the caller.
//
// HTTP: POST /api/lists
func (h *ListHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var req listRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	l, err := h.lists.Create(r.Context(), caller, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusCreated, l)
}

// HandleGet returns a list with its items and their movies.
//
// HTTP: GET /api/lists/{id}
func (h *ListHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	l, err := h.lists.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, l)
}

// HandleUpdate replaces name, description and visibility.
//
// HTTP: PUT /api/lists/{id}
func (h *ListHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	var req listRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	l, err := h.lists.Update(r.Context(), caller, id, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, l)
}

// HandleDelete deletes a list and its items.
//
// HTTP: DELETE /api/lists/{id}
func (h *ListHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	if err := h.lists.Delete(r.Context(), caller, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	MovieID string `json:"movieId"`
}

// HandleAddItem appends a movie to a list.
//
// HTTP: POST /api/lists/{id}/items
// Body: {"movieId": "s8807"}
func (h *ListHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.lists.AddItem(r.Context(), caller, id, req.MovieID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusCreated, item)
}

// HandleRemoveItem takes a movie off a list.
//
// HTTP: DELETE /api/lists/{id}/items/{movieId}
func (h *ListHandler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())

	if err := h.lists.RemoveItem(r.Context(), caller, id, chi.URLParam(r, "movieId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
