package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/model"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

// RecommendHandler serves recommendations for the signed-in user.
type RecommendHandler struct {
	catalog *service.CatalogService
	ser     *serialize.Serializer
	logger  *slog.Logger
}

func NewRecommendHandler(catalog *service.CatalogService, ser *serialize.Serializer, logger *slog.Logger) *RecommendHandler {
	return &RecommendHandler{catalog: catalog, ser: ser, logger: logger}
}

// movies serializes one section. The movies carry no references, so each
// section is its own document.
func (h *RecommendHandler) movies(ms []*model.Movie) (any, error) {
	doc, err := h.ser.Serialize(ms)
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

// HandleGet returns every section.
//
// HTTP: GET /api/recommendations
// Response: {"collaborative": [...], "contentBased": [...], "genres": {"dramas": [...]}}
func (h *RecommendHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	recs, err := h.catalog.Recommendations(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := map[string]any{}
	if out["collaborative"], err = h.movies(recs.Collaborative); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if out["contentBased"], err = h.movies(recs.ContentBased); err != nil {
		writeError(w, h.logger, err)
		return
	}
	genres := make(map[string]any, len(recs.Genres))
	for name, ms := range recs.Genres {
		if genres[name], err = h.movies(ms); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	out["genres"] = genres

	writeDocument(w, r, h.logger, http.StatusOK, &serialize.Document{Value: out})
}

// HandleMore returns one page of a section. No movie on it appeared on an
// earlier page of the same section.
//
// HTTP: GET /api/recommendations/more?section=collaborative&page=2&limit=10
func (h *RecommendHandler) HandleMore(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ms, err := h.catalog.MoreRecommendations(r.Context(), caller.UserID, r.URL.Query().Get("section"), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDoc(w, r, h.logger, h.ser, http.StatusOK, ms)
}
