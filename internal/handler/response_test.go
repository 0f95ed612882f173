package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/recommend"
	"github.com/sakif/moviecatalog/internal/repository"
	"github.com/sakif/moviecatalog/internal/serialize"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		errorKey string
	}{
		{"validation", apperror.ValidationFailed("name", "required"), http.StatusBadRequest, "validation_error"},
		{"conflict", apperror.Conflict("user", "email", "a@example.com"), http.StatusConflict, "conflict"},
		{"reference", apperror.ReferenceNotFound("movie", "s1"), http.StatusNotFound, "reference_not_found"},
		{"not found", apperror.NotFound("movie", "s1"), http.StatusNotFound, "not_found"},
		{"token expired", apperror.TokenExpired(), http.StatusGone, "token_expired"},
		{"token unknown", apperror.TokenNotFound(), http.StatusBadRequest, "token_invalid"},
		{"token used", apperror.TokenAlreadyUsed(), http.StatusBadRequest, "token_used"},
		{"email mismatch", apperror.EmailMismatch(), http.StatusBadRequest, "email_mismatch"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{"unauthorized", apperror.Unauthorized("no"), http.StatusUnauthorized, "unauthorized"},
		{"recommender down", fmt.Errorf("service: %w", recommend.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"wrapped not found", fmt.Errorf("service/x: %w", apperror.NotFound("user", "3")), http.StatusNotFound, "not_found"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, key := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.errorKey, key)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discard(), errors.New("sqldb: near \"SELEC\": syntax error"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SELEC")
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestWriteError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discard(), apperror.ValidationFailed("email", "email is invalid"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation_error","message":"email is invalid","field":"email"}`, rec.Body.String())
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", serialize.ContentTypeJSON},
		{"application/json", serialize.ContentTypeJSON},
		{"application/msgpack", serialize.ContentTypeMsgPack},
		{"text/html, application/msgpack;q=0.9", serialize.ContentTypeMsgPack},
		{"*/*", serialize.ContentTypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, negotiate(r))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, decodeJSON(r, &dst))
	assert.Equal(t, "Ada", dst.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","admin":true}`))
	err := decodeJSON(r, &dst)
	assert.ErrorIs(t, err, apperror.ErrValidation, "unknown fields are rejected")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.ErrorIs(t, decodeJSON(r, &dst), apperror.ErrValidation)
}

func TestParseInclude(t *testing.T) {
	tests := []struct {
		raw     string
		want    repository.Include
		wantErr bool
	}{
		{raw: "", want: repository.Include{}},
		{raw: "ratings", want: repository.Include{Ratings: true}},
		{raw: "movies,ratings", want: repository.Include{Ratings: true, RatingMovies: true}},
		{raw: "items", want: repository.Include{Lists: true, ListItems: true}},
		{raw: "ratings, lists, items, movies", want: repository.Include{
			Ratings: true, RatingMovies: true, Lists: true, ListItems: true, ItemMovies: true,
		}},
		{raw: "movies", want: repository.Include{}},
		{raw: "passwords", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseInclude(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
