package handler

// RESPONSE HELPERS:
// Every handler answers through these functions so the API has one error
// shape and one way of encoding entities.
//
// ENTITIES GO THROUGH THE SERIALIZER:
// Loaded graphs point back at themselves (a user's ratings point at the
// user), so entities are never handed to encoding/json directly. writeDoc
// runs them through serialize.Serializer, which cuts cycles and bounds depth,
// and then encodes the resulting tree as JSON or, when the client sends
// "Accept: application/msgpack", as MessagePack.
//
// CONSISTENT ERROR FORMAT:
//   {"error": "not_found", "message": "movie not found with id s1"}
// plus "field" for validation errors.

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/recommend"
	"github.com/sakif/moviecatalog/internal/serialize"
)

// maxBodyBytes caps request bodies; every payload of this API is small.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends a plain JSON value. Use it only for values without entity
// references; entities go through writeDoc.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", serialize.ContentTypeJSON)
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// negotiate picks the response encoding from the Accept header.
func negotiate(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(mt, serialize.ContentTypeMsgPack) {
			return serialize.ContentTypeMsgPack
		}
	}
	return serialize.ContentTypeJSON
}

// writeDoc serializes roots and writes them with the negotiated encoding.
// A truncated document is still sent; the truncation is only logged.
func writeDoc(w http.ResponseWriter, r *http.Request, logger *slog.Logger, ser *serialize.Serializer, status int, roots ...any) {
	doc, err := ser.Serialize(roots...)
	if err != nil {
		writeError(w, logger, err)
		return
	}
	writeDocument(w, r, logger, status, doc)
}

func writeDocument(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, doc *serialize.Document) {
	if err := doc.Err(); err != nil {
		logger.Warn("response truncated",
			slog.String("path", r.URL.Path),
			slog.Int("elided", doc.Elided),
		)
	}

	// Encode into a buffer first so an encoding failure can still become a 500.
	var buf bytes.Buffer
	ct, err := doc.Write(&buf, negotiate(r))
	if err != nil {
		writeError(w, logger, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// statusFor maps an error kind to an HTTP status and a machine-readable type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrReferenceNotFound):
		return http.StatusNotFound, "reference_not_found"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrTokenExpired):
		return http.StatusGone, "token_expired"
	case errors.Is(err, apperror.ErrTokenNotFound):
		return http.StatusBadRequest, "token_invalid"
	case errors.Is(err, apperror.ErrTokenAlreadyUsed):
		return http.StatusBadRequest, "token_used"
	case errors.Is(err, apperror.ErrEmailMismatch):
		return http.StatusBadRequest, "email_mismatch"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, recommend.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Only *apperror.AppError messages reach the client. Anything else may carry
// SQL or driver details, so it is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, errorType := statusFor(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message, Field: appErr.Field})
		return
	}

	if status == http.StatusServiceUnavailable {
		logger.Warn("dependency unavailable", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: "a dependency is unavailable, try again later"})
		return
	}

	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON body into dst and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

// pathInt64 reads a numeric URL parameter.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
