package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/moviecatalog/internal/apperror"
	"github.com/sakif/moviecatalog/internal/service"
)

// ResetHandler drives the password reset flow:
//
//  1. POST /api/password-reset           {"email"}              → 202
//  2. POST /api/password-reset/validate  {"token","email"}      → 200 / 4xx
//  3. POST /api/password-reset/confirm   {"token","email","password"}
//
// The token only ever leaves the server through the notifier.
type ResetHandler struct {
	resets *service.PasswordResetService
	logger *slog.Logger
}

func NewResetHandler(resets *service.PasswordResetService, logger *slog.Logger) *ResetHandler {
	return &ResetHandler{resets: resets, logger: logger}
}

type resetRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HandleRequest issues a token. The answer is 202 whether or not the email
// belongs to an account.
func (h *ResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Email == "" {
		writeError(w, h.logger, apperror.ValidationFailed("email", "email is required"))
		return
	}

	if _, err := h.resets.Issue(r.Context(), req.Email); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address belongs to an account, a reset link is on its way",
	})
}

// HandleValidate checks a token without consuming it.
func (h *ResetHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.resets.Validate(r.Context(), req.Token, req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// HandleConfirm sets the new password and consumes the token.
func (h *ResetHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.resets.ResetPassword(r.Context(), req.Token, req.Email, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
