package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/moviecatalog/internal/auth"
	"github.com/sakif/moviecatalog/internal/serialize"
	"github.com/sakif/moviecatalog/internal/service"
)

// AuthHandler manages login and logout.
//
//   - HandleLogin  → check email + password, issue a JWT (body and cookie)
//   - HandleLogout → clear the cookie
//
// Tokens are stateless, so logout only removes the client's copy.
type AuthHandler struct {
	auth       *service.AuthService
	ser        *serialize.Serializer
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, ser *serialize.Serializer, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, ser: ser, sessionTTL: sessionTTL, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates the caller.
//
// HTTP: POST /api/auth/login
// Body: {"email": "...", "password": "..."}
// Response: {"token": "<jwt>", "user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Secure is set by the TLS-terminating proxy.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	userDoc, err := h.ser.Serialize(res.User)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeDocument(w, r, h.logger, http.StatusOK, &serialize.Document{
		Value: map[string]any{"token": res.Token, "user": userDoc.Value},
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
