// Package auth handles passwords and session tokens for the catalog API.
//
// SESSION FLOW:
//  1. POST /api/auth/login checks the bcrypt hash and answers with a signed JWT
//     (also set as the "token" HttpOnly cookie)
//  2. Clients send it back as "Authorization: Bearer <jwt>" or via the cookie
//  3. RequireAuth validates it and puts an Identity into the request context
//
// The token carries the numeric user id as its subject and the role as a
// private claim, so the admin check on DELETE /api/movies/{id} needs no
// database round-trip.
//
// Password-reset tokens are NOT JWTs. They are random values stored in the
// database so they can be consumed exactly once; see service.PasswordResetService.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/moviecatalog/internal/model"
)

const (
	issuer = "moviecatalog"

	// DefaultSessionTTL is used when NewTokenService gets a zero ttl.
	DefaultSessionTTL = 24 * time.Hour
)

// Identity is what a valid session token proves about the caller.
type Identity struct {
	UserID int64
	Role   model.Role
}

// IsAdmin reports whether the caller carries the ADMIN role.
func (id Identity) IsAdmin() bool {
	return id.Role == model.RoleAdmin
}

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService needs a secret of at least 16 characters.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// claims is the JWT payload: registered claims plus the role.
type claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Generate issues a session token for the user.
func (s *TokenService) Generate(u *model.User) (string, error) {
	return s.GenerateWithDuration(u, s.ttl)
}

// GenerateWithDuration issues a token with a custom lifetime. A negative
// duration gives an already-expired token, which the tests rely on.
func (s *TokenService) GenerateWithDuration(u *model.User, d time.Duration) (string, error) {
	if u == nil || u.ID == 0 {
		return "", errors.New("auth: cannot issue a token without a user id")
	}
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}

	now := s.now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm (HS256 only), issuer and expiry,
// and returns the identity inside.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("auth: token subject %q is not a user id", c.Subject)
	}
	return Identity{UserID: userID, Role: c.Role}, nil
}
