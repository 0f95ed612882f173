// Package model defines the persistent records of the catalog.
//
// Every record carries its foreign-key values (UserID, MovieID, ListID). The
// navigation fields (User.Ratings, Rating.User, MovieList.Items, ...) are only
// filled by the explicit graph loaders in the repository layer, and a nil slice
// means "not loaded", never "empty". Those references can point back at each
// other, which is why responses go through the serialize package instead of
// being handed straight to encoding/json.
package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Role is the authorization tag stored in users.role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// StreamingPrefs are the user's streaming-service flags.
// Each maps to an INTEGER 0/1 (sqlite) or BOOLEAN (postgres) column on users.
type StreamingPrefs struct {
	Netflix    bool `json:"netflix"    db:"netflix"`
	PrimeVideo bool `json:"primeVideo" db:"prime_video"`
	DisneyPlus bool `json:"disneyPlus" db:"disney_plus"`
	Hulu       bool `json:"hulu"       db:"hulu"`
	HBOMax     bool `json:"hboMax"     db:"hbo_max"`
	AppleTV    bool `json:"appleTv"    db:"apple_tv"`
}

// User represents a registered account.
//
// WHY Name string BUT Phone *string?
// Name and Email are required and default to "" so a row can always be
// serialized. The profile fields are optional: nil means the user never
// supplied them, which is different from an empty value.
//
// Email is stored already case-folded by the repository, so two addresses
// differing only by case collide on the UNIQUE index.
type User struct {
	ID       int64   `json:"id"                 db:"id"`
	Name     string  `json:"name"               db:"name"`
	Email    string  `json:"email"              db:"email"`
	Phone    *string `json:"phone,omitempty"    db:"phone"`
	Age      *int    `json:"age,omitempty"      db:"age"`
	Gender   *string `json:"gender,omitempty"   db:"gender"`
	Location *string `json:"location,omitempty" db:"location"`
	StreamingPrefs
	PasswordHash string `json:"-"    db:"password"`
	Role         Role   `json:"role" db:"role"`

	// Navigation (populated only by LoadUserGraph).
	Ratings []*Rating    `json:"-" db:"-"`
	Lists   []*MovieList `json:"-" db:"-"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail trims and case-folds an address. Every write and lookup of
// users.email goes through it, so comparisons are case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
