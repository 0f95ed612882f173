package model

import "time"

// PasswordResetToken is a single-use, time-bounded credential for changing a
// password without knowing the old one.
//
// States: ISSUED (unused, not expired) → CONSUMED (Used) or EXPIRED (past
// ExpiryDate). Rows are kept after either transition as an audit trail.
type PasswordResetToken struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Token      string    `json:"-"`
	ExpiryDate time.Time `json:"expiryDate"`
	Used       bool      `json:"used"`

	// Navigation (populated only by graph loaders).
	User *User `json:"-"`
}

// Expired reports whether now is past the expiry. A token is still valid at
// the exact expiry instant.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiryDate)
}

// Live reports whether the token can still be consumed.
func (t *PasswordResetToken) Live(now time.Time) bool {
	return !t.Used && !t.Expired(now)
}
