// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents one long-lived, authorized user session bound to a
// single device. Only a salted one-way hash of the raw token is stored; the
// plaintext exists solely in the device's httpOnly cookie.
type RefreshToken struct {
	ID         uuid.UUID  // The unique ID for this specific refresh token record.
	UserID     uuid.UUID  // Links this session to the User it belongs to.
	TokenHash  string     // Salted bcrypt hash of the raw refresh token.
	Device     string     // Human-readable device descriptor, e.g. "Firefox on Linux".
	ExpiresAt  time.Time  // The exact time when this refresh token becomes invalid.
	CreatedAt  time.Time  // Timestamp of when this session was created (login time).
	LastUsedAt *time.Time // Stamped on every successful rotation; nil until first refresh.
}

// Expired reports whether the session's refresh token has passed its expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// SessionInfo is the client-safe projection of a RefreshToken row.
// It never exposes the token hash.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Device    string    `json:"device"`
}

// Info returns the safe projection of the session.
func (t *RefreshToken) Info() *SessionInfo {
	return &SessionInfo{
		ID:        t.ID,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		Device:    t.Device,
	}
}
