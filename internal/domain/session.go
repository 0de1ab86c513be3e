package domain

import (
	"time"
)

// Session represents one authenticated device for a user. A user has at most
// one session per device fingerprint; logging in again from the same device
// replaces the stored refresh token instead of creating a second row.
//
// Logout and revocation flip IsActive to false; the row itself is only
// removed once the refresh token expires and the sweeper collects it.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	DeviceType       string    `json:"device_type"`
	Browser          string    `json:"browser,omitempty"`
	OS               string    `json:"os,omitempty"`
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"-"`
	RefreshTokenHash string    `json:"-"`
	IsActive         bool      `json:"is_active"`
	LastActivity     time.Time `json:"last_activity"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Expired reports whether the session's refresh token lifetime has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
