package domain

import (
	"time"
)

// Security event type constants.
const (
	SecurityEventRegistration    = "registration"
	SecurityEventLogin           = "login"
	SecurityEventFailedLogin     = "failed_login"
	SecurityEventLogout          = "logout"
	SecurityEventLogoutAll       = "logout_all"
	SecurityEventPasswordReset   = "password_reset"
	SecurityEventPasswordChange  = "password_change"
	SecurityEventSessionRevoked  = "session_revoked"
	SecurityEventAccountLocked   = "account_locked"
	SecurityEventEmailVerified   = "email_verified"
)

// SecurityEvent is an append-only audit record of a security-relevant action.
type SecurityEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	EventType string         `json:"event_type"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// LoginAttempt tracks consecutive failed logins for an email address.
// The row self-heals: once LockedUntil passes, the next check resets it.
type LoginAttempt struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FailedCount   int        `json:"failed_count"`
	FirstFailedAt time.Time  `json:"first_failed_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Locked reports whether the account is currently locked out.
func (a *LoginAttempt) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// BlacklistedToken is a revoked JWT, stored by hash until its natural expiry.
type BlacklistedToken struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
