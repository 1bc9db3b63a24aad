package models

import "time"

// Session is a refresh-token session.
//
// Access tokens are short lived and never stored. Refresh tokens live in the
// sessions table so a single session can be revoked on logout and rotated on
// every refresh.
type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Cookie and header names of the browser session.
const (
	AccessCookie  = "hd_access"
	RefreshCookie = "hd_refresh"
	CSRFCookie    = "hd_csrf"
	CSRFHeader    = "X-CSRF-Token"
)
