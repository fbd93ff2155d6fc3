package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the resolved-user snapshot kept with a session so requests can
// be authorized without re-reading the user table.
type Identity struct {
	UserID         uuid.UUID  `json:"user_id"`
	ExternalID     string     `json:"external_id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// SessionState is the lifecycle state of a browser session.
type SessionState string

const (
	SessionAnonymous     SessionState = "anonymous"
	SessionPending       SessionState = "pending"
	SessionAuthenticated SessionState = "authenticated"
	SessionExpired       SessionState = "expired"
)

// Session is the server-side record behind an access_token cookie. It is
// stored under the hash of the opaque token, never the token itself.
type Session struct {
	ID                   string    `json:"id"`
	Identity             Identity  `json:"identity"`
	ProviderAccessToken  string    `json:"provider_access_token,omitempty"`
	ProviderRefreshToken string    `json:"provider_refresh_token,omitempty"`
	ExpiresAt            time.Time `json:"expires_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// State reports the session state at now. A nil session is anonymous.
func (s *Session) State(now time.Time) SessionState {
	if s == nil {
		return SessionAnonymous
	}
	if !now.Before(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionAuthenticated
}

// RefreshGrant is the server-side record behind a refresh_token cookie.
type RefreshGrant struct {
	ID                   string    `json:"id"`
	UserID               uuid.UUID `json:"user_id"`
	SessionID            string    `json:"session_id"`
	ProviderRefreshToken string    `json:"provider_refresh_token"`
	ExpiresAt            time.Time `json:"expires_at"`
	CreatedAt            time.Time `json:"created_at"`
}
