package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a user's application role.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
	RoleViewer Role = "VIEWER"
)

var roleRanks = map[Role]int{
	RoleAdmin:  3,
	RoleClient: 2,
	RoleViewer: 1,
}

// Rank returns the role's position in the hierarchy; 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// User is a local identity record linked to the external identity provider.
type User struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ExternalID     string     `json:"external_id" db:"external_id"`
	Email          string     `json:"email" db:"email"`
	Name           *string    `json:"name,omitempty" db:"name"`
	Role           Role       `json:"role" db:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" db:"organization_id"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// Identity returns the snapshot of u stored with a session.
func (u *User) Identity() Identity {
	return Identity{
		UserID:         u.ID,
		ExternalID:     u.ExternalID,
		Email:          u.Email,
		Name:           u.DisplayName(),
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}
}

// ClientListItem is a client row returned to admins.
type ClientListItem struct {
	User
	OrganizationName *string `json:"organization_name,omitempty" db:"organization_name"`
}

// NormalizeEmail lower-cases and trims an email address. Emails are unique
// under this normalization.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
