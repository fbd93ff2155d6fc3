// Package models defines the data models for the dashboard API.
package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant in the system.
type Organization struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Description  *string   `json:"description,omitempty" db:"description"`
	Domain       *string   `json:"domain,omitempty" db:"domain"`
	ContactEmail *string   `json:"contact_email,omitempty" db:"contact_email"`
	ContactPhone *string   `json:"contact_phone,omitempty" db:"contact_phone"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// OrganizationSummary is an organization with member and website counts.
type OrganizationSummary struct {
	Organization
	UserCount    int `json:"user_count" db:"user_count"`
	WebsiteCount int `json:"website_count" db:"website_count"`
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives an organization slug from its name: lower-case, runs of
// non-alphanumerics collapsed to "-", no leading or trailing "-".
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
