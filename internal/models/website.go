package models

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Website is a trackable property owned by exactly one organization.
type Website struct {
	ID                uuid.UUID `json:"id" db:"id"`
	OrganizationID    uuid.UUID `json:"organization_id" db:"organization_id"`
	Name              string    `json:"name" db:"name"`
	Domain            string    `json:"domain" db:"domain"`
	URL               *string   `json:"url,omitempty" db:"url"`
	Description       *string   `json:"description,omitempty" db:"description"`
	Industry          *string   `json:"industry,omitempty" db:"industry"`
	Country           string    `json:"country" db:"country"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	GoogleAnalyticsID *string   `json:"google_analytics_id,omitempty" db:"google_analytics_id"`
	GoogleAdsID       *string   `json:"google_ads_id,omitempty" db:"google_ads_id"`
	FacebookPixelID   *string   `json:"facebook_pixel_id,omitempty" db:"facebook_pixel_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// WebsiteSummary is a website listed with its organization name and grant count.
type WebsiteSummary struct {
	Website
	OrganizationName string `json:"organization_name" db:"organization_name"`
	AccessCount      int    `json:"access_count" db:"access_count"`
}

// WebsiteAccess is an explicit grant of a website to a user.
type WebsiteAccess struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	WebsiteID uuid.UUID `json:"website_id" db:"website_id"`
	CanView   bool      `json:"can_view" db:"can_view"`
	CanEdit   bool      `json:"can_edit" db:"can_edit"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ErrInvalidWebsiteURL is returned when a URL has no usable host name.
var ErrInvalidWebsiteURL = errors.New("invalid URL format")

// DomainFromURL extracts the lower-cased host name (without port) from an
// absolute URL such as https://shop.acme.com/x.
func DomainFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return "", ErrInvalidWebsiteURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrInvalidWebsiteURL
	}
	return host, nil
}
