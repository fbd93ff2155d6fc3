package models

import (
	"time"

	"github.com/google/uuid"
)

// PPCPlatform identifies an ads platform.
type PPCPlatform string

const (
	PlatformGoogleAds    PPCPlatform = "GOOGLE_ADS"
	PlatformFacebookAds  PPCPlatform = "FACEBOOK_ADS"
	PlatformMicrosoftAds PPCPlatform = "MICROSOFT_ADS"
	PlatformLinkedInAds  PPCPlatform = "LINKEDIN_ADS"
	PlatformTwitterAds   PPCPlatform = "TWITTER_ADS"
	PlatformOther        PPCPlatform = "OTHER"
)

// IsValid reports whether p is a known platform.
func (p PPCPlatform) IsValid() bool {
	switch p {
	case PlatformGoogleAds, PlatformFacebookAds, PlatformMicrosoftAds,
		PlatformLinkedInAds, PlatformTwitterAds, PlatformOther:
		return true
	}
	return false
}

// TopPage is one entry of a daily top-pages breakdown.
type TopPage struct {
	Page     string `json:"page"`
	Sessions int    `json:"sessions"`
	Users    int    `json:"users"`
}

// TopKeyword is one entry of a daily top-keywords breakdown.
type TopKeyword struct {
	Keyword     string  `json:"keyword"`
	Position    float64 `json:"position"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
}

// SEOMetric holds one day of organic search metrics for a website.
type SEOMetric struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	WebsiteID          uuid.UUID    `json:"website_id" db:"website_id"`
	Date               time.Time    `json:"date" db:"date"`
	OrganicSessions    int          `json:"organic_sessions" db:"organic_sessions"`
	OrganicUsers       int          `json:"organic_users" db:"organic_users"`
	OrganicPageviews   int          `json:"organic_pageviews" db:"organic_pageviews"`
	AvgSessionDuration float64      `json:"avg_session_duration" db:"avg_session_duration"`
	BounceRate         float64      `json:"bounce_rate" db:"bounce_rate"`
	AvgPosition        float64      `json:"avg_position" db:"avg_position"`
	TotalClicks        int          `json:"total_clicks" db:"total_clicks"`
	TotalImpressions   int          `json:"total_impressions" db:"total_impressions"`
	CTR                float64      `json:"ctr" db:"ctr"`
	GoalCompletions    int          `json:"goal_completions" db:"goal_completions"`
	GoalConversionRate float64      `json:"goal_conversion_rate" db:"goal_conversion_rate"`
	TopPages           []TopPage    `json:"top_pages" db:"top_pages"`
	TopKeywords        []TopKeyword `json:"top_keywords" db:"top_keywords"`
}

// PPCMetric holds one day of paid campaign metrics.
type PPCMetric struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	WebsiteID         uuid.UUID   `json:"website_id" db:"website_id"`
	CampaignID        uuid.UUID   `json:"campaign_id" db:"campaign_id"`
	CampaignName      string      `json:"campaign_name" db:"campaign_name"`
	Date              time.Time   `json:"date" db:"date"`
	Platform          PPCPlatform `json:"platform" db:"platform"`
	Impressions       int         `json:"impressions" db:"impressions"`
	Clicks            int         `json:"clicks" db:"clicks"`
	CTR               float64     `json:"ctr" db:"ctr"`
	Cost              float64     `json:"cost" db:"cost"`
	CPC               float64     `json:"cpc" db:"cpc"`
	CPM               float64     `json:"cpm" db:"cpm"`
	Conversions       int         `json:"conversions" db:"conversions"`
	ConversionRate    float64     `json:"conversion_rate" db:"conversion_rate"`
	ConversionValue   float64     `json:"conversion_value" db:"conversion_value"`
	CostPerConversion *float64    `json:"cost_per_conversion,omitempty" db:"cost_per_conversion"`
	QualityScore      *float64    `json:"quality_score,omitempty" db:"quality_score"`
	Revenue           *float64    `json:"revenue,omitempty" db:"revenue"`
	ROAS              *float64    `json:"roas,omitempty" db:"roas"`
	Profit            *float64    `json:"profit,omitempty" db:"profit"`
}

// MetricsQuery selects a website's metrics within an inclusive date range.
type MetricsQuery struct {
	WebsiteID uuid.UUID
	From      time.Time
	To        time.Time
	Platform  *PPCPlatform
}
