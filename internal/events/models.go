package events

import (
	"time"

	"citewatch/internal/pkg/platforms"
	ua "citewatch/internal/pkg/user_agent"
)

// TrafficType separates human click-throughs from crawler fetches.
type TrafficType string

const (
	TrafficTypeCitationClick TrafficType = "citation_click"
	TrafficTypeBotCrawl      TrafficType = "bot_crawl"
)

// Valid reports whether t is one of the known traffic types.
func (t TrafficType) Valid() bool {
	return t == TrafficTypeCitationClick || t == TrafficTypeBotCrawl
}

// VisitEvent is one attributed visit. Rows are appended once and never
// updated; browser, OS and device are derived from UserAgent on read.
type VisitEvent struct {
	ID          uint               `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time          `gorm:"column:visit_timestamp;index;not null"`
	TrafficType TrafficType        `gorm:"column:traffic_type;size:20;index;not null"`
	AIPlatform  platforms.Platform `gorm:"column:ai_platform;size:50;index;not null"`
	URL         string             `gorm:"column:url;index;not null"`
	Referer     *string            `gorm:"column:referer"`
	SearchQuery *string            `gorm:"column:search_query"`
	UserAgent   string             `gorm:"column:user_agent;type:text"`
	CountryCode *string            `gorm:"column:country_code;size:2;index"`
	PostID      *uint              `gorm:"column:post_id;index"`
}

// TableName keeps the persisted layout independent of the Go type name.
func (VisitEvent) TableName() string {
	return "visit_events"
}

// ParsedUserAgent derives browser, OS and device facts from the stored UA.
func (e VisitEvent) ParsedUserAgent() ua.UserAgent {
	return ua.ParseUserAgent(e.UserAgent)
}

// HasSearchQuery reports whether a query was captured from the referrer.
func (e VisitEvent) HasSearchQuery() bool {
	return e.SearchQuery != nil && *e.SearchQuery != ""
}

// Country returns the country code or "" when unknown.
func (e VisitEvent) Country() string {
	return StringValue(e.CountryCode)
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
