// Package analytics implements the per-site traffic counters behind the
// dashboard statistics page: daily event ingestion, referrer classification
// and the 7-day summary.
package analytics

import (
	"time"
)

// Tracked event types.
const (
	EventTypePageView      = "page_view"
	EventTypeUniqueVisitor = "unique_visitor"
	EventTypeWhatsappClick = "whatsapp_click"
	EventTypeCTAClick      = "cta_click"
)

// KnownEventType reports whether s is one of the tracked event types.
func KnownEventType(s string) bool {
	switch s {
	case EventTypePageView, EventTypeUniqueVisitor, EventTypeWhatsappClick, EventTypeCTAClick:
		return true
	}
	return false
}

// DailyStat holds the four traffic counters for one site on one calendar day.
// At most one row exists per (site, date).
type DailyStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         uint      `gorm:"not null;uniqueIndex:idx_daily_stats_site_date" json:"site_id"`
	Date           string    `gorm:"not null;uniqueIndex:idx_daily_stats_site_date" json:"date"` // YYYY-MM-DD
	PageViews      int64     `gorm:"default:0" json:"page_views"`
	UniqueVisitors int64     `gorm:"default:0" json:"unique_visitors"`
	WhatsappClicks int64     `gorm:"default:0" json:"whatsapp_clicks"`
	CTAClicks      int64     `gorm:"column:cta_clicks;default:0" json:"cta_clicks"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferrerStat counts unique visitors per classified traffic source for one
// site on one calendar day. At most one row per (site, date, source).
type ReferrerStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID    uint      `gorm:"not null;uniqueIndex:idx_referrer_stats_site_date_source" json:"site_id"`
	Date      string    `gorm:"not null;uniqueIndex:idx_referrer_stats_site_date_source" json:"date"` // YYYY-MM-DD
	Source    string    `gorm:"not null;uniqueIndex:idx_referrer_stats_site_date_source" json:"source"`
	Count     int64     `gorm:"default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DateKey formats a timestamp as the UTC calendar-day key used by both tables.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
