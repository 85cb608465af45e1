package analytics

import (
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// CollectEventInput is one tracked event as received from the beacon.
type CollectEventInput struct {
	SiteID    uint
	EventType string
	Referrer  string
}

// counterColumns maps event types to the daily_stats column they increment.
var counterColumns = map[string]string{
	EventTypePageView:      "page_views",
	EventTypeUniqueVisitor: "unique_visitors",
	EventTypeWhatsappClick: "whatsapp_clicks",
	EventTypeCTAClick:      "cta_clicks",
}

// RecordEvent increments the daily counter matching the event type for
// (site, day-of-now), creating the row on first sight. Unique-visitor events
// carrying a referrer also bump the per-source referrer counter; direct
// visits never produce a referrer row. Increments are atomic upserts, so
// concurrent events for the same site and day never lose updates.
func RecordEvent(db *gorm.DB, logger *slog.Logger, input CollectEventInput, now time.Time) error {
	column, ok := counterColumns[input.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", input.EventType)
	}

	date := DateKey(now)

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := incrementDailyStat(tx, input.SiteID, date, column); err != nil {
			return fmt.Errorf("failed to update daily stats: %w", err)
		}

		if input.EventType == EventTypeUniqueVisitor && input.Referrer != "" {
			source := ClassifyReferrer(input.Referrer)
			if err := incrementReferrerStat(tx, input.SiteID, date, source); err != nil {
				return fmt.Errorf("failed to update referrer stats: %w", err)
			}
		}

		return nil
	})
}

func incrementDailyStat(tx *gorm.DB, siteID uint, date, column string) error {
	initial := map[string]int{
		"page_views":      0,
		"unique_visitors": 0,
		"whatsapp_clicks": 0,
		"cta_clicks":      0,
	}
	initial[column] = 1

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO daily_stats (site_id, date, page_views, unique_visitors, whatsapp_clicks, cta_clicks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_id, date) DO UPDATE SET
			%s = daily_stats.%s + 1,
			updated_at = ?
	`, column, column)
	return tx.Exec(query,
		siteID, date,
		initial["page_views"], initial["unique_visitors"], initial["whatsapp_clicks"], initial["cta_clicks"],
		now, now, now).Error
}

func incrementReferrerStat(tx *gorm.DB, siteID uint, date, source string) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO referrer_stats (site_id, date, source, count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (site_id, date, source) DO UPDATE SET
			count = referrer_stats.count + 1,
			updated_at = ?
	`
	return tx.Exec(query, siteID, date, source, now, now, now).Error
}

// PurgeOlderThan deletes counter rows whose day is before cutoff. Used by the
// retention cleanup job.
func PurgeOlderThan(db *gorm.DB, logger *slog.Logger, cutoff time.Time) (int64, error) {
	date := DateKey(cutoff)
	var total int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Where("date < ?", date).Delete(&DailyStat{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected

		res = tx.Where("date < ?", date).Delete(&ReferrerStat{})
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	return total, err
}
