package analytics

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// weekdayLabels are the pt-BR short weekday names used on the daily chart.
var weekdayLabels = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

// topReferrersLimit caps the ranked referrer list on the dashboard.
const topReferrersLimit = 5

// MetricSummary is one counter's current-period total with its
// period-over-period change. Change is nil when both periods are zero.
type MetricSummary struct {
	Total  int64   `json:"total"`
	Change *string `json:"change,omitempty"`
}

// DailyPoint is one bar of the 7-day chart.
type DailyPoint struct {
	Date           string `json:"date"` // YYYY-MM-DD
	Label          string `json:"label"`
	PageViews      int64  `json:"page_views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// ReferrerRank is one entry of the top-referrers list.
type ReferrerRank struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Summary is the full statistics payload for the dashboard page.
type Summary struct {
	PageViews      MetricSummary  `json:"page_views"`
	UniqueVisitors MetricSummary  `json:"unique_visitors"`
	WhatsappClicks MetricSummary  `json:"whatsapp_clicks"`
	CTAClicks      MetricSummary  `json:"cta_clicks"`
	ConversionRate float64        `json:"conversion_rate"`
	Daily          []DailyPoint   `json:"daily"`
	TopReferrers   []ReferrerRank `json:"top_referrers"`
}

type periodTotals struct {
	PageViews      int64
	UniqueVisitors int64
	WhatsappClicks int64
	CTAClicks      int64
}

// BuildSummary computes the 7-day dashboard summary for a site. The current
// window is the 7 days ending at now's calendar day; the previous window is
// the 7 days immediately before it.
func BuildSummary(db *gorm.DB, siteID uint, now time.Time) (*Summary, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	currentStart := today.AddDate(0, 0, -6)
	previousStart := today.AddDate(0, 0, -13)
	previousEnd := today.AddDate(0, 0, -7)

	currentRows, err := statsInWindow(db, siteID, currentStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current period stats: %w", err)
	}
	previousRows, err := statsInWindow(db, siteID, previousStart, previousEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch previous period stats: %w", err)
	}

	current := sumTotals(currentRows)
	previous := sumTotals(previousRows)

	summary := &Summary{
		PageViews:      MetricSummary{Total: current.PageViews, Change: calcChange(current.PageViews, previous.PageViews)},
		UniqueVisitors: MetricSummary{Total: current.UniqueVisitors, Change: calcChange(current.UniqueVisitors, previous.UniqueVisitors)},
		WhatsappClicks: MetricSummary{Total: current.WhatsappClicks, Change: calcChange(current.WhatsappClicks, previous.WhatsappClicks)},
		CTAClicks:      MetricSummary{Total: current.CTAClicks, Change: calcChange(current.CTAClicks, previous.CTAClicks)},
		ConversionRate: conversionRate(current.WhatsappClicks, current.UniqueVisitors),
		Daily:          dailySeries(currentRows, currentStart),
		TopReferrers:   []ReferrerRank{},
	}

	summary.TopReferrers, err = topReferrers(db, siteID, currentStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch referrer ranking: %w", err)
	}

	return summary, nil
}

func statsInWindow(db *gorm.DB, siteID uint, start, end time.Time) ([]DailyStat, error) {
	var rows []DailyStat
	err := db.Where("site_id = ? AND date >= ? AND date <= ?", siteID, DateKey(start), DateKey(end)).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func sumTotals(rows []DailyStat) periodTotals {
	var t periodTotals
	for _, r := range rows {
		t.PageViews += r.PageViews
		t.UniqueVisitors += r.UniqueVisitors
		t.WhatsappClicks += r.WhatsappClicks
		t.CTAClicks += r.CTAClicks
	}
	return t
}

// calcChange formats the period-over-period change for one metric. Zero in
// both periods yields nil (nothing to compare); growth from zero is capped
// at "+100%".
func calcChange(current, previous int64) *string {
	if previous == 0 {
		if current == 0 {
			return nil
		}
		s := "+100%"
		return &s
	}

	pct := int(math.Round(float64(current-previous) / float64(previous) * 100))
	var s string
	if pct >= 0 {
		s = fmt.Sprintf("+%d%%", pct)
	} else {
		s = fmt.Sprintf("%d%%", pct)
	}
	return &s
}

// conversionRate is whatsapp clicks over unique visitors as a percentage,
// zero when there were no visitors.
func conversionRate(whatsappClicks, uniqueVisitors int64) float64 {
	if uniqueVisitors == 0 {
		return 0
	}
	return float64(whatsappClicks) / float64(uniqueVisitors) * 100
}

// dailySeries expands the window rows into exactly 7 points, oldest first,
// filling days without traffic with zeros.
func dailySeries(rows []DailyStat, start time.Time) []DailyPoint {
	byDate := make(map[string]DailyStat, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	series := make([]DailyPoint, 0, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		key := DateKey(day)
		point := DailyPoint{
			Date:  key,
			Label: weekdayLabels[day.Weekday()],
		}
		if r, ok := byDate[key]; ok {
			point.PageViews = r.PageViews
			point.UniqueVisitors = r.UniqueVisitors
		}
		series = append(series, point)
	}
	return series
}

// topReferrers sums referrer counts across the window and returns the top 5.
// Equal counts are ordered by source name so the ranking is deterministic.
func topReferrers(db *gorm.DB, siteID uint, start, end time.Time) ([]ReferrerRank, error) {
	var ranks []ReferrerRank
	err := db.Model(&ReferrerStat{}).
		Select("source, SUM(count) as count").
		Where("site_id = ? AND date >= ? AND date <= ?", siteID, DateKey(start), DateKey(end)).
		Group("source").
		Order("count DESC, source ASC").
		Limit(topReferrersLimit).
		Scan(&ranks).Error
	if err != nil {
		return nil, err
	}
	if ranks == nil {
		ranks = []ReferrerRank{}
	}
	return ranks, nil
}
