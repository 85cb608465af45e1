package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psibuilder/internal/analytics"
	"psibuilder/internal/testsupport"
)

func TestRecordEventIncrementsSingleCounter(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		eventType string
		column    func(s analytics.DailyStat) int64
	}{
		{analytics.EventTypePageView, func(s analytics.DailyStat) int64 { return s.PageViews }},
		{analytics.EventTypeUniqueVisitor, func(s analytics.DailyStat) int64 { return s.UniqueVisitors }},
		{analytics.EventTypeWhatsappClick, func(s analytics.DailyStat) int64 { return s.WhatsappClicks }},
		{analytics.EventTypeCTAClick, func(s analytics.DailyStat) int64 { return s.CTAClicks }},
	}

	for i, test := range tests {
		t.Run(test.eventType, func(t *testing.T) {
			siteID := uint(100 + i)
			for n := 0; n < 3; n++ {
				err := analytics.RecordEvent(db, logger, analytics.CollectEventInput{
					SiteID:    siteID,
					EventType: test.eventType,
				}, now)
				require.NoError(t, err)
			}

			var stat analytics.DailyStat
			require.NoError(t, db.Where("site_id = ? AND date = ?", siteID, "2026-03-10").First(&stat).Error)
			assert.Equal(t, int64(3), test.column(stat))

			total := stat.PageViews + stat.UniqueVisitors + stat.WhatsappClicks + stat.CTAClicks
			assert.Equal(t, int64(3), total, "other counters must stay untouched")
		})
	}
}

func TestRecordEventCreatesOneRowPerDay(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	day1 := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)

	for _, now := range []time.Time{day1, day1, day2} {
		require.NoError(t, analytics.RecordEvent(db, logger, analytics.CollectEventInput{
			SiteID:    1,
			EventType: analytics.EventTypePageView,
		}, now))
	}

	var count int64
	require.NoError(t, db.Model(&analytics.DailyStat{}).Where("site_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var first analytics.DailyStat
	require.NoError(t, db.Where("site_id = ? AND date = ?", 1, "2026-03-10").First(&first).Error)
	assert.Equal(t, int64(2), first.PageViews)
}

func TestRecordEventRejectsUnknownType(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	err := analytics.RecordEvent(db, logger, analytics.CollectEventInput{
		SiteID:    1,
		EventType: "mystery_click",
	}, time.Now().UTC())
	require.Error(t, err)
}

func TestUniqueVisitorTracksReferrerSource(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	inputs := []string{
		"https://www.google.com/search?q=terapia",
		"https://www.google.com.br/",
		"https://www.instagram.com/",
		"",
	}
	for _, ref := range inputs {
		require.NoError(t, analytics.RecordEvent(db, logger, analytics.CollectEventInput{
			SiteID:    7,
			EventType: analytics.EventTypeUniqueVisitor,
			Referrer:  ref,
		}, now))
	}

	var google analytics.ReferrerStat
	require.NoError(t, db.Where("site_id = ? AND date = ? AND source = ?", 7, "2026-03-10", "Google").First(&google).Error)
	assert.Equal(t, int64(2), google.Count)

	var instagram analytics.ReferrerStat
	require.NoError(t, db.Where("site_id = ? AND date = ? AND source = ?", 7, "2026-03-10", "Instagram").First(&instagram).Error)
	assert.Equal(t, int64(1), instagram.Count)

	// The referrer-less visit still counts as unique but leaves no source row.
	var sources int64
	require.NoError(t, db.Model(&analytics.ReferrerStat{}).Where("site_id = ?", 7).Count(&sources).Error)
	assert.Equal(t, int64(2), sources)

	var stat analytics.DailyStat
	require.NoError(t, db.Where("site_id = ? AND date = ?", 7, "2026-03-10").First(&stat).Error)
	assert.Equal(t, int64(4), stat.UniqueVisitors)
}

func TestDirectVisitCreatesNoReferrerRow(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	require.NoError(t, analytics.RecordEvent(db, logger, analytics.CollectEventInput{
		SiteID:    77,
		EventType: analytics.EventTypeUniqueVisitor,
	}, time.Now().UTC()))

	var count int64
	require.NoError(t, db.Model(&analytics.ReferrerStat{}).Where("site_id = ?", 77).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPageViewDoesNotTrackReferrer(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	require.NoError(t, analytics.RecordEvent(db, logger, analytics.CollectEventInput{
		SiteID:    8,
		EventType: analytics.EventTypePageView,
		Referrer:  "https://www.google.com/",
	}, time.Now().UTC()))

	var count int64
	require.NoError(t, db.Model(&analytics.ReferrerStat{}).Where("site_id = ?", 8).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPurgeOlderThan(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	testsupport.CreateDailyStat(t, db, 9, old, 10, 5, 1, 0)
	testsupport.CreateDailyStat(t, db, 9, recent, 20, 8, 2, 1)

	removed, err := analytics.PurgeOlderThan(db, logger, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var count int64
	require.NoError(t, db.Model(&analytics.DailyStat{}).Where("site_id = ?", 9).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
