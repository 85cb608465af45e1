// Package v1_test contains tests for the public tracking API handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psibuilder/internal/analytics"
	"psibuilder/internal/settings"
	"psibuilder/internal/testsupport"
)

func trackRequest(t *testing.T, payload map[string]interface{}) *http.Request {
	t.Helper()

	jsonPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/x/api/v1/track", bytes.NewReader(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Test Agent)")
	req.Header.Set("Sec-Fetch-Site", "cross-site") // Required for browser-only validation
	return req
}

func TestTrackEventHandler(t *testing.T) {
	t.Run("accepts a valid page view", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		user := testsupport.CreateTestUser(db, "track-valid@example.com", "password")
		profile := testsupport.CreateTestProfile(t, db, user.ID, "Ana Carvalho")
		site := testsupport.CreateTestSite(t, db, profile.ID, "ana-carvalho")

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId":    site.ID,
			"eventType": analytics.EventTypePageView,
			"referrer":  "https://www.google.com/search",
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"success":true`)

		var stat analytics.DailyStat
		err = db.Where("site_id = ?", site.ID).First(&stat).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), stat.PageViews)
	})

	t.Run("records referrer source for unique visitors", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		user := testsupport.CreateTestUser(db, "track-ref@example.com", "password")
		profile := testsupport.CreateTestProfile(t, db, user.ID, "Ana Carvalho")
		site := testsupport.CreateTestSite(t, db, profile.ID, "ana-ref")

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId":    site.ID,
			"eventType": analytics.EventTypeUniqueVisitor,
			"referrer":  "https://l.instagram.com/",
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var ref analytics.ReferrerStat
		err = db.Where("site_id = ?", site.ID).First(&ref).Error
		require.NoError(t, err)
		assert.Equal(t, "Instagram", ref.Source)
		assert.Equal(t, int64(1), ref.Count)
	})

	t.Run("rejects missing site id", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"eventType": analytics.EventTypePageView,
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects missing event type", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId": 1,
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects unknown event type", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId":    1,
			"eventType": "scroll_depth",
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Unknown event type")
	})

	t.Run("rejects malformed JSON body", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/track", strings.NewReader("{not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site")

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("drops events from excluded IPs without error", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		user := testsupport.CreateTestUser(db, "track-excluded@example.com", "password")
		profile := testsupport.CreateTestProfile(t, db, user.ID, "Ana Carvalho")
		site := testsupport.CreateTestSite(t, db, profile.ID, "ana-excluded")

		require.NoError(t, settings.SetupDefaultSettings(db))
		require.NoError(t, settings.UpdateSetting(db, "excluded_ips", "203.0.113.50"))

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId":    site.ID,
			"eventType": analytics.EventTypePageView,
		})
		req.Header.Set("X-Forwarded-For", "203.0.113.50")

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var count int64
		db.Model(&analytics.DailyStat{}).Where("site_id = ?", site.ID).Count(&count)
		assert.Equal(t, int64(0), count, "excluded IP events should not create counter rows")
	})

	t.Run("answers success even when the site does not exist", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, map[string]interface{}{
			"siteId":    99999,
			"eventType": analytics.EventTypeCTAClick,
		})

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestTrackStatusHandler(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	app := testsupport.CreateMinimalTestApp(t, db)

	req := httptest.NewRequest("GET", "/x/api/v1/track", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestBeaconScript(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	app := testsupport.CreateMinimalTestApp(t, db)

	req := httptest.NewRequest("GET", "/x/api/v1/beacon.js", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	require.NotEmpty(t, resp.Header.Get("ETag"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/x/api/v1/track")

	req2 := httptest.NewRequest("GET", "/x/api/v1/beacon.js", nil)
	req2.Header.Set("If-None-Match", resp.Header.Get("ETag"))
	resp2, err := app.Test(req2, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)
}
