package http_test

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"psibuilder/internal/subscriptions"
	"psibuilder/internal/testsupport"
)

func loggedInApp(t *testing.T, db *gorm.DB) (*fiber.App, string, uint, uint) {
	t.Helper()

	user := testsupport.CreateTestUserForAuth(t, db, "ana@example.com", "password123")
	profile := testsupport.CreateTestProfile(t, db, user.ID, "Ana Carvalho")
	site := testsupport.CreateTestSite(t, db, profile.ID, "ana-carvalho")

	app := testsupport.CreateMinimalTestApp(t, db)
	session, _, _ := testsupport.LoginTestUser(t, app, "ana@example.com", "password123")
	sessionCookie := fmt.Sprintf("%s=%s", testsupport.SessionCookieName, session)
	return app, sessionCookie, user.ID, site.ID
}

func authedGet(t *testing.T, app *fiber.App, sessionCookie, path string) (int, string, string) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	req.Header.Set("Cookie", sessionCookie)
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func grantProPlan(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	require.NoError(t, subscriptions.Upsert(db, testsupport.GetLogger(), &subscriptions.Subscription{
		UserID: userID,
		Plan:   subscriptions.PlanPro,
		Status: subscriptions.StatusActive,
	}))
}

func TestStatisticsPage(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("free plan sees the upgrade prompt", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		app, sessionCookie, _, _ := loggedInApp(t, db)

		status, _, body := authedGet(t, app, sessionCookie, "/admin/statistics")
		assert.Equal(t, fiber.StatusOK, status)
		assert.Contains(t, body, "plano Pro")
	})

	t.Run("pro plan renders the summary", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		app, sessionCookie, userID, siteID := loggedInApp(t, db)
		grantProPlan(t, db, userID)
		testsupport.CreateDailyStat(t, db, siteID, time.Now().UTC(), 12, 5, 2, 1)

		status, _, _ := authedGet(t, app, sessionCookie, "/admin/statistics")
		assert.Equal(t, fiber.StatusOK, status)
	})

	t.Run("aggregation failure redirects with an error", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		app, sessionCookie, userID, _ := loggedInApp(t, db)
		grantProPlan(t, db, userID)

		// Break the referrer ranking query so the summary read fails.
		require.NoError(t, db.Exec("ALTER TABLE referrer_stats RENAME TO referrer_stats_gone").Error)
		t.Cleanup(func() {
			db.Exec("ALTER TABLE referrer_stats_gone RENAME TO referrer_stats")
		})

		status, location, _ := authedGet(t, app, sessionCookie, "/admin/statistics")
		assert.Equal(t, fiber.StatusFound, status)
		assert.Equal(t, "/admin/dashboard", location)
	})
}
