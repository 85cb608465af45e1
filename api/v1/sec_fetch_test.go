package v1

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/stretchr/testify/assert"

	"psibuilder/internal/analytics"
)

// TestSecFetchSiteProtection verifies that the Sec-Fetch-Site middleware
// blocks server-to-server requests while allowing legitimate browser requests
func TestSecFetchSiteProtection(t *testing.T) {
	app := fiber.New()

	// Apply the same middlewares as production (strict check + validation)
	strictSecFetchCheck := func(c *fiber.Ctx) error {
		if c.Method() == "POST" && c.Get("Sec-Fetch-Site") == "" {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}

	secFetchForTracking := cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: []string{"cross-site", "same-site", "same-origin", "none"},
		Methods:       []string{"POST"},
	})

	app.Post("/x/api/v1/track", strictSecFetchCheck, secFetchForTracking, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	payload := TrackEventParams{
		SiteID:    1,
		EventType: analytics.EventTypePageView,
		Referrer:  "https://www.google.com",
	}
	jsonPayload, _ := json.Marshal(payload)

	tests := []struct {
		name               string
		secFetchSiteHeader string
		expectedStatus     int
		description        string
	}{
		{
			name:               "Allow cross-site browser request",
			secFetchSiteHeader: "cross-site",
			expectedStatus:     fiber.StatusOK,
			description:        "Legitimate browser request from a published site",
		},
		{
			name:               "Allow same-site browser request",
			secFetchSiteHeader: "same-site",
			expectedStatus:     fiber.StatusOK,
			description:        "Browser request from a subdomain site",
		},
		{
			name:               "Allow same-origin browser request",
			secFetchSiteHeader: "same-origin",
			expectedStatus:     fiber.StatusOK,
			description:        "Browser request from same origin",
		},
		{
			name:               "Block request without Sec-Fetch-Site (server-to-server)",
			secFetchSiteHeader: "",
			expectedStatus:     fiber.StatusForbidden,
			description:        "Server-to-server request (curl, scripts) - BLOCKED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/x/api/v1/track", bytes.NewReader(jsonPayload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", "Mozilla/5.0 (Test Browser)")
			req.Header.Set("Origin", "https://ana-carvalho.psibuilder.com.br")

			if tt.secFetchSiteHeader != "" {
				req.Header.Set("Sec-Fetch-Site", tt.secFetchSiteHeader)
			}

			resp, err := app.Test(req, -1)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, tt.description)
		})
	}
}

// TestServerToServerBlocking demonstrates that common spoofing attempts are blocked
func TestServerToServerBlocking(t *testing.T) {
	app := fiber.New()

	strictSecFetchCheck := func(c *fiber.Ctx) error {
		if c.Method() == "POST" && c.Get("Sec-Fetch-Site") == "" {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}

	secFetchForTracking := cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: []string{"cross-site", "same-site", "same-origin", "none"},
		Methods:       []string{"POST"},
	})

	app.Post("/x/api/v1/track", strictSecFetchCheck, secFetchForTracking, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	payload := TrackEventParams{
		SiteID:    1,
		EventType: analytics.EventTypePageView,
	}
	jsonPayload, _ := json.Marshal(payload)

	spoofingAttempts := []struct {
		name        string
		userAgent   string
		description string
	}{
		{
			name:        "curl request",
			userAgent:   "curl/7.68.0",
			description: "curl command with spoofed Origin header",
		},
		{
			name:        "Python requests",
			userAgent:   "python-requests/2.28.1",
			description: "Python script using requests library",
		},
		{
			name:        "Node.js fetch",
			userAgent:   "node-fetch/1.0",
			description: "Node.js server-side fetch",
		},
	}

	for _, attempt := range spoofingAttempts {
		t.Run(attempt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/x/api/v1/track", bytes.NewReader(jsonPayload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", attempt.userAgent)
			req.Header.Set("Origin", "https://ana-carvalho.psibuilder.com.br")

			// Note: Sec-Fetch-Site is NOT set (server-to-server requests can't set it)

			resp, err := app.Test(req, -1)
			assert.NoError(t, err)
			assert.Equal(t, fiber.StatusForbidden, resp.StatusCode,
				"Should block %s", attempt.description)
		})
	}
}
