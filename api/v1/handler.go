package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"psibuilder/internal/analytics"
	"psibuilder/internal/settings"
)

const (
	errInvalidRequest   = "Invalid request"
	errMissingFields    = "siteId and eventType are required"
	errUnknownEventType = "Unknown event type"
)

type TrackEventParams struct {
	SiteID    uint   `json:"siteId"`
	EventType string `json:"eventType"`
	Referrer  string `json:"referrer"`
}

// TrackEventHandler ingests a beacon event from a public site. The endpoint
// always answers success once the request itself is valid: a lost counter
// increment must never surface as an error in the visitor's browser.
func TrackEventHandler(ctx *cartridge.Context) error {
	var params TrackEventParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse tracking request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	if params.SiteID == 0 || params.EventType == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errMissingFields})
	}

	if !analytics.KnownEventType(params.EventType) {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errUnknownEventType})
	}

	if ctx.DBManager == nil {
		ctx.Logger.Error("Tracking request received without a database connection")
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Service unavailable"})
	}
	db := ctx.DBManager.GetConnection()

	clientIP := getClientIP(ctx.Ctx)
	excluded, err := settings.IsIPExcluded(clientIP)
	if err != nil {
		ctx.Logger.Error("Failed to check excluded IPs", slog.Any("error", err))
	}
	if excluded {
		ctx.Logger.Debug("Dropping event from excluded IP", slog.String("ip", clientIP))
		return ctx.Status(http.StatusOK).JSON(fiber.Map{"success": true})
	}

	input := analytics.CollectEventInput{
		SiteID:    params.SiteID,
		EventType: params.EventType,
		Referrer:  params.Referrer,
	}
	if err := analytics.RecordEvent(db, ctx.Logger, input, time.Now()); err != nil {
		// Swallowed on purpose: the visitor-facing response stays 200.
		ctx.Logger.Error("Failed to record event",
			slog.Uint64("site_id", uint64(params.SiteID)),
			slog.String("event_type", params.EventType),
			slog.Any("error", err))
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// TrackStatusHandler answers liveness probes from the beacon script.
func TrackStatusHandler(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"service": "psibuilder-tracking",
	})
}
