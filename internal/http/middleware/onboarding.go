package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"psibuilder/internal/onboarding"
)

// OnboardingCheck redirects authenticated users who have not finished the
// setup wizard away from the admin area. Anonymous requests pass through:
// the session middleware behind it handles the login redirect.
func OnboardingCheck(sessionMgr *cartridge.SessionManager, db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, authenticated := sessionMgr.GetUserID(c)
		if !authenticated {
			return c.Next()
		}

		required, err := onboarding.IsOnboardingRequired(db, userID)
		if err != nil {
			logger.Error("Failed to check if onboarding is required in middleware", slog.Any("error", err))
			return c.Status(fiber.StatusInternalServerError).SendString("System error")
		}

		if required {
			if c.Get("Accept") == "application/json" || c.Get("Content-Type") == "application/json" {
				return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
					"error":     "Onboarding required",
					"setup_url": "/onboarding",
				})
			}

			logger.Info("Onboarding required, redirecting",
				slog.Uint64("userID", uint64(userID)),
				slog.String("path", c.Path()),
				slog.String("method", c.Method()))
			return c.Redirect("/onboarding", fiber.StatusFound)
		}

		return c.Next()
	}
}
