package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
)

// currentProfileAndSite resolves the authenticated user's profile and site.
// Admin routes sit behind the session and onboarding middlewares, so both
// records exist for any request that reaches a handler calling this.
func currentProfileAndSite(ctx *cartridge.Context) (uint, *profiles.Profile, *sites.Site, error) {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return 0, nil, nil, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	db := ctx.DB()

	profile, err := profiles.GetProfileByUserID(db, userID)
	if err != nil {
		return userID, nil, nil, err
	}

	site, err := sites.GetSiteByProfileID(db, profile.ID)
	if err != nil {
		return userID, profile, nil, err
	}

	return userID, profile, site, nil
}
