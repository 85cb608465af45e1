package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"psibuilder/internal/config"
)

// HomeIndexAction handles the root path. On a customer host (subdomain or
// custom domain) it serves that site's public page; on the apex it sends
// the visitor to the admin area.
func HomeIndexAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()
	host := ctx.Ctx.Hostname()

	if host != cfg.BaseDomain && host != "www."+cfg.BaseDomain {
		return PublicSiteByHostAction(ctx)
	}

	if ctx.Session.IsAuthenticated(ctx.Ctx) {
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}
	return ctx.Redirect("/login", fiber.StatusFound)
}
