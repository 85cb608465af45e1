package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"

	"psibuilder/internal/analytics"
	"psibuilder/internal/subscriptions"
)

// StatisticsPageAction renders the visitor statistics page. Free-plan
// users see the upgrade prompt instead of the full report.
func StatisticsPageAction(ctx *cartridge.Context) error {
	userID, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for statistics", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar as estatísticas")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	db := ctx.DB()

	plan := subscriptions.PlanForUser(db, userID)
	if !subscriptions.PlanLimits(plan).Analytics {
		return inertia.RenderPage(ctx.Ctx, "Statistics", inertia.Props{
			"title":           "Estatísticas",
			"plan":            plan,
			"analytics_full":  false,
			"upgrade_message": "Estatísticas completas estão disponíveis no plano Pro",
		})
	}

	summary, err := analytics.BuildSummary(db, site.ID, time.Now())
	if err != nil {
		ctx.Logger.Error("Failed to build statistics summary",
			slog.Any("error", err),
			slog.Uint64("siteId", uint64(site.ID)))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar as estatísticas")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	return inertia.RenderPage(ctx.Ctx, "Statistics", inertia.Props{
		"title":          "Estatísticas",
		"plan":           plan,
		"analytics_full": true,
		"summary":        summary,
	})
}
