package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"

	"psibuilder/internal/analytics"
	"psibuilder/internal/blog"
	"psibuilder/internal/config"
	"psibuilder/internal/subscriptions"
)

// DashboardIndexAction renders the admin home: site status, traffic summary
// and blog usage against the plan limit.
func DashboardIndexAction(ctx *cartridge.Context) error {
	userID, profile, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for dashboard", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o painel")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	db := ctx.DB()
	cfg := config.GetConfig()

	plan := subscriptions.PlanForUser(db, userID)
	limits := subscriptions.PlanLimits(plan)

	summary, err := analytics.BuildSummary(db, site.ID, time.Now())
	if err != nil {
		ctx.Logger.Error("Failed to build analytics summary", slog.Any("error", err))
		summary = &analytics.Summary{}
	}

	posts, err := blog.GetPostsForSite(db, site.ID)
	if err != nil {
		ctx.Logger.Error("Failed to count blog posts", slog.Any("error", err))
	}

	return inertia.RenderPage(ctx.Ctx, "Dashboard", inertia.Props{
		"title":   "Painel",
		"profile": profile,
		"site": inertia.Props{
			"id":           site.ID,
			"subdomain":    site.Subdomain,
			"is_published": site.IsPublished,
			"url":          cfg.SiteURL(site.Subdomain),
		},
		"plan":           plan,
		"summary":        summary,
		"post_count":     len(posts),
		"post_limit":     limits.BlogPosts,
		"analytics_full": limits.Analytics,
	})
}
