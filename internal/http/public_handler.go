package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/inertia"

	"psibuilder/internal/blog"
	"psibuilder/internal/config"
	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
)

// PublicSiteAction renders a professional's site addressed by subdomain
// (GET /s/:subdomain). Unpublished sites are indistinguishable from
// missing ones.
func PublicSiteAction(ctx *cartridge.Context) error {
	subdomain := ctx.Ctx.Params("subdomain")

	site, err := sites.GetSiteBySubdomain(ctx.DB(), subdomain)
	if err != nil {
		return publicSiteNotFound(ctx, err, subdomain)
	}

	return renderPublicSite(ctx, site)
}

// PublicSiteByHostAction renders the site that owns the request's Host
// header, covering both <subdomain>.<base> and custom domains.
func PublicSiteByHostAction(ctx *cartridge.Context) error {
	host := ctx.Ctx.Hostname()
	cfg := config.GetConfig()

	site, err := sites.GetSiteByHost(ctx.DB(), host, cfg.BaseDomain)
	if err != nil {
		return publicSiteNotFound(ctx, err, host)
	}

	return renderPublicSite(ctx, site)
}

// PublicBlogPostAction renders one published post of a public site
// (GET /s/:subdomain/blog/:slug).
func PublicBlogPostAction(ctx *cartridge.Context) error {
	subdomain := ctx.Ctx.Params("subdomain")
	slug := ctx.Ctx.Params("slug")

	db := ctx.DB()

	site, err := sites.GetSiteBySubdomain(db, subdomain)
	if err != nil || !site.IsPublished {
		return publicSiteNotFound(ctx, err, subdomain)
	}

	post, err := blog.GetPostBySlug(db, site.ID, slug)
	if err != nil || !post.IsPublished {
		return fiber.NewError(fiber.StatusNotFound, "Página não encontrada")
	}

	profile, err := profiles.GetProfileByID(db, site.ProfileID)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for public post",
			slog.Any("error", err),
			slog.Uint64("siteId", uint64(site.ID)))
		return fiber.NewError(fiber.StatusNotFound, "Página não encontrada")
	}

	return inertia.RenderPage(ctx.Ctx, "PublicBlogPost", inertia.Props{
		"title":   post.Title,
		"site":    site,
		"profile": publicProfileProps(profile),
		"post":    post,
	})
}

func renderPublicSite(ctx *cartridge.Context, site *sites.Site) error {
	if !site.IsPublished {
		return fiber.NewError(fiber.StatusNotFound, "Página não encontrada")
	}

	db := ctx.DB()

	profile, err := profiles.GetProfileByID(db, site.ProfileID)
	if err != nil {
		ctx.Logger.Error("Site without a profile",
			slog.Any("error", err),
			slog.Uint64("siteId", uint64(site.ID)))
		return fiber.NewError(fiber.StatusNotFound, "Página não encontrada")
	}

	faqs, err := sites.GetFAQs(db, site.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load FAQs", slog.Any("error", err))
		faqs = []sites.SiteFAQ{}
	}

	testimonials, err := sites.GetTestimonials(db, site.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load testimonials", slog.Any("error", err))
		testimonials = []sites.SiteTestimonial{}
	}

	posts, err := blog.GetPublishedPosts(db, site.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load published posts", slog.Any("error", err))
		posts = []blog.Post{}
	}

	return inertia.RenderPage(ctx.Ctx, "PublicSite", inertia.Props{
		"title":        site.SiteTitle,
		"site":         site,
		"profile":      publicProfileProps(profile),
		"faqs":         faqs,
		"testimonials": testimonials,
		"posts":        posts,
		// Consumed by the embedded beacon snippet.
		"tracking_site_id": site.ID,
	})
}

// publicProfileProps strips account-internal fields before the profile
// reaches an anonymous visitor.
func publicProfileProps(p *profiles.Profile) fiber.Map {
	return fiber.Map{
		"full_name":         p.FullName,
		"gender":            p.Gender,
		"crp":               p.CRP,
		"whatsapp":          p.Whatsapp,
		"bio_short":         p.BioShort,
		"bio":               p.Bio,
		"specialties":       p.Specialties,
		"profile_image_url": p.ProfileImageURL,
		"logo_image_url":    p.LogoImageURL,
		"offer_online":      p.OfferOnline,
		"offer_in_person":   p.OfferInPerson,
		"address":           p.Address,
		"city":              p.City,
		"state":             p.State,
		"maps_embed_url":    p.MapsEmbedURL,
	}
}

func publicSiteNotFound(ctx *cartridge.Context, err error, host string) error {
	var notFound *sites.SiteNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		ctx.Logger.Error("Failed to resolve public site",
			slog.Any("error", err),
			slog.String("host", host))
	}
	return fiber.NewError(fiber.StatusNotFound, "Página não encontrada")
}
