package http

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"

	"psibuilder/internal/config"
	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
	"psibuilder/internal/subscriptions"
)

const siteEditorPath = "/admin/site"

// SiteEditorPageAction renders the site editor with all tabs' data (Inertia)
func SiteEditorPageAction(ctx *cartridge.Context) error {
	userID, profile, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for editor", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o editor")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	db := ctx.DB()
	cfg := config.GetConfig()

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

	plan := subscriptions.PlanForUser(db, userID)
	limits := subscriptions.PlanLimits(plan)

	return inertia.RenderPage(ctx.Ctx, "SiteEditor", inertia.Props{
		"title":               "Editar site",
		"profile":               profile,
		"site":                  site,
		"site_url":              cfg.SiteURL(site.Subdomain),
		"faqs":                  faqs,
		"testimonials":          testimonials,
		"plan":                  plan,
		"custom_domain_allowed": limits.CustomDomain,
	})
}

// SiteProfileFormAction updates the personal data shown on the site
func SiteProfileFormAction(ctx *cartridge.Context) error {
	_, profile, _, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o perfil")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	fullName := strings.TrimSpace(ctx.FormValue("full_name"))
	if fullName == "" {
		flash.SetFlash(ctx.Ctx, "error", "O nome completo é obrigatório")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	profile.FullName = fullName
	profile.Gender = ctx.FormValue("gender", profile.Gender)
	profile.Whatsapp = digitsOnly(ctx.FormValue("whatsapp", profile.Whatsapp))
	profile.CRP = strings.TrimSpace(ctx.FormValue("crp", profile.CRP))
	profile.BioShort = strings.TrimSpace(ctx.FormValue("bio_short", profile.BioShort))
	profile.Bio = strings.TrimSpace(ctx.FormValue("bio", profile.Bio))

	db := ctx.DB()
	if err := profiles.UpdateProfile(db, ctx.Logger, profile); err != nil {
		ctx.Logger.Error("Failed to update profile", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar: "+err.Error())
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Perfil atualizado")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteSpecialtiesFormAction replaces the specialties list
func SiteSpecialtiesFormAction(ctx *cartridge.Context) error {
	_, profile, _, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for specialties update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o perfil")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	specialtiesJSON := ctx.FormValue("specialties")
	if specialtiesJSON == "" {
		flash.SetFlash(ctx.Ctx, "error", "Informe ao menos uma especialidade")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	var specialties profiles.SpecialtyList
	if err := json.Unmarshal([]byte(specialtiesJSON), &specialties); err != nil {
		ctx.Logger.Error("Failed to parse specialties", slog.Any("error", err), slog.String("json", specialtiesJSON))
		flash.SetFlash(ctx.Ctx, "error", "Formato de especialidades inválido")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}
	if len(specialties) == 0 {
		flash.SetFlash(ctx.Ctx, "error", "Informe ao menos uma especialidade")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	profile.Specialties = specialties

	db := ctx.DB()
	if err := profiles.UpdateProfile(db, ctx.Logger, profile); err != nil {
		ctx.Logger.Error("Failed to update specialties", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar as especialidades")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Especialidades atualizadas")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteAttendanceFormAction updates service modality and address data
func SiteAttendanceFormAction(ctx *cartridge.Context) error {
	_, profile, _, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for attendance update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o perfil")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	offerOnline := ctx.FormValue("offer_online") == "true"
	offerInPerson := ctx.FormValue("offer_in_person") == "true"
	if !offerOnline && !offerInPerson {
		flash.SetFlash(ctx.Ctx, "error", "Selecione ao menos uma forma de atendimento")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	profile.OfferOnline = offerOnline
	profile.OfferInPerson = offerInPerson
	profile.Address = strings.TrimSpace(ctx.FormValue("address"))
	profile.City = strings.TrimSpace(ctx.FormValue("city"))
	profile.State = strings.TrimSpace(ctx.FormValue("state"))
	profile.MapsEmbedURL = strings.TrimSpace(ctx.FormValue("maps_embed_url"))

	db := ctx.DB()
	if err := profiles.UpdateProfile(db, ctx.Logger, profile); err != nil {
		ctx.Logger.Error("Failed to update attendance data", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar os dados de atendimento")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Atendimento atualizado")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteThemeFormAction updates colors and typography
func SiteThemeFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for theme update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	theme := sites.ThemeConfig{
		PrimaryColor:    ctx.FormValue("primary_color", site.Theme.PrimaryColor),
		BackgroundColor: ctx.FormValue("background_color", site.Theme.BackgroundColor),
		FontFamily:      ctx.FormValue("font_family", site.Theme.FontFamily),
	}
	site.Theme = theme

	db := ctx.DB()
	if err := sites.UpdateSite(db, ctx.Logger, site); err != nil {
		ctx.Logger.Error("Failed to update theme", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar o tema")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Tema atualizado")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteSEOFormAction updates meta tags
func SiteSEOFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for SEO update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	site.SiteTitle = strings.TrimSpace(ctx.FormValue("site_title", site.SiteTitle))
	site.MetaDescription = strings.TrimSpace(ctx.FormValue("meta_description", site.MetaDescription))
	site.MetaKeywords = strings.TrimSpace(ctx.FormValue("meta_keywords", site.MetaKeywords))

	db := ctx.DB()
	if err := sites.UpdateSite(db, ctx.Logger, site); err != nil {
		ctx.Logger.Error("Failed to update SEO settings", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar o SEO")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "SEO atualizado")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteFAQsFormAction replaces the FAQ list
func SiteFAQsFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for FAQ update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	faqsJSON := ctx.FormValue("faqs")
	var faqs []sites.SiteFAQ
	if faqsJSON != "" {
		if err := json.Unmarshal([]byte(faqsJSON), &faqs); err != nil {
			ctx.Logger.Error("Failed to parse FAQs", slog.Any("error", err), slog.String("json", faqsJSON))
			flash.SetFlash(ctx.Ctx, "error", "Formato de perguntas inválido")
			return ctx.Redirect(siteEditorPath, fiber.StatusFound)
		}
	}

	db := ctx.DB()
	if err := sites.ReplaceFAQs(db, ctx.Logger, site.ID, faqs); err != nil {
		ctx.Logger.Error("Failed to save FAQs", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar as perguntas frequentes")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Perguntas frequentes atualizadas")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteTestimonialsFormAction replaces the testimonials list
func SiteTestimonialsFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for testimonial update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	testimonialsJSON := ctx.FormValue("testimonials")
	var testimonials []sites.SiteTestimonial
	if testimonialsJSON != "" {
		if err := json.Unmarshal([]byte(testimonialsJSON), &testimonials); err != nil {
			ctx.Logger.Error("Failed to parse testimonials", slog.Any("error", err), slog.String("json", testimonialsJSON))
			flash.SetFlash(ctx.Ctx, "error", "Formato de depoimentos inválido")
			return ctx.Redirect(siteEditorPath, fiber.StatusFound)
		}
	}

	db := ctx.DB()
	if err := sites.ReplaceTestimonials(db, ctx.Logger, site.ID, testimonials); err != nil {
		ctx.Logger.Error("Failed to save testimonials", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar os depoimentos: "+err.Error())
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Depoimentos atualizados")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteIntegrationsFormAction updates third-party tracking ids
func SiteIntegrationsFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for integrations update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	site.GoogleAnalyticsID = strings.TrimSpace(ctx.FormValue("google_analytics_id"))
	site.GoogleTagManagerID = strings.TrimSpace(ctx.FormValue("gtm_id"))
	site.ClarityID = strings.TrimSpace(ctx.FormValue("clarity_id"))
	site.FacebookPixelID = strings.TrimSpace(ctx.FormValue("facebook_pixel_id"))

	db := ctx.DB()
	if err := sites.UpdateSite(db, ctx.Logger, site); err != nil {
		ctx.Logger.Error("Failed to update integrations", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar as integrações")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Integrações atualizadas")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SitePublishFormAction toggles the published flag
func SitePublishFormAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for publish toggle", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	publish := ctx.FormValue("published") == "true"

	db := ctx.DB()
	if err := sites.SetPublished(db, ctx.Logger, site.ID, publish); err != nil {
		ctx.Logger.Error("Failed to toggle publish flag", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao alterar a publicação")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	if publish {
		flash.SetFlash(ctx.Ctx, "success", "Site publicado")
	} else {
		flash.SetFlash(ctx.Ctx, "success", "Site despublicado")
	}
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}

// SiteCustomDomainFormAction sets a custom domain (paid plans only)
func SiteCustomDomainFormAction(ctx *cartridge.Context) error {
	userID, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for domain update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o site")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	db := ctx.DB()

	limits := subscriptions.PlanLimits(subscriptions.PlanForUser(db, userID))
	if !limits.CustomDomain {
		flash.SetFlash(ctx.Ctx, "error", "Domínio próprio está disponível apenas no plano Pro")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	domain := strings.ToLower(strings.TrimSpace(ctx.FormValue("custom_domain")))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimSuffix(domain, "/")

	site.CustomDomain = domain
	if err := sites.UpdateSite(db, ctx.Logger, site); err != nil {
		ctx.Logger.Error("Failed to update custom domain", slog.Any("error", err), slog.String("domain", domain))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar o domínio")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Domínio atualizado")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}
