package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "psibuilder/api/v1"
	"psibuilder/internal/config"
	"psibuilder/internal/http"
	"psibuilder/internal/http/middleware"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
// The beacon posts from arbitrary customer domains, so this stays permissive.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	SetupSession(srv)
	MountAppRoutesWithoutSession(srv)
}

// MountAppRoutesWithoutSession mounts routes without setting up session.
func MountAppRoutesWithoutSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := srv.Session()

	// ============================================
	// PUBLIC ENDPOINT PROTECTION
	// All public endpoints get the following protection:
	// - Rate limiting (70 req/min for tracking, production only)
	// - CORS (permissive for cross-origin tracking)
	// - Sec-Fetch-Site validation where applicable
	// ============================================

	// Helper to conditionally apply rate limiting (only in production)
	// In development/test, rate limiting would interfere with testing
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Rate limiter for the public tracking API (70 requests per minute per IP)
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter rate limiter for auth endpoints (10 requests per minute)
	// Prevents brute force login attempts
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// ============================================
	// ROUTE CONFIGURATIONS
	// ============================================

	// Public API config (tracking ingestion)
	// CORS runs first ensuring 403 responses have CORS headers
	// Global SecFetchSite middleware allows: cross-site, same-site, same-origin
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Beacon script delivery config
	// Rate limiting + CORS (no Sec-Fetch-Site needed for GET-only)
	beaconConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Public site pages: rate limited, no Sec-Fetch-Site (direct navigation)
	publicSiteConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
	}

	// Webhook config: provider servers post here, so neither Sec-Fetch-Site
	// nor CORS applies.
	webhookConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// Onboarding wizard: session required, no onboarding redirect (it IS the
	// destination of that redirect).
	onboardingConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{sessionMgr.Middleware()},
	}

	// Get dependencies for middleware
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	adminConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			sessionMgr.Middleware(),
			middleware.OnboardingCheck(sessionMgr, db, logger),
		},
	}

	// === ROOT ROUTES ===
	srv.Get("/", http.HomeIndexAction, publicSiteConfig)

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC SITES ===
	srv.Get("/s/:subdomain", http.PublicSiteAction, publicSiteConfig)
	srv.Get("/s/:subdomain/blog/:slug", http.PublicBlogPostAction, publicSiteConfig)

	// === PUBLIC TRACKING API ===
	srv.Post("/x/api/v1/track", v1.TrackEventHandler, publicAPIConfig)
	srv.Get("/x/api/v1/track", v1.TrackStatusHandler, publicAPIConfig)
	srv.Options("/x/api/v1/track", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === BEACON SCRIPT ===
	srv.Get("/x/api/v1/beacon.js", v1.GetBeaconAction, beaconConfig)

	// === PAYMENT WEBHOOKS ===
	srv.Post("/webhooks/payments", http.PaymentWebhookAction, webhookConfig)
	srv.Get("/webhooks/payments", http.PaymentWebhookStatusAction, webhookConfig)

	// === AUTHENTICATION ROUTES ===
	// Login and signup need rate limiting to prevent brute force attacks
	authConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}
	srv.Get("/login", http.RenderLoginAction)
	srv.Post("/login", http.ProcessLoginAction, authConfig)
	srv.Get("/signup", http.RenderSignupAction)
	srv.Post("/signup", http.ProcessSignupAction, authConfig)
	srv.Post("/logout", http.LogoutAction)

	// === ONBOARDING ROUTES (PRG pattern) ===
	srv.Get("/onboarding", http.OnboardingPageAction, onboardingConfig)
	srv.Get("/onboarding/status", http.OnboardingStatusAction, onboardingConfig)
	srv.Post("/onboarding/basic-info", http.OnboardingBasicInfoAction, onboardingConfig)
	srv.Post("/onboarding/crp", http.OnboardingCRPAction, onboardingConfig)
	srv.Post("/onboarding/bio", http.OnboardingBioAction, onboardingConfig)
	srv.Post("/onboarding/specialties", http.OnboardingSpecialtiesAction, onboardingConfig)

	// === PROTECTED ADMIN ROUTES ===
	srv.Get("/admin/dashboard", http.DashboardIndexAction, adminConfig)

	// Site editor: one POST per section
	srv.Get("/admin/site", http.SiteEditorPageAction, adminConfig)
	srv.Post("/admin/site/profile", http.SiteProfileFormAction, adminConfig)
	srv.Post("/admin/site/specialties", http.SiteSpecialtiesFormAction, adminConfig)
	srv.Post("/admin/site/attendance", http.SiteAttendanceFormAction, adminConfig)
	srv.Post("/admin/site/theme", http.SiteThemeFormAction, adminConfig)
	srv.Post("/admin/site/seo", http.SiteSEOFormAction, adminConfig)
	srv.Post("/admin/site/faqs", http.SiteFAQsFormAction, adminConfig)
	srv.Post("/admin/site/testimonials", http.SiteTestimonialsFormAction, adminConfig)
	srv.Post("/admin/site/integrations", http.SiteIntegrationsFormAction, adminConfig)
	srv.Post("/admin/site/publish", http.SitePublishFormAction, adminConfig)
	srv.Post("/admin/site/custom-domain", http.SiteCustomDomainFormAction, adminConfig)

	// Image uploads
	srv.Post("/admin/uploads/profile-image", http.UploadProfileImageAction, adminConfig)
	srv.Post("/admin/uploads/logo", http.UploadLogoAction, adminConfig)

	// Blog
	srv.Get("/admin/blog", http.BlogIndexAction, adminConfig)
	srv.Get("/admin/blog/new", http.BlogNewPageAction, adminConfig)
	srv.Post("/admin/blog", http.BlogCreateAction, adminConfig)
	srv.Get("/admin/blog/:id/edit", http.BlogEditPageAction, adminConfig)
	srv.Post("/admin/blog/:id", http.BlogUpdateAction, adminConfig)
	srv.Post("/admin/blog/:id/delete", http.BlogDeleteAction, adminConfig)

	// Statistics
	srv.Get("/admin/statistics", http.StatisticsPageAction, adminConfig)
	srv.Post("/admin/statistics/tracking-settings", http.TrackingSettingsFormAction, adminConfig)

	// Account
	srv.Get("/admin/account", http.AccountPageAction, adminConfig)
	srv.Post("/admin/account/change-password", http.AccountChangePasswordFormAction, adminConfig)
}
