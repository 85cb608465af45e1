package http

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"gorm.io/gorm"

	"psibuilder/internal/config"
	"psibuilder/internal/onboarding"
	"psibuilder/internal/profiles"
)

// BasicInfoRequest is the first wizard step: who the professional is.
type BasicInfoRequest struct {
	FullName string `json:"full_name"`
	Gender   string `json:"gender"`
	Whatsapp string `json:"whatsapp"`
}

// CRPRequest carries the professional register number.
type CRPRequest struct {
	CRP string `json:"crp"`
}

// BioRequest carries both bios collected by the wizard.
type BioRequest struct {
	BioShort string `json:"bio_short"`
	Bio      string `json:"bio"`
}

// SpecialtiesRequest carries the list of practice areas.
type SpecialtiesRequest struct {
	Specialties []profiles.Specialty `json:"specialties"`
}

// currentOnboardingSession loads (or lazily creates) the wizard session for
// the authenticated user.
func currentOnboardingSession(ctx *cartridge.Context) (*onboarding.OnboardingSession, uint, error) {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return nil, 0, fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	db := ctx.DB()

	session, err := onboarding.GetSessionForUser(db, userID)
	if err == nil {
		return session, userID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, userID, err
	}

	cfg := config.GetConfig()
	timeout := cfg.GetOnboardingSessionTimeout()
	session, err = onboarding.CreateOnboardingSession(db, uuid.NewString(), userID, timeout)
	if err != nil {
		return nil, userID, err
	}

	ctx.Logger.Info("Onboarding session started",
		slog.Uint64("userId", uint64(userID)),
		slog.String("sessionId", session.ID))
	return session, userID, nil
}

// OnboardingPageAction serves the onboarding wizard page
func OnboardingPageAction(ctx *cartridge.Context) error {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	db := ctx.DB()

	required, err := onboarding.IsOnboardingRequired(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to check if onboarding is required", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("System error")
	}
	if !required {
		flash.SetFlash(ctx.Ctx, "info", "Seu site já está configurado")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	session, _, err := currentOnboardingSession(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load onboarding session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("System error")
	}

	return inertia.RenderPage(ctx.Ctx, "Onboarding", inertia.Props{
		"step":       session.Step,
		"data":       session.Data,
		"expires_at": session.ExpiresAt,
	})
}

// OnboardingStatusAction returns the current onboarding status
func OnboardingStatusAction(ctx *cartridge.Context) error {
	session, _, err := currentOnboardingSession(ctx)
	if err != nil {
		return onboardingError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"success":    true,
		"step":       session.Step,
		"completed":  session.Completed,
		"expires_at": session.ExpiresAt,
	})
}

// OnboardingBasicInfoAction handles the basic info step
func OnboardingBasicInfoAction(ctx *cartridge.Context) error {
	var req BasicInfoRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request format"})
	}

	data := onboarding.OnboardingData{
		FullName: strings.TrimSpace(req.FullName),
		Gender:   req.Gender,
		Whatsapp: digitsOnly(req.Whatsapp),
	}
	return advanceOnboarding(ctx, onboarding.StepBasicInfo, data)
}

// OnboardingCRPAction handles the professional register step
func OnboardingCRPAction(ctx *cartridge.Context) error {
	var req CRPRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request format"})
	}

	data := onboarding.OnboardingData{CRP: strings.TrimSpace(req.CRP)}
	return advanceOnboarding(ctx, onboarding.StepCRP, data)
}

// OnboardingBioAction handles the bio step
func OnboardingBioAction(ctx *cartridge.Context) error {
	var req BioRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request format"})
	}

	data := onboarding.OnboardingData{
		BioShort: strings.TrimSpace(req.BioShort),
		Bio:      strings.TrimSpace(req.Bio),
	}
	return advanceOnboarding(ctx, onboarding.StepBio, data)
}

// OnboardingSpecialtiesAction handles the final data step. Advancing past it
// completes the wizard: the profile and the published site are created here.
func OnboardingSpecialtiesAction(ctx *cartridge.Context) error {
	var req SpecialtiesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request format"})
	}

	session, _, err := currentOnboardingSession(ctx)
	if err != nil {
		return onboardingError(ctx, err)
	}

	db := ctx.DB()

	data := onboarding.OnboardingData{Specialties: profiles.SpecialtyList(req.Specialties)}
	if err := onboarding.AdvanceSession(db, session, onboarding.StepSpecialties, data); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := onboarding.CompleteOnboarding(db, ctx.Logger, session)
	if err != nil {
		ctx.Logger.Error("Failed to complete onboarding", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to complete onboarding: %v", err),
		})
	}

	cfg := config.GetConfig()
	ctx.Logger.Info("Onboarding completed",
		slog.Uint64("profileId", uint64(result.ProfileID)),
		slog.Uint64("siteId", uint64(result.SiteID)),
		slog.String("subdomain", result.Subdomain))

	return ctx.JSON(fiber.Map{
		"success":   true,
		"step":      onboarding.StepCompleted,
		"subdomain": result.Subdomain,
		"site_url":  cfg.SiteURL(result.Subdomain),
	})
}

// advanceOnboarding runs one intermediate wizard step and reports the next one.
func advanceOnboarding(ctx *cartridge.Context, step onboarding.OnboardingStep, data onboarding.OnboardingData) error {
	session, _, err := currentOnboardingSession(ctx)
	if err != nil {
		return onboardingError(ctx, err)
	}

	db := ctx.DB()

	if err := onboarding.AdvanceSession(db, session, step, data); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"step":    session.Step,
	})
}

func onboardingError(ctx *cartridge.Context, err error) error {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	ctx.Logger.Error("Onboarding session error", slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load onboarding session",
	})
}

// digitsOnly strips formatting from phone numbers ("(11) 98765-4321" →
// "11987654321").
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
