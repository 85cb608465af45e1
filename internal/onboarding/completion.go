package onboarding

import (
	"fmt"

	"log/slog"

	"gorm.io/gorm"

	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
)

// CompletionResult contains the results of completing onboarding
type CompletionResult struct {
	ProfileID uint
	SiteID    uint
	Subdomain string
}

// CompleteOnboarding finishes the flow: persists the collected profile,
// generates a unique subdomain from the professional's name and creates the
// published site. The session must be at the final step.
func CompleteOnboarding(db *gorm.DB, logger *slog.Logger, session *OnboardingSession) (*CompletionResult, error) {
	if session.Step != StepCompleted {
		return nil, fmt.Errorf("onboarding not finished: session at step %s", session.Step)
	}

	profile := &profiles.Profile{
		UserID:      session.UserID,
		FullName:    session.Data.FullName,
		Gender:      session.Data.Gender,
		Whatsapp:    session.Data.Whatsapp,
		CRP:         session.Data.CRP,
		BioShort:    session.Data.BioShort,
		Bio:         session.Data.Bio,
		Specialties: session.Data.Specialties,
		OfferOnline: true,
	}
	if err := profiles.CreateProfile(db, logger, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	subdomain, err := sites.GenerateSubdomain(db, profile.FullName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subdomain: %w", err)
	}

	site := &sites.Site{
		ProfileID:       profile.ID,
		Subdomain:       subdomain,
		IsPublished:     true,
		SiteTitle:       profile.FullName,
		MetaDescription: profile.BioShort,
		Theme:           sites.DefaultTheme,
	}
	if err := sites.CreateSite(db, logger, site); err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	if err := CompleteOnboardingSession(db, session.ID); err != nil {
		return nil, err
	}

	return &CompletionResult{
		ProfileID: profile.ID,
		SiteID:    site.ID,
		Subdomain: subdomain,
	}, nil
}
