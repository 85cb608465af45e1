package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"psibuilder/internal/analytics"
	"psibuilder/internal/blog"
	"psibuilder/internal/onboarding"
	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
	"psibuilder/internal/subscriptions"
	"psibuilder/internal/users"
)

const (
	demoEmail    = "demo@psibuilder.com.br"
	demoPassword = "password"
	seededDays   = 14
)

// Seeder populates a development database with a demo professional, their
// published site, a few blog posts and two weeks of analytics counters.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	DailyHits int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, dailyHits int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if dailyHits <= 0 {
		dailyHits = 40
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
		DailyHits: dailyHits,
	}
}

// Run executes the seeding process
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("dailyHits", s.DailyHits))

	user, err := s.seedUser()
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	site, err := s.seedProfileAndSite(user)
	if err != nil {
		return fmt.Errorf("failed to seed profile and site: %w", err)
	}

	if err := s.seedSubscription(user.ID); err != nil {
		return fmt.Errorf("failed to seed subscription: %w", err)
	}

	if err := s.seedBlogPosts(user.ID, site.ID); err != nil {
		return fmt.Errorf("failed to seed blog posts: %w", err)
	}

	if err := s.seedAnalytics(ctx, site.ID); err != nil {
		return fmt.Errorf("failed to seed analytics: %w", err)
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedUser ensures the demo user exists
func (s *Seeder) seedUser() (*users.User, error) {
	db := s.DBManager.GetConnection()

	user, err := users.FindByEmail(db, demoEmail)
	if err == nil {
		s.Logger.Info("Demo user already exists", slog.String("email", user.Email))
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing user: %w", err)
	}

	s.Logger.Info("Creating demo user")
	user, err = users.CreateUser(db, demoEmail, demoPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}

	s.Logger.Info("Demo user created successfully", slog.Uint64("id", uint64(user.ID)))
	return user, nil
}

// seedProfileAndSite runs the onboarding completion path so the seeded data
// goes through the same code as a real signup.
func (s *Seeder) seedProfileAndSite(user *users.User) (*sites.Site, error) {
	db := s.DBManager.GetConnection()

	if profile, err := profiles.GetProfileByUserID(db, user.ID); err == nil {
		site, err := sites.GetSiteByProfileID(db, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing demo site: %w", err)
		}
		s.Logger.Info("Demo site already exists", slog.String("subdomain", site.Subdomain))
		return site, nil
	}

	session, err := onboarding.CreateOnboardingSession(db, fmt.Sprintf("seed-%d", user.ID), user.ID, 48*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create onboarding session: %w", err)
	}

	steps := []struct {
		step onboarding.OnboardingStep
		data onboarding.OnboardingData
	}{
		{onboarding.StepBasicInfo, onboarding.OnboardingData{
			FullName: "Ana Beatriz Carvalho",
			Gender:   profiles.GenderFemale,
			Whatsapp: "11987654321",
		}},
		{onboarding.StepCRP, onboarding.OnboardingData{CRP: "06/54321"}},
		{onboarding.StepBio, onboarding.OnboardingData{
			BioShort: "Psicóloga clínica com 10 anos de experiência em terapia cognitivo-comportamental.",
			Bio:      "Atendo adultos e adolescentes em São Paulo e online. Minha abordagem é baseada na terapia cognitivo-comportamental, com foco em ansiedade, depressão e desenvolvimento pessoal.",
		}},
		{onboarding.StepSpecialties, onboarding.OnboardingData{
			Specialties: profiles.SpecialtyList{
				{Name: "Ansiedade", Description: "Tratamento de transtornos de ansiedade", Icon: "brain"},
				{Name: "Depressão", Description: "Acompanhamento de quadros depressivos", Icon: "heart"},
				{Name: "Terapia de Casal", Description: "Mediação e fortalecimento de vínculos", Icon: "users"},
			},
		}},
	}

	for _, st := range steps {
		if err := onboarding.AdvanceSession(db, session, st.step, st.data); err != nil {
			return nil, fmt.Errorf("failed to advance onboarding step %s: %w", st.step, err)
		}
	}

	result, err := onboarding.CompleteOnboarding(db, s.Logger, session)
	if err != nil {
		return nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}

	site, err := sites.GetSiteByID(db, result.SiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seeded site: %w", err)
	}

	s.Logger.Info("Demo site created successfully", slog.String("subdomain", site.Subdomain))
	return site, nil
}

func (s *Seeder) seedSubscription(userID uint) error {
	db := s.DBManager.GetConnection()

	if _, err := subscriptions.GetByUserID(db, userID); err == nil {
		s.Logger.Info("Demo subscription already exists")
		return nil
	}

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)
	sub := &subscriptions.Subscription{
		UserID:                 userID,
		Plan:                   subscriptions.PlanPro,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: "seed-preapproval-1",
		CurrentPeriodStart:     &now,
		CurrentPeriodEnd:       &periodEnd,
	}
	if err := subscriptions.Upsert(db, s.Logger, sub); err != nil {
		return err
	}

	s.Logger.Info("Demo subscription created", slog.String("plan", sub.Plan))
	return nil
}

func (s *Seeder) seedBlogPosts(userID uint, siteID uint) error {
	db := s.DBManager.GetConnection()

	existing, err := blog.GetPostsForSite(db, siteID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.Logger.Info("Demo blog posts already exist", slog.Int("count", len(existing)))
		return nil
	}

	posts := []blog.Post{
		{
			SiteID:      siteID,
			Title:       "Como saber se é hora de procurar terapia",
			Excerpt:     "Sinais comuns de que o acompanhamento psicológico pode ajudar.",
			Content:     "<p>Muitas pessoas adiam a busca por terapia por acharem que o problema não é grave o suficiente. Na prática, qualquer sofrimento que atrapalhe sua rotina já é motivo para procurar ajuda.</p>",
			IsPublished: true,
		},
		{
			SiteID:      siteID,
			Title:       "Ansiedade: o que é e como a TCC pode ajudar",
			Excerpt:     "Entenda o funcionamento da ansiedade e as ferramentas da terapia cognitivo-comportamental.",
			Content:     "<p>A ansiedade é uma resposta natural do corpo, mas quando se torna constante ela merece atenção. A TCC trabalha identificando padrões de pensamento que alimentam o ciclo ansioso.</p>",
			IsPublished: true,
		},
		{
			SiteID:      siteID,
			Title:       "Terapia online funciona?",
			Excerpt:     "O que dizem as pesquisas sobre atendimento psicológico à distância.",
			Content:     "<p>Estudos recentes mostram que a terapia online tem eficácia comparável ao atendimento presencial para a maioria dos quadros, além de facilitar o acesso.</p>",
			IsPublished: false,
		},
	}

	for i := range posts {
		if err := blog.CreatePost(db, s.Logger, userID, &posts[i]); err != nil {
			return fmt.Errorf("failed to create post %q: %w", posts[i].Title, err)
		}
	}

	s.Logger.Info("Demo blog posts created", slog.Int("count", len(posts)))
	return nil
}

// seedAnalytics records two weeks of traffic through the same path the
// tracking endpoint uses, so both counter tables get realistic rows.
func (s *Seeder) seedAnalytics(ctx context.Context, siteID uint) error {
	db := s.DBManager.GetConnection()
	referrers := seedReferrers()

	for daysAgo := seededDays - 1; daysAgo >= 0; daysAgo-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		day := time.Now().UTC().AddDate(0, 0, -daysAgo)
		hits := s.DailyHits/2 + rand.IntN(s.DailyHits)

		for i := 0; i < hits; i++ {
			referrer := referrers[rand.IntN(len(referrers))]

			input := analytics.CollectEventInput{
				SiteID:    siteID,
				EventType: analytics.EventTypePageView,
				Referrer:  referrer,
			}
			if err := analytics.RecordEvent(db, s.Logger, input, day); err != nil {
				s.Logger.Error("Failed to record seeded page view", slog.Any("error", err))
				continue
			}

			// Roughly 60% of page views come from distinct visitors.
			if rand.Float64() < 0.6 {
				input.EventType = analytics.EventTypeUniqueVisitor
				if err := analytics.RecordEvent(db, s.Logger, input, day); err != nil {
					s.Logger.Error("Failed to record seeded visitor", slog.Any("error", err))
				}
			}

			if rand.Float64() < 0.1 {
				input.EventType = analytics.EventTypeWhatsappClick
				if err := analytics.RecordEvent(db, s.Logger, input, day); err != nil {
					s.Logger.Error("Failed to record seeded whatsapp click", slog.Any("error", err))
				}
			}

			if rand.Float64() < 0.05 {
				input.EventType = analytics.EventTypeCTAClick
				if err := analytics.RecordEvent(db, s.Logger, input, day); err != nil {
					s.Logger.Error("Failed to record seeded cta click", slog.Any("error", err))
				}
			}
		}
	}

	s.Logger.Info("Seeded analytics counters", slog.Int("days", seededDays))
	return nil
}

// seedReferrers returns a mix of known sources, direct visits and long-tail
// domains so the top referrers widget has something to rank.
func seedReferrers() []string {
	return []string{
		"", // Direct visit
		"",
		"https://www.google.com/search?q=psicologa+sp",
		"https://www.instagram.com/",
		"https://l.instagram.com/",
		"https://m.facebook.com/",
		"https://www.linkedin.com/feed/",
		"https://chat.whatsapp.com/",
		"https://psicologiaviva.com.br/blog/post",
	}
}
