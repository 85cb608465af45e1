package onboarding_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"psibuilder/internal/onboarding"
	"psibuilder/internal/profiles"
	"psibuilder/internal/sites"
	"psibuilder/internal/users"
)

// setupTestDB creates an in-memory SQLite database and migrates necessary schemas
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&onboarding.OnboardingSession{},
		&users.User{},
		&profiles.Profile{},
		&sites.Site{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func onboardingTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func validBasicInfo() onboarding.OnboardingData {
	return onboarding.OnboardingData{
		FullName: "João da Silva",
		Gender:   profiles.GenderMale,
		Whatsapp: "11999990000",
	}
}

func completeFlow(t *testing.T, db *gorm.DB, session *onboarding.OnboardingSession) {
	t.Helper()

	require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepBasicInfo, validBasicInfo()))
	require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepCRP, onboarding.OnboardingData{CRP: "06/12345"}))
	require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepBio, onboarding.OnboardingData{
		BioShort: "Psicólogo clínico",
		Bio:      "Atendimento com foco em terapia cognitivo-comportamental.",
	}))
	require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepSpecialties, onboarding.OnboardingData{
		Specialties: profiles.SpecialtyList{{Name: "Ansiedade"}},
	}))
}

func TestCreateAndGetOnboardingSession(t *testing.T) {
	db := setupTestDB(t)

	session, err := onboarding.CreateOnboardingSession(db, "session-1", 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, onboarding.StepBasicInfo, session.Step)
	assert.False(t, session.Completed)

	found, err := onboarding.GetOnboardingSession(db, "session-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	byUser, err := onboarding.GetSessionForUser(db, 1)
	require.NoError(t, err)
	assert.Equal(t, session.ID, byUser.ID)
}

func TestAdvanceSessionValidatesSteps(t *testing.T) {
	db := setupTestDB(t)

	session, err := onboarding.CreateOnboardingSession(db, "session-2", 2, time.Hour)
	require.NoError(t, err)

	t.Run("rejects skipping ahead", func(t *testing.T) {
		err := onboarding.AdvanceSession(db, session, onboarding.StepBio, onboarding.OnboardingData{Bio: "long enough bio"})
		assert.Error(t, err)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		err := onboarding.AdvanceSession(db, session, onboarding.StepBasicInfo, onboarding.OnboardingData{
			Gender:   profiles.GenderFemale,
			Whatsapp: "11999990000",
		})
		assert.Error(t, err)
	})

	t.Run("rejects short whatsapp", func(t *testing.T) {
		data := validBasicInfo()
		data.Whatsapp = "123"
		err := onboarding.AdvanceSession(db, session, onboarding.StepBasicInfo, data)
		assert.Error(t, err)
	})

	t.Run("accepts valid basic info", func(t *testing.T) {
		require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepBasicInfo, validBasicInfo()))
		assert.Equal(t, onboarding.StepCRP, session.Step)
	})

	t.Run("rejects malformed CRP", func(t *testing.T) {
		err := onboarding.AdvanceSession(db, session, onboarding.StepCRP, onboarding.OnboardingData{CRP: "123456"})
		assert.Error(t, err)
	})

	t.Run("accepts valid CRP", func(t *testing.T) {
		require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepCRP, onboarding.OnboardingData{CRP: "06/12345"}))
		assert.Equal(t, onboarding.StepBio, session.Step)
	})

	t.Run("rejects too-short bio", func(t *testing.T) {
		err := onboarding.AdvanceSession(db, session, onboarding.StepBio, onboarding.OnboardingData{Bio: "curto"})
		assert.Error(t, err)
	})

	t.Run("advances through bio and specialties", func(t *testing.T) {
		require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepBio, onboarding.OnboardingData{
			BioShort: "Psicólogo",
			Bio:      "Atendimento online e presencial.",
		}))
		require.NoError(t, onboarding.AdvanceSession(db, session, onboarding.StepSpecialties, onboarding.OnboardingData{
			Specialties: profiles.SpecialtyList{{Name: "Ansiedade"}, {Name: "Depressão"}},
		}))
		assert.Equal(t, onboarding.StepCompleted, session.Step)
	})
}

func TestCompleteOnboardingCreatesProfileAndSite(t *testing.T) {
	db := setupTestDB(t)
	logger := onboardingTestLogger()

	session, err := onboarding.CreateOnboardingSession(db, "session-3", 3, time.Hour)
	require.NoError(t, err)
	completeFlow(t, db, session)

	result, err := onboarding.CompleteOnboarding(db, logger, session)
	require.NoError(t, err)
	assert.Equal(t, "joao-da-silva", result.Subdomain)

	profile, err := profiles.GetProfileByUserID(db, 3)
	require.NoError(t, err)
	assert.Equal(t, "João da Silva", profile.FullName)
	assert.Len(t, profile.Specialties, 1)

	site, err := sites.GetSiteBySubdomain(db, "joao-da-silva")
	require.NoError(t, err)
	assert.True(t, site.IsPublished)
	assert.Equal(t, profile.ID, site.ProfileID)

	required, err := onboarding.IsOnboardingRequired(db, 3)
	require.NoError(t, err)
	assert.False(t, required)

	// Session is consumed.
	_, err = onboarding.GetOnboardingSession(db, "session-3")
	assert.Error(t, err)
}

func TestCompleteOnboardingRequiresFinalStep(t *testing.T) {
	db := setupTestDB(t)
	logger := onboardingTestLogger()

	session, err := onboarding.CreateOnboardingSession(db, "session-4", 4, time.Hour)
	require.NoError(t, err)

	_, err = onboarding.CompleteOnboarding(db, logger, session)
	assert.Error(t, err)
}

func TestCleanupExpiredOnboardingSessions(t *testing.T) {
	db := setupTestDB(t)

	_, err := onboarding.CreateOnboardingSession(db, "fresh", 5, time.Hour)
	require.NoError(t, err)
	expired, err := onboarding.CreateOnboardingSession(db, "stale", 6, -time.Minute)
	require.NoError(t, err)
	assert.True(t, expired.IsExpired())

	require.NoError(t, onboarding.CleanupExpiredOnboardingSessions(db))

	var count int64
	require.NoError(t, db.Model(&onboarding.OnboardingSession{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
