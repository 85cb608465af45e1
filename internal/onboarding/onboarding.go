// Package onboarding drives the multi-step setup flow a professional walks
// through after signup, ending with their profile and published site.
package onboarding

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"psibuilder/internal/profiles"
)

// OnboardingStep represents the current step in the onboarding process
type OnboardingStep string

const (
	StepBasicInfo   OnboardingStep = "basic_info"
	StepCRP         OnboardingStep = "crp"
	StepBio         OnboardingStep = "bio"
	StepSpecialties OnboardingStep = "specialties"
	StepCompleted   OnboardingStep = "completed"
)

// MinBioLength is the shortest accepted long bio.
const MinBioLength = 10

// OnboardingData holds the collected onboarding information
type OnboardingData struct {
	FullName    string                 `json:"full_name,omitempty"`
	Gender      string                 `json:"gender,omitempty"`
	Whatsapp    string                 `json:"whatsapp,omitempty"`
	CRP         string                 `json:"crp,omitempty"`
	BioShort    string                 `json:"bio_short,omitempty"`
	Bio         string                 `json:"bio,omitempty"`
	Specialties profiles.SpecialtyList `json:"specialties,omitempty"`
}

// Scan implements sql.Scanner interface for OnboardingData
func (od *OnboardingData) Scan(value interface{}) error {
	if value == nil {
		*od = OnboardingData{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, od)
	case string:
		return json.Unmarshal([]byte(v), od)
	default:
		return fmt.Errorf("cannot scan %T into OnboardingData", value)
	}
}

// Value implements driver.Valuer interface for OnboardingData
func (od OnboardingData) Value() (driver.Value, error) {
	return json.Marshal(od)
}

// OnboardingSession tracks the multi-step onboarding process
type OnboardingSession struct {
	ID        string         `gorm:"primaryKey;type:text"`
	UserID    uint           `gorm:"uniqueIndex;not null"`
	Step      OnboardingStep `gorm:"type:text;not null"`
	Data      OnboardingData `gorm:"type:text"`
	Completed bool           `gorm:"default:false"`
	ExpiresAt time.Time      `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime:milli"`
}

// IsExpired checks if the onboarding session has expired
func (os *OnboardingSession) IsExpired() bool {
	return time.Now().After(os.ExpiresAt)
}

// CreateOnboardingSession starts a new session for a user.
func CreateOnboardingSession(db *gorm.DB, sessionID string, userID uint, timeout time.Duration) (*OnboardingSession, error) {
	session := &OnboardingSession{
		ID:        sessionID,
		UserID:    userID,
		Step:      StepBasicInfo,
		Data:      OnboardingData{},
		Completed: false,
		ExpiresAt: time.Now().Add(timeout),
	}

	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create onboarding session: %w", err)
	}

	return session, nil
}

// GetOnboardingSession retrieves an active onboarding session
func GetOnboardingSession(db *gorm.DB, sessionID string) (*OnboardingSession, error) {
	var session OnboardingSession
	err := db.Where("id = ? AND completed = ? AND expires_at > ?", sessionID, false, time.Now()).
		First(&session).Error

	if err != nil {
		return nil, err
	}

	return &session, nil
}

// GetSessionForUser retrieves a user's active onboarding session.
func GetSessionForUser(db *gorm.DB, userID uint) (*OnboardingSession, error) {
	var session OnboardingSession
	err := db.Where("user_id = ? AND completed = ? AND expires_at > ?", userID, false, time.Now()).
		First(&session).Error

	if err != nil {
		return nil, err
	}

	return &session, nil
}

// AdvanceSession validates the submitted step's fields, merges them into the
// session data and moves to the next step. Steps cannot be skipped: the
// submitted step must match the session's current step.
func AdvanceSession(db *gorm.DB, session *OnboardingSession, step OnboardingStep, data OnboardingData) error {
	if session.Step != step {
		return fmt.Errorf("out-of-order onboarding step: session at %s, submitted %s", session.Step, step)
	}

	next, err := validateStep(step, &data)
	if err != nil {
		return err
	}

	merged := session.Data
	switch step {
	case StepBasicInfo:
		merged.FullName = data.FullName
		merged.Gender = data.Gender
		merged.Whatsapp = data.Whatsapp
	case StepCRP:
		merged.CRP = data.CRP
	case StepBio:
		merged.BioShort = data.BioShort
		merged.Bio = data.Bio
	case StepSpecialties:
		merged.Specialties = data.Specialties
	}

	result := db.Model(&OnboardingSession{}).
		Where("id = ? AND completed = ? AND expires_at > ?", session.ID, false, time.Now()).
		Updates(map[string]interface{}{
			"step": next,
			"data": merged,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update onboarding session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("onboarding session not found or expired")
	}

	session.Step = next
	session.Data = merged
	return nil
}

func validateStep(step OnboardingStep, data *OnboardingData) (OnboardingStep, error) {
	switch step {
	case StepBasicInfo:
		if data.FullName == "" {
			return "", fmt.Errorf("full name is required")
		}
		switch data.Gender {
		case profiles.GenderMale, profiles.GenderFemale, profiles.GenderOther, profiles.GenderNotSpecified:
		default:
			return "", fmt.Errorf("invalid gender: %s", data.Gender)
		}
		if n := len(data.Whatsapp); n < 10 || n > 11 {
			return "", fmt.Errorf("whatsapp number must have 10 or 11 digits")
		}
		for _, r := range data.Whatsapp {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("whatsapp number must contain only digits")
			}
		}
		return StepCRP, nil

	case StepCRP:
		if !profiles.CRPPattern.MatchString(data.CRP) {
			return "", fmt.Errorf("invalid CRP format: %s", data.CRP)
		}
		return StepBio, nil

	case StepBio:
		if len([]rune(data.BioShort)) > profiles.MaxShortBioLength {
			return "", fmt.Errorf("short bio exceeds %d characters", profiles.MaxShortBioLength)
		}
		if len([]rune(data.Bio)) < MinBioLength {
			return "", fmt.Errorf("bio must have at least %d characters", MinBioLength)
		}
		return StepSpecialties, nil

	case StepSpecialties:
		if len(data.Specialties) == 0 {
			return "", fmt.Errorf("select at least one specialty")
		}
		return StepCompleted, nil
	}

	return "", fmt.Errorf("unknown onboarding step: %s", step)
}

// CompleteOnboardingSession marks the session as completed
func CompleteOnboardingSession(db *gorm.DB, sessionID string) error {
	result := db.Model(&OnboardingSession{}).
		Where("id = ? AND completed = ?", sessionID, false).
		Update("completed", true)

	if result.Error != nil {
		return fmt.Errorf("failed to complete onboarding session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("onboarding session not found")
	}

	return nil
}

// CleanupExpiredOnboardingSessions removes expired onboarding sessions
func CleanupExpiredOnboardingSessions(db *gorm.DB) error {
	result := db.Where("expires_at < ?", time.Now()).Delete(&OnboardingSession{})
	return result.Error
}

// IsOnboardingRequired reports whether the user still has to finish
// onboarding (no profile persisted yet).
func IsOnboardingRequired(db *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := db.Model(&profiles.Profile{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}

	return count == 0, nil
}
