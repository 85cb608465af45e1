// Package profiles stores the professional profile attached to each account:
// personal data, CRP register, bios, specialties and service details shown on
// the public site.
package profiles

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Gender values accepted on the profile.
const (
	GenderMale         = "male"
	GenderFemale       = "female"
	GenderOther        = "other"
	GenderNotSpecified = "not_specified"
)

// MaxShortBioLength caps the short bio shown on cards and previews.
const MaxShortBioLength = 150

// CRPPattern matches a CRP register number like "06/12345" (region/number).
var CRPPattern = regexp.MustCompile(`^\d{2}/\d{4,6}$`)

// Specialty is one area of practice listed on the site.
type Specialty struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// SpecialtyList is stored as a JSON column.
type SpecialtyList []Specialty

func (sl *SpecialtyList) Scan(value interface{}) error {
	if value == nil {
		*sl = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, sl)
	case string:
		return json.Unmarshal([]byte(v), sl)
	default:
		return fmt.Errorf("cannot scan %T into SpecialtyList", value)
	}
}

func (sl SpecialtyList) Value() (driver.Value, error) {
	if sl == nil {
		return json.Marshal(SpecialtyList{})
	}
	return json.Marshal(sl)
}

// Profile holds everything a professional fills in about themselves.
// One profile per user account.
type Profile struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName string `gorm:"not null" json:"full_name" validate:"required"`
	Gender   string `gorm:"default:'not_specified'" json:"gender" validate:"omitempty,oneof=male female other not_specified"`
	Whatsapp string `json:"whatsapp"` // digits only, 10-11 chars
	CRP      string `json:"crp" validate:"crp"`

	BioShort string `json:"bio_short" validate:"max=150"`
	Bio      string `json:"bio"`

	Specialties SpecialtyList `gorm:"type:text" json:"specialties"`

	ProfileImageURL string `json:"profile_image_url"`
	LogoImageURL    string `json:"logo_image_url"`

	// Service details
	OfferOnline   bool   `gorm:"default:true" json:"offer_online"`
	OfferInPerson bool   `gorm:"default:false" json:"offer_in_person"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	MapsEmbedURL  string `json:"maps_embed_url"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfileNotFoundError represents an error when a profile is not found.
type ProfileNotFoundError struct {
	UserID uint
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile not found for user: %d", e.UserID)
}

// NewProfileNotFoundError creates a new ProfileNotFoundError
func NewProfileNotFoundError(userID uint) *ProfileNotFoundError {
	return &ProfileNotFoundError{UserID: userID}
}

// GetProfileByUserID retrieves the profile attached to a user account.
func GetProfileByUserID(db *gorm.DB, userID uint) (*Profile, error) {
	var profile Profile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewProfileNotFoundError(userID)
		}
		return nil, fmt.Errorf("unexpected error querying profile: %w", err)
	}
	return &profile, nil
}

// GetProfileByID retrieves a profile by its primary key.
func GetProfileByID(db *gorm.DB, id uint) (*Profile, error) {
	var profile Profile
	if err := db.First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile persists a new profile.
func CreateProfile(db *gorm.DB, logger *slog.Logger, profile *Profile) error {
	if err := ValidateProfile(profile); err != nil {
		return err
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(profile).Error
	})
}

// UpdateProfile saves changes to an existing profile.
func UpdateProfile(db *gorm.DB, logger *slog.Logger, profile *Profile) error {
	if err := ValidateProfile(profile); err != nil {
		return err
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Save(profile).Error
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("crp", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || CRPPattern.MatchString(s)
	})
	return v
}

// ValidateProfile checks the field constraints shared by create and update.
func ValidateProfile(p *Profile) error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			switch {
			case fe.Field() == "FullName":
				return fmt.Errorf("full name cannot be empty")
			case fe.Tag() == "crp":
				return fmt.Errorf("invalid CRP format: %s", p.CRP)
			case fe.Field() == "BioShort":
				return fmt.Errorf("short bio exceeds %d characters", MaxShortBioLength)
			case fe.Field() == "Gender":
				return fmt.Errorf("invalid gender: %s", p.Gender)
			}
		}
		return err
	}
	return nil
}
