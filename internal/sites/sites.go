// Package sites manages the public website attached to each professional
// profile: subdomain, theme, SEO fields, FAQs and testimonials.
package sites

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// SiteNotFoundError represents an error when a site is not found
type SiteNotFoundError struct {
	Subdomain string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("site not found for subdomain: %s", e.Subdomain)
}

// NewSiteNotFoundError creates a new SiteNotFoundError
func NewSiteNotFoundError(subdomain string) *SiteNotFoundError {
	return &SiteNotFoundError{Subdomain: subdomain}
}

// ThemeConfig is the visual configuration rendered into the public site.
type ThemeConfig struct {
	PrimaryColor    string `json:"primaryColor"`
	BackgroundColor string `json:"backgroundColor"`
	FontFamily      string `json:"fontFamily"`
}

// DefaultTheme is applied to sites created during onboarding.
var DefaultTheme = ThemeConfig{
	PrimaryColor:    "#4F46E5",
	BackgroundColor: "#FFFFFF",
	FontFamily:      "Inter",
}

func (tc *ThemeConfig) Scan(value interface{}) error {
	if value == nil {
		*tc = ThemeConfig{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, tc)
	case string:
		return json.Unmarshal([]byte(v), tc)
	default:
		return fmt.Errorf("cannot scan %T into ThemeConfig", value)
	}
}

func (tc ThemeConfig) Value() (driver.Value, error) {
	return json.Marshal(tc)
}

// Site represents one professional's public website.
type Site struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID uint   `gorm:"uniqueIndex;not null" json:"profile_id"`
	Subdomain string `gorm:"uniqueIndex;not null" json:"subdomain"`

	// CustomDomain is only honored on paid plans.
	CustomDomain string `gorm:"index" json:"custom_domain"`

	IsPublished bool `gorm:"default:false" json:"is_published"`

	SiteTitle       string `json:"site_title"`
	MetaDescription string `json:"meta_description"`
	MetaKeywords    string `json:"meta_keywords"`

	Theme ThemeConfig `gorm:"type:text" json:"theme"`

	// Third-party integration ids injected into the public pages.
	GoogleAnalyticsID  string `json:"google_analytics_id"`
	GoogleTagManagerID string `json:"gtm_id"`
	ClarityID          string `json:"clarity_id"`
	FacebookPixelID    string `json:"facebook_pixel_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SiteFAQ is one question/answer pair shown on the public site.
type SiteFAQ struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID   uint   `gorm:"index;not null" json:"site_id"`
	Question string `gorm:"not null" json:"question"`
	Answer   string `gorm:"not null" json:"answer"`
	Position int    `gorm:"default:0" json:"position"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SiteTestimonial is a patient testimonial displayed on the public site.
// Author names are stored as initials for privacy.
type SiteTestimonial struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID   uint   `gorm:"index;not null" json:"site_id"`
	Initials string `gorm:"not null" json:"initials"`
	Content  string `gorm:"not null" json:"content"`
	Rating   int    `gorm:"default:5" json:"rating"` // 1-5
	Position int    `gorm:"default:0" json:"position"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetSiteByID retrieves a site by its ID
func GetSiteByID(db *gorm.DB, id uint) (*Site, error) {
	var site Site
	if err := db.First(&site, id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSiteByProfileID retrieves the site owned by a profile.
func GetSiteByProfileID(db *gorm.DB, profileID uint) (*Site, error) {
	var site Site
	if err := db.Where("profile_id = ?", profileID).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSiteBySubdomain retrieves a site by exact subdomain match.
func GetSiteBySubdomain(db *gorm.DB, subdomain string) (*Site, error) {
	var site Site
	if err := db.Where("subdomain = ?", subdomain).First(&site).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewSiteNotFoundError(subdomain)
		}
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}
	return &site, nil
}

// GetSiteByHost resolves a site from a request host: custom domains first,
// then subdomains of the base domain.
func GetSiteByHost(db *gorm.DB, host, baseDomain string) (*Site, error) {
	var site Site
	err := db.Where("custom_domain = ?", host).First(&site).Error
	if err == nil {
		return &site, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}

	sub := SubdomainFromHost(host, baseDomain)
	if sub == "" {
		return nil, NewSiteNotFoundError(host)
	}
	return GetSiteBySubdomain(db, sub)
}

// CreateSite creates a new site
func CreateSite(db *gorm.DB, logger *slog.Logger, site *Site) error {
	if site.Theme == (ThemeConfig{}) {
		site.Theme = DefaultTheme
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(site).Error
	})
}

// UpdateSite updates an existing site
func UpdateSite(db *gorm.DB, logger *slog.Logger, site *Site) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Save(site).Error
	})
}

// SetPublished toggles the public visibility of a site.
func SetPublished(db *gorm.DB, logger *slog.Logger, siteID uint, published bool) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Model(&Site{}).Where("id = ?", siteID).Update("is_published", published)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SiteExists reports whether a site row with the given id exists. Used by
// the tracking API to reject events for unknown sites cheaply.
func SiteExists(db *gorm.DB, siteID uint) (bool, error) {
	var count int64
	if err := db.Model(&Site{}).Where("id = ?", siteID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetFAQs returns a site's FAQs ordered by position.
func GetFAQs(db *gorm.DB, siteID uint) ([]SiteFAQ, error) {
	var faqs []SiteFAQ
	if err := db.Where("site_id = ?", siteID).Order("position ASC, id ASC").Find(&faqs).Error; err != nil {
		return nil, fmt.Errorf("failed to get faqs: %w", err)
	}
	return faqs, nil
}

// ReplaceFAQs swaps the full FAQ list of a site in one write.
func ReplaceFAQs(db *gorm.DB, logger *slog.Logger, siteID uint, faqs []SiteFAQ) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&SiteFAQ{}).Error; err != nil {
			return err
		}
		for i := range faqs {
			faqs[i].ID = 0
			faqs[i].SiteID = siteID
			faqs[i].Position = i
		}
		if len(faqs) == 0 {
			return nil
		}
		return tx.Create(&faqs).Error
	})
}

// GetTestimonials returns a site's testimonials ordered by position.
func GetTestimonials(db *gorm.DB, siteID uint) ([]SiteTestimonial, error) {
	var ts []SiteTestimonial
	if err := db.Where("site_id = ?", siteID).Order("position ASC, id ASC").Find(&ts).Error; err != nil {
		return nil, fmt.Errorf("failed to get testimonials: %w", err)
	}
	return ts, nil
}

// ReplaceTestimonials swaps the full testimonial list of a site in one write.
func ReplaceTestimonials(db *gorm.DB, logger *slog.Logger, siteID uint, ts []SiteTestimonial) error {
	for _, t := range ts {
		if t.Rating < 1 || t.Rating > 5 {
			return fmt.Errorf("testimonial rating must be between 1 and 5, got %d", t.Rating)
		}
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&SiteTestimonial{}).Error; err != nil {
			return err
		}
		for i := range ts {
			ts[i].ID = 0
			ts[i].SiteID = siteID
			ts[i].Position = i
		}
		if len(ts) == 0 {
			return nil
		}
		return tx.Create(&ts).Error
	})
}
