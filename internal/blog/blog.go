// Package blog manages the posts professionals publish on their sites.
// Post limits depend on the subscription plan.
package blog

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"psibuilder/internal/sites"
	"psibuilder/internal/subscriptions"
)

// ErrPostLimitReached is returned when the site's plan does not allow more posts.
var ErrPostLimitReached = errors.New("blog post limit reached for current plan")

// Post is one blog entry on a professional's site.
type Post struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID           uint       `gorm:"not null;uniqueIndex:idx_posts_site_slug" json:"site_id"`
	Slug             string     `gorm:"not null;uniqueIndex:idx_posts_site_slug" json:"slug"`
	Title            string     `gorm:"not null" json:"title"`
	Content          string     `json:"content"`
	Excerpt          string     `json:"excerpt"`
	FeaturedImageURL string     `json:"featured_image_url"`
	IsPublished      bool       `gorm:"default:false" json:"is_published"`
	PublishedAt      *time.Time `json:"published_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetPostByID retrieves a post by its ID.
func GetPostByID(db *gorm.DB, id uint) (*Post, error) {
	var post Post
	if err := db.First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostBySlug retrieves a post by its slug within a site.
func GetPostBySlug(db *gorm.DB, siteID uint, slug string) (*Post, error) {
	var post Post
	if err := db.Where("site_id = ? AND slug = ?", siteID, slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostsForSite returns all posts of a site, newest first.
func GetPostsForSite(db *gorm.DB, siteID uint) ([]Post, error) {
	var posts []Post
	if err := db.Where("site_id = ?", siteID).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	return posts, nil
}

// GetPublishedPosts returns the published posts of a site, newest first.
func GetPublishedPosts(db *gorm.DB, siteID uint) ([]Post, error) {
	var posts []Post
	err := db.Where("site_id = ? AND is_published = ?", siteID, true).
		Order("published_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get published posts: %w", err)
	}
	return posts, nil
}

// CreatePost persists a new post after checking the plan's post limit for the
// site's owner. The slug is derived from the title and deduped within the site.
func CreatePost(db *gorm.DB, logger *slog.Logger, userID uint, post *Post) error {
	if post.Title == "" {
		return fmt.Errorf("post title cannot be empty")
	}

	plan := subscriptions.PlanForUser(db, userID)
	limit := subscriptions.PlanLimits(plan).BlogPosts
	if limit >= 0 {
		var count int64
		if err := db.Model(&Post{}).Where("site_id = ?", post.SiteID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}
		if count >= int64(limit) {
			return ErrPostLimitReached
		}
	}

	if post.Slug == "" {
		post.Slug = sites.Slugify(post.Title)
	}
	if post.Slug == "" {
		post.Slug = "post"
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		slug := post.Slug
		for i := 2; ; i++ {
			var count int64
			if err := tx.Model(&Post{}).Where("site_id = ? AND slug = ?", post.SiteID, slug).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				break
			}
			slug = fmt.Sprintf("%s-%d", post.Slug, i)
		}
		post.Slug = slug

		if post.IsPublished && post.PublishedAt == nil {
			now := time.Now().UTC()
			post.PublishedAt = &now
		}
		return tx.Create(post).Error
	})
}

// UpdatePost saves changes to an existing post.
func UpdatePost(db *gorm.DB, logger *slog.Logger, post *Post) error {
	if post.IsPublished && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Save(post).Error
	})
}

// DeletePost removes a post by its ID within a site.
func DeletePost(db *gorm.DB, logger *slog.Logger, siteID, postID uint) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Where("site_id = ?", siteID).Delete(&Post{}, postID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
