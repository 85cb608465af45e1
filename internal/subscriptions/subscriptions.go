// Package subscriptions tracks each account's plan and the gated feature
// limits, and maps payment-provider statuses into plan state.
package subscriptions

import (
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Plans.
const (
	PlanFree   = "free"
	PlanBasico = "basico"
	PlanPro    = "pro"
)

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
	StatusInactive  = "inactive"
)

// Subscription is one account's plan state. One row per user; accounts
// without a row are on the free plan.
type Subscription struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Plan   string `gorm:"default:'free'" json:"plan"`
	Status string `gorm:"default:'inactive'" json:"status"`

	// Provider-side identifiers for webhook reconciliation.
	ProviderSubscriptionID string `gorm:"index" json:"provider_subscription_id"`
	ProviderPaymentID      string `json:"provider_payment_id"`

	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Limits describes what a plan allows. BlogPosts of -1 means unlimited.
type Limits struct {
	BlogPosts    int
	CustomDomain bool
	Analytics    bool
}

var planLimits = map[string]Limits{
	PlanFree:   {BlogPosts: 5, CustomDomain: false, Analytics: false},
	PlanBasico: {BlogPosts: 20, CustomDomain: false, Analytics: true},
	PlanPro:    {BlogPosts: -1, CustomDomain: true, Analytics: true},
}

// PlanLimits returns the feature limits of a plan; unknown plans get the
// free tier.
func PlanLimits(plan string) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// PlanState pairs the plan with its status as derived from a provider event.
type PlanState struct {
	Plan   string
	Status string
}

// subscriptionStatusMap translates provider subscription (preapproval)
// statuses. Anything unmapped drops the account back to free/inactive.
var subscriptionStatusMap = map[string]PlanState{
	"authorized": {Plan: PlanPro, Status: StatusActive},
	"paused":     {Plan: PlanPro, Status: StatusPaused},
	"cancelled":  {Plan: PlanFree, Status: StatusCancelled},
	"pending":    {Plan: PlanFree, Status: StatusPending},
}

// paymentStatusMap translates provider payment statuses into subscription
// statuses without changing the plan.
var paymentStatusMap = map[string]string{
	"approved":   StatusActive,
	"pending":    StatusPending,
	"in_process": StatusPending,
	"rejected":   StatusInactive,
	"cancelled":  StatusInactive,
}

// MapSubscriptionStatus resolves a provider preapproval status to plan state.
func MapSubscriptionStatus(providerStatus string) PlanState {
	if s, ok := subscriptionStatusMap[providerStatus]; ok {
		return s
	}
	return PlanState{Plan: PlanFree, Status: StatusInactive}
}

// MapPaymentStatus resolves a provider payment status; the second return is
// false for statuses that should not change the subscription.
func MapPaymentStatus(providerStatus string) (string, bool) {
	s, ok := paymentStatusMap[providerStatus]
	return s, ok
}

// GetByUserID retrieves a user's subscription row.
func GetByUserID(db *gorm.DB, userID uint) (*Subscription, error) {
	var sub Subscription
	if err := db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByProviderSubscriptionID retrieves a subscription by the provider-side id.
func GetByProviderSubscriptionID(db *gorm.DB, providerID string) (*Subscription, error) {
	var sub Subscription
	if err := db.Where("provider_subscription_id = ?", providerID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// PlanForUser returns the user's effective plan: the subscription's plan when
// it is active or paused, free otherwise.
func PlanForUser(db *gorm.DB, userID uint) string {
	sub, err := GetByUserID(db, userID)
	if err != nil {
		return PlanFree
	}
	switch sub.Status {
	case StatusActive, StatusPaused:
		return sub.Plan
	}
	return PlanFree
}

// Upsert writes the subscription row for a user, creating it on first sight.
func Upsert(db *gorm.DB, logger *slog.Logger, sub *Subscription) error {
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		var existing Subscription
		err := tx.Where("user_id = ?", sub.UserID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(sub).Error
		}
		if err != nil {
			return err
		}
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		return tx.Save(sub).Error
	})
}

// ApplyProviderSubscriptionStatus updates a subscription from a preapproval
// webhook event.
func ApplyProviderSubscriptionStatus(db *gorm.DB, logger *slog.Logger, providerID, providerStatus string) error {
	sub, err := GetByProviderSubscriptionID(db, providerID)
	if err != nil {
		return err
	}

	state := MapSubscriptionStatus(providerStatus)
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(sub).Updates(map[string]interface{}{
			"plan":   state.Plan,
			"status": state.Status,
		}).Error
	})
}

// ApplyProviderPaymentStatus updates a subscription's status from a payment
// webhook event. Unknown payment statuses are ignored.
func ApplyProviderPaymentStatus(db *gorm.DB, logger *slog.Logger, providerSubscriptionID, paymentID, providerStatus string) error {
	status, ok := MapPaymentStatus(providerStatus)
	if !ok {
		return nil
	}

	sub, err := GetByProviderSubscriptionID(db, providerSubscriptionID)
	if err != nil {
		return err
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(sub).Updates(map[string]interface{}{
			"status":              status,
			"provider_payment_id": paymentID,
		}).Error
	})
}
