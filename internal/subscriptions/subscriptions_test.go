package subscriptions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psibuilder/internal/subscriptions"
	"psibuilder/internal/testsupport"
)

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		providerStatus string
		wantPlan       string
		wantStatus     string
	}{
		{"authorized", subscriptions.PlanPro, subscriptions.StatusActive},
		{"paused", subscriptions.PlanPro, subscriptions.StatusPaused},
		{"cancelled", subscriptions.PlanFree, subscriptions.StatusCancelled},
		{"pending", subscriptions.PlanFree, subscriptions.StatusPending},
		{"garbage", subscriptions.PlanFree, subscriptions.StatusInactive},
		{"", subscriptions.PlanFree, subscriptions.StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.providerStatus, func(t *testing.T) {
			state := subscriptions.MapSubscriptionStatus(tt.providerStatus)
			assert.Equal(t, tt.wantPlan, state.Plan)
			assert.Equal(t, tt.wantStatus, state.Status)
		})
	}
}

func TestMapPaymentStatus(t *testing.T) {
	tests := []struct {
		providerStatus string
		want           string
		known          bool
	}{
		{"approved", subscriptions.StatusActive, true},
		{"pending", subscriptions.StatusPending, true},
		{"in_process", subscriptions.StatusPending, true},
		{"rejected", subscriptions.StatusInactive, true},
		{"cancelled", subscriptions.StatusInactive, true},
		{"refunded", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.providerStatus, func(t *testing.T) {
			status, ok := subscriptions.MapPaymentStatus(tt.providerStatus)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestPlanLimits(t *testing.T) {
	free := subscriptions.PlanLimits(subscriptions.PlanFree)
	assert.Equal(t, 5, free.BlogPosts)
	assert.False(t, free.CustomDomain)
	assert.False(t, free.Analytics)

	basico := subscriptions.PlanLimits(subscriptions.PlanBasico)
	assert.Equal(t, 20, basico.BlogPosts)
	assert.False(t, basico.CustomDomain)
	assert.True(t, basico.Analytics)

	pro := subscriptions.PlanLimits(subscriptions.PlanPro)
	assert.Equal(t, -1, pro.BlogPosts)
	assert.True(t, pro.CustomDomain)
	assert.True(t, pro.Analytics)

	// Unknown plans fall back to free.
	assert.Equal(t, free, subscriptions.PlanLimits("enterprise"))
}

func TestPlanForUser(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	t.Run("no subscription row means free", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "free@example.com", "x")
		assert.Equal(t, subscriptions.PlanFree, subscriptions.PlanForUser(db, user.ID))
	})

	t.Run("active subscription grants its plan", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "pro@example.com", "x")

		require.NoError(t, subscriptions.Upsert(db, logger, &subscriptions.Subscription{
			UserID: user.ID,
			Plan:   subscriptions.PlanPro,
			Status: subscriptions.StatusActive,
		}))
		assert.Equal(t, subscriptions.PlanPro, subscriptions.PlanForUser(db, user.ID))
	})

	t.Run("paused keeps the plan", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "paused@example.com", "x")

		require.NoError(t, subscriptions.Upsert(db, logger, &subscriptions.Subscription{
			UserID: user.ID,
			Plan:   subscriptions.PlanPro,
			Status: subscriptions.StatusPaused,
		}))
		assert.Equal(t, subscriptions.PlanPro, subscriptions.PlanForUser(db, user.ID))
	})

	t.Run("cancelled drops back to free", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user := testsupport.CreateTestUser(db, "cancelled@example.com", "x")

		require.NoError(t, subscriptions.Upsert(db, logger, &subscriptions.Subscription{
			UserID: user.ID,
			Plan:   subscriptions.PlanPro,
			Status: subscriptions.StatusCancelled,
		}))
		assert.Equal(t, subscriptions.PlanFree, subscriptions.PlanForUser(db, user.ID))
	})
}

func TestUpsert(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	testsupport.CleanAllTables(db)

	user := testsupport.CreateTestUser(db, "upsert@example.com", "x")

	sub := subscriptions.Subscription{
		UserID:                 user.ID,
		Plan:                   subscriptions.PlanPro,
		Status:                 subscriptions.StatusPending,
		ProviderSubscriptionID: "preapproval-1",
	}
	require.NoError(t, subscriptions.Upsert(db, logger, &sub))
	firstID := sub.ID

	// Second upsert reuses the row.
	updated := subscriptions.Subscription{
		UserID:                 user.ID,
		Plan:                   subscriptions.PlanPro,
		Status:                 subscriptions.StatusActive,
		ProviderSubscriptionID: "preapproval-1",
	}
	require.NoError(t, subscriptions.Upsert(db, logger, &updated))
	assert.Equal(t, firstID, updated.ID)

	var count int64
	db.Model(&subscriptions.Subscription{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestApplyProviderStatuses(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	testsupport.CleanAllTables(db)

	user := testsupport.CreateTestUser(db, "webhook@example.com", "x")
	require.NoError(t, subscriptions.Upsert(db, logger, &subscriptions.Subscription{
		UserID:                 user.ID,
		Plan:                   subscriptions.PlanFree,
		Status:                 subscriptions.StatusPending,
		ProviderSubscriptionID: "preapproval-42",
	}))

	t.Run("subscription status updates plan and status", func(t *testing.T) {
		require.NoError(t, subscriptions.ApplyProviderSubscriptionStatus(db, logger, "preapproval-42", "authorized"))

		sub, err := subscriptions.GetByUserID(db, user.ID)
		require.NoError(t, err)
		assert.Equal(t, subscriptions.PlanPro, sub.Plan)
		assert.Equal(t, subscriptions.StatusActive, sub.Status)
	})

	t.Run("payment status updates status and payment id", func(t *testing.T) {
		require.NoError(t, subscriptions.ApplyProviderPaymentStatus(db, logger, "preapproval-42", "pay-7", "rejected"))

		sub, err := subscriptions.GetByUserID(db, user.ID)
		require.NoError(t, err)
		assert.Equal(t, subscriptions.StatusInactive, sub.Status)
		assert.Equal(t, "pay-7", sub.ProviderPaymentID)
		// The plan is untouched by payment events.
		assert.Equal(t, subscriptions.PlanPro, sub.Plan)
	})

	t.Run("unknown payment status is a no-op", func(t *testing.T) {
		require.NoError(t, subscriptions.ApplyProviderPaymentStatus(db, logger, "preapproval-42", "pay-8", "charged_back"))

		sub, err := subscriptions.GetByUserID(db, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "pay-7", sub.ProviderPaymentID)
	})

	t.Run("unknown preapproval id errors", func(t *testing.T) {
		require.Error(t, subscriptions.ApplyProviderSubscriptionStatus(db, logger, "missing", "authorized"))
	})
}
