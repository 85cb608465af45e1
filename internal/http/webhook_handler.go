package http

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"psibuilder/internal/config"
	"psibuilder/internal/payments"
	"psibuilder/internal/subscriptions"
)

// webhookTestID is the resource id the provider sends on test pings.
const webhookTestID = "123456"

// paymentClient is swapped in tests; production lazily builds the HTTP
// client exactly once, so concurrent first webhooks share one instance.
var (
	paymentClient     payments.Client
	paymentClientOnce sync.Once
)

func getPaymentClient() payments.Client {
	paymentClientOnce.Do(func() {
		if paymentClient == nil {
			paymentClient = payments.NewClient(config.GetConfig())
		}
	})
	return paymentClient
}

// SetPaymentClient overrides the provider client. Tests install a stub here.
func SetPaymentClient(c payments.Client) {
	paymentClient = c
}

// PaymentWebhookPayload is the provider's notification body.
type PaymentWebhookPayload struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// PaymentWebhookAction processes provider notifications for subscriptions and
// recurring payments. Processing failures are logged and acknowledged with
// 200 so the provider does not retry events we cannot act on anyway.
func PaymentWebhookAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()
	if cfg.PaymentWebhookSecret != "" {
		secret := ctx.Ctx.Query("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.PaymentWebhookSecret)) != 1 {
			ctx.Logger.Warn("Webhook rejected: bad secret")
			return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
	}

	// Legacy IPN notifications and provider test pings arrive as query params.
	topic := ctx.Ctx.Query("topic")
	id := ctx.Ctx.Query("id")
	if topic != "" && id != "" {
		if id == webhookTestID {
			return ctx.Status(http.StatusOK).JSON(fiber.Map{
				"status":  "ok",
				"message": "Test notification received",
			})
		}

		switch topic {
		case "payment":
			handlePaymentEvent(ctx, id)
		case "preapproval", "subscription_preapproval":
			handleSubscriptionEvent(ctx, id)
		default:
			ctx.Logger.Info("Ignoring webhook topic", slog.String("topic", topic))
		}
		return ctx.Status(http.StatusOK).JSON(fiber.Map{"received": true})
	}

	body := ctx.Ctx.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Webhook endpoint active",
		})
	}

	var payload PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		ctx.Logger.Debug("Webhook body is not JSON, treating as test", slog.Any("error", err))
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Webhook endpoint active",
		})
	}

	if payload.Data.ID == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Missing resource id"})
	}

	ctx.Logger.Info("Webhook received",
		slog.String("type", payload.Type),
		slog.String("action", payload.Action),
		slog.String("resource_id", payload.Data.ID))

	switch payload.Type {
	case "subscription_preapproval":
		handleSubscriptionEvent(ctx, payload.Data.ID)
	case "payment":
		handlePaymentEvent(ctx, payload.Data.ID)
	default:
		ctx.Logger.Info("Ignoring webhook type", slog.String("type", payload.Type))
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"received": true})
}

// PaymentWebhookStatusAction answers the provider's endpoint verification.
func PaymentWebhookStatusAction(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"status":    "ok",
		"message":   "Webhook endpoint active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func handleSubscriptionEvent(ctx *cartridge.Context, subscriptionID string) {
	details, err := getPaymentClient().GetSubscription(ctx.Ctx.Context(), subscriptionID)
	if err != nil {
		ctx.Logger.Error("Failed to fetch subscription from provider",
			slog.Any("error", err),
			slog.String("subscription_id", subscriptionID))
		return
	}

	db := ctx.DB()

	// First sight of a preapproval: bind it to the user carried in the
	// external reference so later events can be resolved by provider id.
	if _, err := subscriptions.GetByProviderSubscriptionID(db, subscriptionID); err != nil {
		userID, refErr := strconv.ParseUint(details.ExternalReference, 10, 32)
		if refErr != nil || userID == 0 {
			ctx.Logger.Error("Subscription event without usable external reference",
				slog.String("subscription_id", subscriptionID),
				slog.String("external_reference", details.ExternalReference))
			return
		}

		state := subscriptions.MapSubscriptionStatus(details.Status)
		sub := subscriptions.Subscription{
			UserID:                 uint(userID),
			Plan:                   state.Plan,
			Status:                 state.Status,
			ProviderSubscriptionID: subscriptionID,
		}
		if err := subscriptions.Upsert(db, ctx.Logger, &sub); err != nil {
			ctx.Logger.Error("Failed to create subscription from webhook",
				slog.Any("error", err),
				slog.String("subscription_id", subscriptionID))
		}
		return
	}

	if err := subscriptions.ApplyProviderSubscriptionStatus(db, ctx.Logger, subscriptionID, details.Status); err != nil {
		ctx.Logger.Error("Failed to apply subscription status",
			slog.Any("error", err),
			slog.String("subscription_id", subscriptionID),
			slog.String("status", details.Status))
		return
	}

	ctx.Logger.Info("Subscription updated from webhook",
		slog.String("subscription_id", subscriptionID),
		slog.String("status", details.Status))
}

func handlePaymentEvent(ctx *cartridge.Context, paymentID string) {
	details, err := getPaymentClient().GetPayment(ctx.Ctx.Context(), paymentID)
	if err != nil {
		ctx.Logger.Error("Failed to fetch payment from provider",
			slog.Any("error", err),
			slog.String("payment_id", paymentID))
		return
	}

	preapprovalID := details.Metadata.PreapprovalID
	if preapprovalID == "" {
		ctx.Logger.Error("Payment event without preapproval id",
			slog.String("payment_id", paymentID))
		return
	}

	if err := subscriptions.ApplyProviderPaymentStatus(ctx.DB(), ctx.Logger, preapprovalID, paymentID, details.Status); err != nil {
		ctx.Logger.Error("Failed to apply payment status",
			slog.Any("error", err),
			slog.String("payment_id", paymentID),
			slog.String("status", details.Status))
		return
	}

	ctx.Logger.Info("Payment processed from webhook",
		slog.String("payment_id", paymentID),
		slog.String("status", details.Status))
}
