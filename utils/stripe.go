package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"promptforge/config"
)

// InitStripe sets the API key for the stripe client.
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// ConstructStripeEvent verifies and parses a Stripe webhook request.
func ConstructStripeEvent(c *fiber.Ctx) (stripe.Event, error) {
	payload := c.Body()

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Missing Stripe-Signature header")
	}

	// Tolerance covers clock drift between us and Stripe
	event, err := webhook.ConstructEventWithTolerance(
		payload,
		signature,
		config.AppConfig.StripeWebhookSecret,
		5*time.Minute,
	)
	if err != nil {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
	}

	return event, nil
}

// SubscriptionStatusFromStripe maps a Stripe subscription status onto our
// tiers. Anything not explicitly active collapses to a non-active status so
// entitlement checks fail closed.
func SubscriptionStatusFromStripe(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return "active"
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return "past_due"
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return "canceled"
	default:
		return "free"
	}
}
