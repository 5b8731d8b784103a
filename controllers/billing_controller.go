package controller

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"promptforge/models"
	"promptforge/utils"
)

type BillingController struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Sharing *utils.SharingService
}

func NewBillingController(db *gorm.DB, logger *logrus.Logger, sharing *utils.SharingService) *BillingController {
	return &BillingController{DB: db, Logger: logger, Sharing: sharing}
}

// HandleWebhook keeps subscription statuses current from Stripe events.
// Checkout itself happens on the billing provider's side; this is the only
// write path for SubscriptionStatus.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return err
	}

	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			bc.Logger.WithError(err).Warn("could not parse subscription event")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event payload"})
		}
		if err := bc.applySubscriptionStatus(&subscription); err != nil {
			bc.Logger.WithError(err).Error("failed to apply subscription status")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process event"})
		}
	default:
		// Ignore events we do not care about
	}

	return c.JSON(fiber.Map{"received": true})
}

func (bc *BillingController) applySubscriptionStatus(subscription *stripe.Subscription) error {
	if subscription.Customer == nil {
		return nil
	}
	customerID := subscription.Customer.ID
	status := utils.SubscriptionStatusFromStripe(subscription.Status)

	planName := "free"
	if status == models.SubscriptionActive {
		planName = "pro"
	}

	err := bc.DB.Transaction(func(tx *gorm.DB) error {
		userUpdate := tx.Model(&models.User{}).Where("stripe_customer_id = ?", customerID).
			Updates(map[string]interface{}{
				"subscription_status": status,
				"plan_name":           planName,
			})
		if userUpdate.Error != nil {
			return userUpdate.Error
		}

		teamUpdate := tx.Model(&models.Team{}).Where("stripe_customer_id = ?", customerID).
			Update("subscription_status", status)
		if teamUpdate.Error != nil {
			return teamUpdate.Error
		}

		if userUpdate.RowsAffected == 0 && teamUpdate.RowsAffected == 0 {
			bc.Logger.WithField("customer_id", customerID).Warn("subscription event for unknown customer")
		}
		return nil
	})
	if err != nil {
		return err
	}

	bc.Logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"status":      status,
	}).Info("subscription status updated")

	// Downgrades revoke public flags right away; the entitlement worker
	// sweeps again periodically as a backstop.
	if status != models.SubscriptionActive {
		if _, err := bc.Sharing.RevokeLapsedPublicFlags(); err != nil {
			bc.Logger.WithError(err).Error("failed to revoke public flags after downgrade")
		}
	}
	return nil
}
