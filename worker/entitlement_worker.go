package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"promptforge/models"
	"promptforge/utils"
)

// How long expired invitations are kept before being purged.
const invitationRetention = 30 * 24 * time.Hour

// EntitlementWorker periodically re-applies entitlement rules that decay
// over time: public flags of lapsed subscriptions and long-expired
// invitations. The billing webhook handles downgrades immediately; this is
// the backstop for missed events.
type EntitlementWorker struct {
	DB      *gorm.DB
	Sharing *utils.SharingService
	Logger  *logrus.Logger

	Interval time.Duration
}

func NewEntitlementWorker(db *gorm.DB, sharing *utils.SharingService, logger *logrus.Logger) *EntitlementWorker {
	return &EntitlementWorker{
		DB:       db,
		Sharing:  sharing,
		Logger:   logger,
		Interval: 15 * time.Minute,
	}
}

func (ew *EntitlementWorker) Start(ctx context.Context) {
	ew.Logger.Info("entitlement worker started")

	ticker := time.NewTicker(ew.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ew.Logger.Info("entitlement worker shutting down...")
			return
		case <-ticker.C:
			ew.runSweep()
		}
	}
}

func (ew *EntitlementWorker) runSweep() {
	if _, err := ew.Sharing.RevokeLapsedPublicFlags(); err != nil {
		ew.Logger.WithError(err).Error("failed to revoke lapsed public flags")
	}
	ew.purgeExpiredInvitations()
}

func (ew *EntitlementWorker) purgeExpiredInvitations() {
	cutoff := time.Now().Add(-invitationRetention)
	res := ew.DB.Unscoped().Where("accepted_at IS NULL AND expires_at < ?", cutoff).Delete(&models.TeamInvitation{})
	if res.Error != nil {
		ew.Logger.WithError(res.Error).Error("failed to purge expired invitations")
		return
	}
	if res.RowsAffected > 0 {
		ew.Logger.WithField("count", res.RowsAffected).Info("purged expired invitations")
	}
}
