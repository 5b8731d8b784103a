package worker

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"promptforge/models"
	"promptforge/utils"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.TeamInvitation{},
		&models.Prompt{},
	))
	return db
}

func TestSweepRevokesAndPurges(t *testing.T) {
	db := newWorkerTestDB(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	user := &models.User{Email: "lapsed@example.com", SubscriptionStatus: models.SubscriptionCanceled}
	require.NoError(t, db.Create(user).Error)
	prompt := &models.Prompt{UserID: user.ID, Name: "stale", Public: true}
	require.NoError(t, db.Create(prompt).Error)

	team := &models.Team{Slug: "t", Name: "T", SubscriptionStatus: models.SubscriptionActive}
	require.NoError(t, db.Create(team).Error)

	old := &models.TeamInvitation{
		Token:       "old-token",
		TeamID:      team.ID,
		Email:       "a@example.com",
		InvitedByID: user.ID,
		ExpiresAt:   time.Now().Add(-31 * 24 * time.Hour),
	}
	recent := &models.TeamInvitation{
		Token:       "recent-token",
		TeamID:      team.ID,
		Email:       "b@example.com",
		InvitedByID: user.ID,
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(recent).Error)

	ew := NewEntitlementWorker(db, utils.NewSharingService(db, log), log)
	ew.runSweep()

	var check models.Prompt
	require.NoError(t, db.First(&check, prompt.ID).Error)
	assert.False(t, check.Public, "sweep must revoke lapsed public flags")

	var tokens []string
	require.NoError(t, db.Model(&models.TeamInvitation{}).Pluck("token", &tokens).Error)
	assert.Equal(t, []string{"recent-token"}, tokens, "only invitations past retention are purged")
}
