package utils

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"promptforge/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.Team{},
		&models.TeamMember{},
		&models.TeamInvitation{},
		&models.Prompt{},
		&models.Category{},
		&models.PromptCategory{},
		&models.Chain{},
		&models.ChainPrompt{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, status string) *models.User {
	t.Helper()
	user := &models.User{
		Email:              fmt.Sprintf("user-%d@example.com", time.Now().UnixNano()),
		SubscriptionStatus: status,
		IsActive:           true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTeam(t *testing.T, db *gorm.DB, status string, adminID uint) *models.Team {
	t.Helper()
	team := &models.Team{
		Slug:               fmt.Sprintf("team-%d", time.Now().UnixNano()),
		Name:               "Test Team",
		SubscriptionStatus: status,
	}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID,
		UserID: adminID,
		Role:   models.RoleAdmin,
	}).Error)
	return team
}

func createPrompt(t *testing.T, db *gorm.DB, userID uint, teamID *uint, name string) *models.Prompt {
	t.Helper()
	prompt := &models.Prompt{
		UserID:        userID,
		TeamID:        teamID,
		Name:          name,
		TaskContext:   "You are a helpful assistant.",
		ImmediateTask: "Summarize the document.",
	}
	require.NoError(t, db.Create(prompt).Error)
	return prompt
}

func memberPositions(t *testing.T, db *gorm.DB, chainID uint) []int {
	t.Helper()
	var members []models.ChainPrompt
	require.NoError(t, db.Where("chain_id = ?", chainID).Order("position ASC").Find(&members).Error)
	positions := make([]int, len(members))
	for i, m := range members {
		positions[i] = m.Position
	}
	return positions
}

// requireDense asserts the chain's positions are exactly 0..n-1.
func requireDense(t *testing.T, db *gorm.DB, chainID uint) {
	t.Helper()
	positions := memberPositions(t, db, chainID)
	for i, p := range positions {
		require.Equal(t, i, p, "positions must be dense 0..n-1, got %v", positions)
	}
}
