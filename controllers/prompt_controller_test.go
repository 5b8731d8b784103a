package controller

import (
	"bytes"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"promptforge/config"
	"promptforge/middleware"
	"promptforge/models"
	"promptforge/utils"
)

func newHandlerTestDB(t *testing.T) *gorm.DB {
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

// newPromptApp wires the prompt routes behind the real JWT middleware, the
// same way SetupRoutes does. config.DB and the token secret are pointed at
// the test database so Protected() can resolve callers.
func newPromptApp(t *testing.T, db *gorm.DB) (*fiber.App, *utils.ChainService) {
	t.Helper()

	config.DB = db
	config.AppConfig.AuthTokenSecret = "handler-test-secret"

	log := logrus.New()
	log.SetOutput(io.Discard)

	membership := utils.NewMembershipService(db, log)
	sharing := utils.NewSharingService(db, log)
	chains := utils.NewChainService(db, log)
	pc := NewPromptController(db, log, membership, sharing, chains, nil)

	app := fiber.New()
	api := app.Group("/api/v1", middleware.Protected())
	api.Post("/prompts", pc.CreatePrompt)
	api.Delete("/prompts/:id", pc.DeletePrompt)
	return app, chains
}

func newHandlerUser(t *testing.T, db *gorm.DB, status string) (*models.User, string) {
	t.Helper()
	user := &models.User{
		Email:              fmt.Sprintf("handler-%d@example.com", time.Now().UnixNano()),
		SubscriptionStatus: status,
		IsActive:           true,
	}
	require.NoError(t, db.Create(user).Error)
	token, err := utils.SignJWTToken(user, time.Hour)
	require.NoError(t, err)
	return user, token
}

func newHandlerPrompt(t *testing.T, db *gorm.DB, userID uint, name string) *models.Prompt {
	t.Helper()
	prompt := &models.Prompt{
		UserID:        userID,
		Name:          name,
		TaskContext:   "You are a helpful assistant.",
		ImmediateTask: "Summarize the document.",
	}
	require.NoError(t, db.Create(prompt).Error)
	return prompt
}

func TestDeletePromptKeepsChainsDense(t *testing.T) {
	db := newHandlerTestDB(t)
	app, chains := newPromptApp(t, db)
	user, token := newHandlerUser(t, db, models.SubscriptionFree)

	a := newHandlerPrompt(t, db, user.ID, "A")
	b := newHandlerPrompt(t, db, user.ID, "B")
	c := newHandlerPrompt(t, db, user.ID, "C")
	chain, err := chains.CreateChain(user.ID, nil, "abc", "", []uint{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	require.NoError(t, chains.SaveEvaluation(chain, 6.5))

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/prompts/%d", b.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	members, err := chains.Members(chain.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, a.ID, members[0].PromptID)
	assert.Equal(t, 0, members[0].Position)
	assert.Equal(t, c.ID, members[1].PromptID)
	assert.Equal(t, 1, members[1].Position)

	var reloaded models.Chain
	require.NoError(t, db.First(&reloaded, chain.ID).Error)
	assert.Nil(t, reloaded.ChainScore, "deleting a member must invalidate the cached score")
	assert.Nil(t, reloaded.LastEvaluatedAt)
}

func TestCreatePromptDeniedAtFreeLimit(t *testing.T) {
	db := newHandlerTestDB(t)
	app, _ := newPromptApp(t, db)
	user, token := newHandlerUser(t, db, models.SubscriptionFree)

	for i := 0; i < utils.FreePromptLimit; i++ {
		newHandlerPrompt(t, db, user.ID, fmt.Sprintf("prompt %d", i))
	}

	body := bytes.NewBufferString(`{"name":"one too many"}`)
	req := httptest.NewRequest("POST", "/api/v1/prompts", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Prompt{}).
		Where("user_id = ? AND team_id IS NULL", user.ID).Count(&count).Error)
	assert.EqualValues(t, utils.FreePromptLimit, count)
}
