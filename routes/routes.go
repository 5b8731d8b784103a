package routes

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "promptforge/controllers"
	"promptforge/config"
	"promptforge/middleware"
	"promptforge/utils"
)

// SetupRoutes wires every endpoint. Control flow per request: the JWT
// middleware resolves who is asking, the membership service resolves their
// role, the entitlement evaluator decides whether the action is allowed, and
// the visibility resolver shapes what they see.
func SetupRoutes(app *fiber.App, db *gorm.DB, logger *logrus.Logger) {
	utils.InitStripe()

	membership := utils.NewMembershipService(db, logger)
	sharing := utils.NewSharingService(db, logger)
	chains := utils.NewChainService(db, logger)
	evaluator := utils.NewEvaluator(
		config.AppConfig.Evaluator.BaseURL,
		config.AppConfig.Evaluator.APIKey,
		config.AppConfig.Evaluator.Timeout,
		logger,
	)
	var mailer *utils.Mailer
	if config.AppConfig.SMTP.Host != "" {
		mailer = utils.NewMailer(config.AppConfig.SMTP)
	}

	promptController := controller.NewPromptController(db, logger, membership, sharing, chains, evaluator)
	categoryController := controller.NewCategoryController(db, logger, membership)
	chainController := controller.NewChainController(db, logger, chains, membership, evaluator)
	teamController := controller.NewTeamController(db, logger, membership)
	invitationController := controller.NewInvitationController(db, logger, membership, mailer)
	shareController := controller.NewShareController(logger, sharing)
	billingController := controller.NewBillingController(db, logger, sharing)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Unauthenticated share access, gated by the sharing gate
	app.Get("/share/:id", shareController.GetPublicPrompt)

	// Billing webhook (Stripe-signed, not JWT-protected)
	app.Post("/billing/webhook", billingController.HandleWebhook)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Prompt routes
	prompt := api.Group("/prompts")
	prompt.Post("/", promptController.CreatePrompt)
	prompt.Get("/", promptController.GetPrompts)
	prompt.Get("/:id", promptController.GetPrompt)
	prompt.Put("/:id", promptController.UpdatePrompt)
	prompt.Delete("/:id", promptController.DeletePrompt)
	prompt.Put("/:id/visibility", promptController.SetPromptVisibility)
	prompt.Put("/:id/categories", promptController.SetPromptCategories)
	prompt.Post("/:id/score", middleware.EvaluateRateLimiter(), promptController.ScorePrompt)
	prompt.Post("/:id/generate", middleware.EvaluateRateLimiter(), promptController.GenerateSection)

	// Category routes
	category := api.Group("/categories")
	category.Post("/", categoryController.CreateCategory)
	category.Get("/", categoryController.GetCategories)
	category.Put("/:id", categoryController.UpdateCategory)
	category.Delete("/:id", categoryController.DeleteCategory)

	// Chain routes
	chain := api.Group("/chains")
	chain.Post("/", chainController.CreateChain)
	chain.Get("/", chainController.GetChains)
	chain.Get("/:id", chainController.GetChain)
	chain.Put("/:id", chainController.UpdateChain)
	chain.Delete("/:id", chainController.DeleteChain)
	chain.Put("/:id/prompts", chainController.ReplaceChainPrompts)
	chain.Post("/:id/reorder", chainController.ReorderChainPrompts)
	chain.Post("/:id/prompts", chainController.AddChainPrompt)
	chain.Delete("/:id/prompts/:promptId", chainController.RemoveChainPrompt)
	chain.Post("/:id/evaluate", middleware.EvaluateRateLimiter(), chainController.EvaluateChain)

	// WebSocket route for evaluation progress. Protected() runs before the
	// upgrade and stashes the user in Locals for the handler's access check.
	app.Get("/api/v1/chains/evaluation/progress", middleware.Protected(), websocket.New(func(c *websocket.Conn) {
		chainController.HandleEvaluationProgressWS(c)
	}))

	// Team routes
	team := api.Group("/teams")
	team.Post("/", teamController.CreateTeam)
	team.Get("/", teamController.GetMyTeams)
	team.Get("/slug/:slug", teamController.GetTeam)
	team.Put("/:id", teamController.UpdateTeam)
	team.Delete("/:id", teamController.DeleteTeam)
	team.Get("/:id/members", teamController.GetTeamMembers)
	team.Put("/:id/members/:userId", teamController.UpdateMemberRole)
	team.Delete("/:id/members/:userId", teamController.RemoveMember)

	// Invitation routes
	team.Post("/:id/invitations", invitationController.CreateInvitation)
	team.Get("/:id/invitations", invitationController.GetPendingInvitations)
	team.Delete("/:id/invitations/:invitationId", invitationController.CancelInvitation)
	api.Post("/invitations/accept", invitationController.AcceptInvitation)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	logger.Info("routes initialized")
}
