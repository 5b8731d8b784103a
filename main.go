package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"promptforge/config"
	"promptforge/middleware"
	"promptforge/routes"
	"promptforge/utils"
	"promptforge/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Start the entitlement sweep worker
	sharing := utils.NewSharingService(config.DB, logger)
	entitlementWorker := worker.NewEntitlementWorker(config.DB, sharing, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go entitlementWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, logger)

	// Start server
	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
