package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/foodloop/foodloop-api/internal/config"
	"github.com/foodloop/foodloop-api/internal/handler"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SurplusHandler      *handler.SurplusHandler
	ChatHandler         *handler.ChatHandler
	DirectoryHandler    *handler.DirectoryHandler
	NotificationHandler *handler.NotificationHandler
	PredictionHandler   *handler.PredictionHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SurplusHandler != nil {
		surplus := api.Group("/surplus", jwtMiddleware)
		deps.SurplusHandler.Register(surplus)
	}

	if deps.ChatHandler != nil {
		chats := api.Group("/chats", jwtMiddleware)
		deps.ChatHandler.Register(chats)
	}

	if deps.DirectoryHandler != nil {
		directory := api.Group("/directory", jwtMiddleware)
		deps.DirectoryHandler.Register(directory)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.PredictionHandler != nil {
		predictions := api.Group("/predictions", jwtMiddleware,
			middleware.RequireRole(string(models.RoleCanteen)))
		deps.PredictionHandler.Register(predictions)
	}
}
