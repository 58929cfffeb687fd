package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/config"
	"github.com/foodloop/foodloop-api/internal/database"
	"github.com/foodloop/foodloop-api/internal/handler"
	"github.com/foodloop/foodloop-api/internal/middleware"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/repository"
	"github.com/foodloop/foodloop-api/internal/router"
	"github.com/foodloop/foodloop-api/internal/service"
	cloud "github.com/foodloop/foodloop-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.FoodSurplus{},
		&models.Chat{},
		&models.Message{},
		&models.User{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		// Single-node deployments run without NATS; fanout falls back to
		// redis pub/sub.
		logger.Warn().Err(err).Msg("nats unavailable, cross-node fanout via redis only")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cld, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cld
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	surplusRepo := repository.NewSurplusRepository(db)
	chatRepo := repository.NewChatRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, natsConn, cfg.ChannelBase, logger)
	surplusService := service.NewSurplusService(surplusRepo, validate, uploader, notificationService, logger)
	chatService := service.NewChatService(chatRepo, surplusRepo, userRepo, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	directoryService := service.NewDirectoryService(userRepo, redisClient, cfg.ChannelBase, validate, logger)
	predictionService := service.NewPredictionService(validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatService.Start(ctx)

	surplusHandler := handler.NewSurplusHandler(surplusService, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)
	directoryHandler := handler.NewDirectoryHandler(directoryService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	predictionHandler := handler.NewPredictionHandler(predictionService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.MaxUploadMB * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SurplusHandler:      surplusHandler,
		ChatHandler:         chatHandler,
		DirectoryHandler:    directoryHandler,
		NotificationHandler: notificationHandler,
		PredictionHandler:   predictionHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
