package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kapehan/kapehan-backend/config"
	"github.com/kapehan/kapehan-backend/internal/app/controller"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/app/service"
	"github.com/kapehan/kapehan-backend/internal/db"
	"github.com/kapehan/kapehan-backend/internal/middleware"
	"github.com/kapehan/kapehan-backend/internal/router"
	"github.com/kapehan/kapehan-backend/internal/scheduler"
	"github.com/kapehan/kapehan-backend/internal/storage"
	"github.com/kapehan/kapehan-backend/internal/websocket"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"github.com/kapehan/kapehan-backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // use "json" in production
		EnableColor: true,
	})

	logger.Info("Starting Kapehan Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis is optional: without it, logout revocation and the sweep
	// lock degrade gracefully.
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, continuing without it", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer redis.Close()
	}

	hub := websocket.NewHub()
	go hub.Run()

	proofStorage := storage.NewS3Storage(
		cfg.S3.Region,
		cfg.S3.Bucket,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.BaseURL,
	)

	userRepo := repository.NewUserRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	orderRepo := repository.NewOrderRepository(db.GetDB())
	loyaltyRepo := repository.NewLoyaltyRepository(db.GetDB())
	reviewRepo := repository.NewReviewRepository(db.GetDB())
	notificationRepo := repository.NewNotificationRepository(db.GetDB())

	notificationService := service.NewNotificationService(notificationRepo, userRepo, hub)
	loyaltyService := service.NewLoyaltyService(loyaltyRepo, notificationService, cfg.Loyalty, cfg.Order, db.GetDB())
	orderService := service.NewOrderService(orderRepo, productRepo, userRepo, loyaltyService, notificationService, cfg.Loyalty, cfg.Order, db.GetDB())
	paymentService := service.NewPaymentService(orderRepo, userRepo, notificationService, proofStorage, cfg.Order)
	reviewService := service.NewReviewService(reviewRepo, orderRepo, userRepo, notificationService)
	reportService := service.NewReportService(orderRepo)
	authService := service.NewAuthService(userRepo, cfg.JWT)

	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productRepo)
	orderController := controller.NewOrderController(orderService)
	paymentController := controller.NewPaymentController(paymentService)
	loyaltyController := controller.NewLoyaltyController(loyaltyService)
	reviewController := controller.NewReviewController(reviewService)
	notificationController := controller.NewNotificationController(notificationService, hub, cfg.CORS.AllowedOrigins)
	reportController := controller.NewReportController(reportService)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	expiryScheduler := scheduler.NewPointsExpiryScheduler(loyaltyService, loyaltyRepo)
	if err := expiryScheduler.Start(); err != nil {
		logger.Fatal("Failed to start points expiry scheduler", err)
	}
	defer expiryScheduler.Stop()

	r := router.NewRouter(
		authController,
		productController,
		orderController,
		paymentController,
		loyaltyController,
		reviewController,
		notificationController,
		reportController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
