package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-service/cmd"
	"account-service/internal/data/migrations"
	"account-service/internal/data/repository"
	"account-service/internal/notification"
	"account-service/internal/scheduler"
	"account-service/internal/storage"
	"account-service/internal/usecase"
	"account-service/internal/wire"
	"account-service/pkg/cache"
	"account-service/pkg/database"
	"account-service/pkg/metrics"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Name, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Database
	if config.Database.Migrate {
		if err := database.Migrate(ctx, config.Database, migrations.FS); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	db, err := database.InitDB(ctx, config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Redis backs the expiry queue
	rdb, err := cache.InitRedis(config.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Metrics
	verificationMetrics, err := metrics.NewVerification(metrics.Options{Namespace: "accounts"})
	if err != nil {
		logger.Fatal("Failed to register verification metrics", zap.Error(err))
	}
	httpMetrics, err := metrics.NewHTTP(metrics.Options{Namespace: "accounts"})
	if err != nil {
		logger.Fatal("Failed to register http metrics", zap.Error(err))
	}

	// Notifications
	notifier, err := notification.New(config.Notification, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notification dispatcher", zap.Error(err))
	}
	defer notifier.Close()

	// Identity documents
	s3Client, err := storage.NewS3Client(ctx, config.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize document storage", zap.Error(err))
	}
	documents := storage.NewS3Store(s3Client, config.Storage.Bucket, logger)

	repos := repository.NewRepository(db, logger, config.OTP)

	// Expiry scheduler
	queue := scheduler.NewQueue(rdb, config.Scheduler.Key)
	expiry := scheduler.NewExpiryScheduler(queue, time.Duration(config.OTP.ExpiryMinutes)*time.Minute)

	worker := scheduler.NewWorker(queue, config.Scheduler, logger)
	worker.Register(scheduler.TaskExpireVerification, scheduler.ExpireVerification(repos.Verification, verificationMetrics, logger))
	go worker.Run(ctx)

	// Wire all dependencies
	app := wire.Wiring(repos, usecase.Dependencies{
		Notifier:  notifier,
		Expiry:    expiry,
		Documents: documents,
		Metrics:   verificationMetrics,
		Policy:    utils.DefaultPasswordPolicy(),
	}, httpMetrics, config, logger)

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}
