package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/wastetrack/bulk-engine/internal/config"
	"github.com/wastetrack/bulk-engine/internal/handler"
	"github.com/wastetrack/bulk-engine/internal/infra/postgresql"
	"github.com/wastetrack/bulk-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/wastetrack/bulk-engine/internal/infra/redis"
	"github.com/wastetrack/bulk-engine/internal/observability"
	"github.com/wastetrack/bulk-engine/internal/queue"
	"github.com/wastetrack/bulk-engine/internal/repository"
	"github.com/wastetrack/bulk-engine/internal/service"
	"github.com/wastetrack/bulk-engine/internal/submitter"
	"github.com/wastetrack/bulk-engine/internal/transport"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(mq)
	defer publisher.Close()

	submissions, err := submitter.NewHTTPSubmitter(cfg.SubmissionAPIURL)
	if err != nil {
		logger.Fatal("submitter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	batches := repository.NewGormBatchRepo(db)

	batchService, err := service.NewBatchService(batches, submissions, publisher, metrics, logger)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    cfg.MaxChunkBytes,
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterBatchRoutes(app, batchService, limiter); err != nil {
		logger.Fatal("failed to register batch routes", zap.Error(err))
	}

	go func() {
		logger.Info("bulk-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
