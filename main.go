package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "invoice-backend/cmd/api"
	progressRepo "invoice-backend/internal/progress/repository"
	"invoice-backend/pkg/config"
	"invoice-backend/pkg/database"
	"invoice-backend/pkg/logger"
	"invoice-backend/pkg/mq"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	for _, dir := range []string{cfg.DownloadDir, cfg.RenamedDir, cfg.StaticDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Progress store: Redis when configured, otherwise in-process
	var progressStore progressRepo.ProgressRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		progressStore = progressRepo.NewRedisProgressRepository(rdb, cfg.ProgressTTL)
		log.Info("progress store: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		progressStore = progressRepo.NewMemoryProgressRepository()
		log.Info("progress store: memory")
	}

	// Import events are optional
	var publisher mq.Publisher = mq.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		producer, err := mq.NewProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Warn("rabbitmq unavailable, import events disabled", zap.Error(err))
		} else {
			publisher = producer
			log.Info("rabbitmq producer connected")
		}
	}
	defer publisher.Close()

	handler, err := api.NewHandler(cfg, db, progressStore, publisher)
	if err != nil {
		log.Fatal("failed to initialize handlers", zap.Error(err))
	}

	handler.StartBackground()
	errCh := make(chan error, 1)
	go func() {
		errCh <- handler.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := handler.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
