package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banana-studio/banana-api/internal/config"
	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/generation"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/database"
	"github.com/banana-studio/banana-api/internal/pkg/imagegen"
	"github.com/banana-studio/banana-api/internal/pkg/imaging"
	"github.com/banana-studio/banana-api/internal/pkg/logger"
	"github.com/banana-studio/banana-api/internal/pkg/storage"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

const (
	pollInterval = 5 * time.Second
	// Jobs stay in processing for at most the model timeout plus upload time.
	staleGrace = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "generation-worker"})

	log.Info().Msg("Starting generation-worker")

	if cfg.ImageGenAPIKey == "" {
		log.Warn().Msg("IMAGEGEN_API_KEY is empty; queued jobs will fail and be refunded")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	store, err := storage.New(storage.Config{
		Driver:      cfg.StorageDriver,
		S3Endpoint:  cfg.S3Endpoint,
		S3Region:    cfg.S3Region,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		S3PublicURL: cfg.S3PublicURL,
		LocalPath:   cfg.LocalStoragePath,
		LocalURL:    cfg.LocalStorageURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	uploader := upload.NewService(store, imaging.NewProcessor(imaging.DefaultConfig()))

	publisher := realtime.NewRedisPublisher(rdb)
	creditRepo := credit.NewRepository(db)
	adminService := admin.NewService(admin.NewRepository(db), uploader)
	creditService := credit.NewService(creditRepo, adminService, adminService, adminService, publisher)

	processor := generation.NewProcessor(generation.NewRepository(db, creditRepo), generation.ProcessorDeps{
		Generator: imagegen.NewClient(imagegen.Config{
			BaseURL: cfg.ImageGenBaseURL,
			APIKey:  cfg.ImageGenAPIKey,
			Timeout: cfg.ImageGenTimeout,
		}),
		Uploader:  uploader,
		Ledger:    creditService,
		Publisher: publisher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis wake-ups shorten the wait; polling still runs.
	wake := make(chan struct{}, 1)
	go generation.SubscribeWakeups(ctx, rdb, wake)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	processor.Run(ctx, pollInterval, cfg.ImageGenTimeout+staleGrace, wake)
	log.Info().Msg("generation-worker stopped")
}
