package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/config"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/database"
	httpapi "github.com/Ruslan-Vlasiuk/svitlobot/internal/http"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/logger"
	mqttingest "github.com/Ruslan-Vlasiuk/svitlobot/internal/mqtt"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/notify"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/service"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/store"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "svitlobot-backend")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to ping redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Repositories
	sensorsRepo := repository.NewPostgresSensorsRepository(db, log)
	queuesRepo := repository.NewPostgresQueuesRepository(db, log)
	crowdRepo := repository.NewPostgresCrowdReportsRepository(db, log)
	jobsRepo := repository.NewPostgresNotificationsRepository(db, log)
	usersRepo := repository.NewPostgresUsersRepository(db, log)

	if err := queuesRepo.EnsureQueues(ctx, cfg.QueueCount); err != nil {
		log.Fatal("Failed to provision queues", zap.Error(err))
	}

	loc := cfg.Location()

	// Notification pipeline
	readingCache := store.NewReadingCache(redisClient, cfg.Consensus.FreshnessWindow, log)
	composer := notify.NewComposer(loc, log)
	resolver := notify.NewResolver(usersRepo, log)
	transport := notify.NewTelegramClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, log)
	dispatcher := notify.NewDispatcher(transport, composer, cfg.Notify.RateLimit, cfg.Notify.BatchSize, log)
	orchestrator := tasks.NewOrchestrator(
		redisClient, jobsRepo, resolver, dispatcher, loc,
		cfg.Notify.MaxRetries, cfg.Notify.RetryDelay, cfg.Notify.AttemptBudget, cfg.Notify.FingerprintBucket,
		log,
	)
	cleaner := tasks.NewHistoryCleaner(
		jobsRepo,
		time.Duration(cfg.Notify.RetentionDays)*24*time.Hour,
		loc, log,
	)

	// Services
	ingestService := service.NewIngestService(
		cfg.IoTAPIKey, cfg.Consensus.FreshnessWindow,
		sensorsRepo, queuesRepo, readingCache, orchestrator, log,
	)
	queueService := service.NewQueueService(queuesRepo, usersRepo, orchestrator, log)
	crowdService := service.NewCrowdReportService(crowdRepo, log)

	// HTTP API
	router := httpapi.NewRouter(log)
	router.RegisterIoTRoutes(httpapi.NewIoTHandler(ingestService, cfg.AdminAPIToken, log))
	router.RegisterQueueRoutes(httpapi.NewQueueHandler(queueService, cfg.AdminAPIToken, log))
	router.RegisterCrowdReportRoutes(httpapi.NewCrowdReportHandler(crowdService, log))
	router.RegisterNotificationRoutes(httpapi.NewNotificationHandler(
		orchestrator, jobsRepo, queuesRepo, cleaner, cfg.AdminAPIToken, log,
	))
	router.RegisterHealthRoute()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background workers
	serverErrChan := make(chan error, 2)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			serverErrChan <- fmt.Errorf("notification worker: %w", err)
		}
	}()
	go cleaner.Start(ctx)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Optional MQTT ingest
	if cfg.MQTT.Broker != "" {
		consumer := mqttingest.NewConsumer(&cfg.MQTT, cfg.IoTAPIKey, ingestService, log)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start MQTT ingest", zap.Error(err))
		}
		defer consumer.Stop()
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Error("Service error, shutting down", zap.Error(err))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	log.Info("svitlobot backend stopped")
}
