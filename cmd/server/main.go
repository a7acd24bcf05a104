/**
 * @description
 * This is the main entry point for the reminder service. It wires together
 * configuration, the database pool, the optional Redis and RabbitMQ
 * connections, the AI-or-fallback classifier and composer, the WhatsApp
 * delivery channel, the cron scheduler for the daily renewal scan, and the
 * HTTP server for the webhook and admin surfaces.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/api"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/app"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/config"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/internal/store"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/aiclient"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/rabbitmq"
	"github.com/uniquesp/ai-whatsapp-payment-reminder/pkg/whatsapp"
)

func main() {
	// Load .env file for local development; ignore when absent.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Establish connection to PostgreSQL with connection pool configuration.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to work with transaction poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// Optional Redis connection for webhook rate limiting.
	var redisClient redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("unable to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		logger.Info("redis connection configured")
	}
	limiter := app.NewRedisWebhookRateLimiter(redisClient, "reminder:rate_limit")

	// Optional RabbitMQ producer for integration events.
	var events rabbitmq.Publisher = rabbitmq.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("unable to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		events = producer
		logger.Info("rabbitmq producer connected")
	}
	defer events.Close()

	// Classifier and composer: AI-backed when an API key is configured,
	// deterministic fallbacks otherwise.
	var classifier app.IntentClassifier = app.RuleBasedClassifier{}
	var composer app.MessageComposer = app.TemplateComposer{}
	if cfg.AIAPIKey != "" {
		chatClient := aiclient.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel,
			time.Duration(cfg.AITimeoutSeconds)*time.Second)
		classifier = app.NewAIClassifier(chatClient, logger)
		composer = app.NewAIComposer(chatClient, logger)
		logger.Info("AI classifier and composer enabled", "model", cfg.AIModel)
	} else {
		logger.Info("AI not configured, using rule-based classifier and template composer")
	}

	// Delivery channel: Cloud API when configured, log-only mock otherwise.
	var sender whatsapp.Sender
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		sender = whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID)
		logger.Info("whatsapp cloud api sender enabled")
	} else {
		sender = whatsapp.NewLogSender(logger)
		logger.Info("whatsapp not configured, using mock sender")
	}

	policy := app.PolicyConfig{
		NoticeDays:          cfg.NoticeDays,
		ReminderOffsets:     app.ParseReminderOffsets(cfg.ReminderOffsets),
		FollowUpDefaultDays: cfg.FollowUpDefaultDays,
		FollowUpMinDays:     cfg.FollowUpMinDays,
		FollowUpMaxDays:     cfg.FollowUpMaxDays,
	}

	// Initialize application layers.
	repository := store.NewPostgresRepository(dbpool)
	service := app.NewService(repository, classifier, composer, sender, events, logger, policy, cfg.EventExchange)
	scheduler := app.NewScheduler(service, logger, cfg.RenewalJobSchedule)
	handler := api.NewHandler(service, limiter, logger, cfg.WebhookRateLimit,
		time.Duration(cfg.WebhookRateWindowSeconds)*time.Second)
	router := api.NewRouter(handler, cfg.AdminJWKSURL)

	scheduler.Start()
	logger.Info("scheduler started")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("server stopped")
}
