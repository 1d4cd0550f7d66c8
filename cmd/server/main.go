package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hookpay/webhook-service/internal/adapters/postgres"
	"github.com/hookpay/webhook-service/internal/adapters/secrets"
	"github.com/hookpay/webhook-service/internal/config"
	adminhandler "github.com/hookpay/webhook-service/internal/handlers/admin"
	cronhandler "github.com/hookpay/webhook-service/internal/handlers/cron"
	subscriptionhandler "github.com/hookpay/webhook-service/internal/handlers/subscription"
	webhookhandler "github.com/hookpay/webhook-service/internal/handlers/webhook"
	"github.com/hookpay/webhook-service/internal/services/gatekeeper"
	subscriptionsvc "github.com/hookpay/webhook-service/internal/services/subscription"
	webhooksvc "github.com/hookpay/webhook-service/internal/services/webhook"
	"github.com/hookpay/webhook-service/pkg/observability"
)

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("Starting webhook service",
		zap.String("version", "0.1.0"),
	)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	if err := postgres.Migrate(ctx, dbPool); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	registry, err := initSecretRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load webhook secrets", zap.Error(err))
	}

	rateLimiter := initRateLimiter(cfg, logger)

	// Wire services
	db := postgres.NewDBExecutor(dbPool)
	customers := postgres.NewCustomerRepository()
	subscriptions := postgres.NewSubscriptionRepository()
	payments := postgres.NewPaymentRepository()
	events := postgres.NewWebhookEventRepository()

	gk := gatekeeper.New(registry, rateLimiter, cfg.Webhook.IPAllowlist, logger)
	processor := webhooksvc.NewProcessor(db, events, customers, subscriptions, payments, logger)
	subscriptionService := subscriptionsvc.NewService(db, customers, subscriptions, logger)

	webhookH := webhookhandler.NewHandler(gk, processor, logger)
	subscriptionH := subscriptionhandler.NewHandler(subscriptionService, logger)
	cronH := cronhandler.NewHandler(subscriptionService, processor, logger)
	adminH := adminhandler.NewHandler(processor, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/webhooks/{provider}", webhookH.Receive)
	mux.HandleFunc("GET /v1/webhooks", webhookH.List)
	mux.HandleFunc("GET /v1/webhooks/{event_id}", webhookH.Get)

	mux.HandleFunc("POST /v1/subscriptions", subscriptionH.Create)
	mux.HandleFunc("POST /v1/subscriptions/{id}/cancel-at-period-end", subscriptionH.CancelAtPeriodEnd)

	mux.HandleFunc("POST /v1/jobs/enforce-grace", cronH.EnforceGrace)
	mux.HandleFunc("POST /v1/jobs/expire-subscriptions", cronH.ExpireSubscriptions)
	mux.HandleFunc("POST /v1/jobs/retry-failed-webhooks", cronH.RetryFailedWebhooks)

	mux.HandleFunc("POST /v1/admin/webhooks/{event_id}/reprocess", adminH.Reprocess)
	mux.HandleFunc("GET /v1/admin/metrics", adminH.Metrics)
	mux.Handle("GET /v1/metrics", observability.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// initLogger initializes the logger
func initLogger() *zap.Logger {
	if os.Getenv("LOG_DEVELOPMENT") == "true" {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(os.Getenv("LOG_LEVEL")); err == nil {
		zapCfg.Level = level
	}
	logger, err := zapCfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// initDatabase creates the pgx connection pool and verifies connectivity
func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Connection pool configured",
		zap.Int32("max_conns", cfg.Database.MaxConns),
		zap.Int32("min_conns", cfg.Database.MinConns),
	)
	return pool, nil
}

// initSecretRegistry loads the secrets document from the configured source
// and builds the provider registry
func initSecretRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gatekeeper.Registry, error) {
	var source secrets.Source
	switch cfg.Webhook.SecretSource {
	case "aws":
		awsSource, err := secrets.NewAWSSource(ctx, cfg.Webhook.AWSRegion, cfg.Webhook.AWSSecretID, logger)
		if err != nil {
			return nil, err
		}
		source = awsSource
	case "vault":
		mount, path := splitVaultPath(cfg.Webhook.VaultPath)
		vaultSource, err := secrets.NewVaultSource(mount, path, logger)
		if err != nil {
			return nil, err
		}
		source = vaultSource
	default:
		source = secrets.NewEnvSource(cfg.Webhook.SecretsJSON)
	}

	document, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return gatekeeper.NewRegistry(document)
}

// splitVaultPath separates "mount/path/to/secret" into the KV mount and the
// secret path within it
func splitVaultPath(full string) (string, string) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) < 2 {
		return "secret", full
	}
	return parts[0], parts[1]
}

// initRateLimiter selects the shared Redis window when an address is
// configured, the in-process window otherwise
func initRateLimiter(cfg *config.Config, logger *zap.Logger) gatekeeper.RateLimiter {
	if cfg.Webhook.RedisAddr == "" {
		logger.Info("Using in-process webhook rate limiter",
			zap.Int("per_minute", cfg.Webhook.RateLimitPerMinute),
		)
		return gatekeeper.NewMemoryRateLimiter(cfg.Webhook.RateLimitPerMinute)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Webhook.RedisAddr,
		Password: cfg.Webhook.RedisPassword,
	})
	logger.Info("Using Redis webhook rate limiter",
		zap.String("addr", cfg.Webhook.RedisAddr),
		zap.Int("per_minute", cfg.Webhook.RateLimitPerMinute),
	)
	return gatekeeper.NewRedisRateLimiter(client, cfg.Webhook.RateLimitPerMinute)
}
