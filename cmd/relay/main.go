// Package main provides the outbox relay service entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/lllypuk/corekit/internal/config"
	"github.com/lllypuk/corekit/internal/infrastructure/eventbus"
	"github.com/lllypuk/corekit/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/corekit/internal/infrastructure/mongodb"
	"github.com/lllypuk/corekit/internal/infrastructure/outbox"
	"github.com/lllypuk/corekit/internal/retry"
	"github.com/lllypuk/corekit/internal/worker"
)

// Timeout constants for the relay service.
const (
	redisPingTimeout   = 5 * time.Second
	indexCreateTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting outbox relay service",
		slog.String("app", cfg.App.Name),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if runErr := run(ctx, cfg, logger); runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("relay service failed", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("relay service shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Connect to MongoDB
	mongoClient, err := connectMongoDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if disconnectErr := mongoClient.Disconnect(context.Background()); disconnectErr != nil {
			logger.Error("failed to disconnect from MongoDB", slog.String("error", disconnectErr.Error()))
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Ensure collection indexes exist before polling
	indexCtx, indexCancel := context.WithTimeout(ctx, indexCreateTimeout)
	defer indexCancel()
	if indexErr := mongodbinfra.CreateAllIndexes(indexCtx, db); indexErr != nil {
		return indexErr
	}

	// Setup Redis for the event bus
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			logger.Error("failed to close Redis", slog.String("error", closeErr.Error()))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(ctx, redisPingTimeout)
	pingErr := redisClient.Ping(pingCtx).Err()
	pingCancel()
	if pingErr != nil {
		return pingErr
	}

	logger.InfoContext(ctx, "connected to Redis", slog.String("addr", cfg.Redis.Addr))

	// Setup event bus with the configured handler retry policy
	handlerRetry := retry.New(
		retry.WithMaxRetries(cfg.Retry.MaxRetries),
		retry.WithBaseDelay(cfg.Retry.BaseDelay),
		retry.WithMaxDelay(cfg.Retry.MaxDelay),
		retry.WithMultiplier(cfg.Retry.Multiplier),
		retry.WithLogger(logger),
	)

	eventBus := eventbus.NewRedisEventBus(
		redisClient,
		eventbus.WithLogger(logger),
		eventbus.WithChannelPrefix(cfg.EventBus.RedisChannelPrefix),
		eventbus.WithRetryPolicy(handlerRetry),
	)

	// Setup outbox
	outboxColl := db.Collection(mongodbinfra.CollectionOutbox)
	mongoOutbox := outbox.NewMongoOutbox(outboxColl, outbox.WithLogger(logger))

	// Setup metrics
	outboxMetrics := metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)

	outboxConfig := worker.OutboxWorkerConfig{
		PollInterval:    cfg.Outbox.PollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
		CleanupAge:      cfg.Outbox.CleanupAge,
		CleanupInterval: cfg.Outbox.CleanupInterval,
		Enabled:         cfg.Outbox.Enabled,
	}

	outboxWorker := worker.NewOutboxWorker(
		mongoOutbox,
		eventBus,
		logger,
		outboxConfig,
		outboxMetrics,
	)

	logger.Info("starting relay worker",
		slog.Bool("outbox_enabled", outboxConfig.Enabled),
		slog.Duration("outbox_poll_interval", outboxConfig.PollInterval),
		slog.Int("outbox_batch_size", outboxConfig.BatchSize),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return outboxWorker.Run(gctx)
	})

	return g.Wait()
}

// connectMongoDB establishes a connection to MongoDB with the configured pool size.
func connectMongoDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetMaxPoolSize(cfg.MongoDB.MaxPoolSize)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		_ = client.Disconnect(context.Background())
		return nil, pingErr
	}

	logger.InfoContext(ctx, "connected to MongoDB", slog.String("database", cfg.MongoDB.Database))

	return client, nil
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(),
	}

	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
