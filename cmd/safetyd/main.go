package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/crisis-safety-service/internal/adapter/classifier"
	"github.com/couchcryptid/crisis-safety-service/internal/adapter/googlemaps"
	httpadapter "github.com/couchcryptid/crisis-safety-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crisis-safety-service/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-safety-service/internal/adapter/redisstore"
	"github.com/couchcryptid/crisis-safety-service/internal/config"
	"github.com/couchcryptid/crisis-safety-service/internal/domain"
	"github.com/couchcryptid/crisis-safety-service/internal/observability"
	"github.com/couchcryptid/crisis-safety-service/internal/pipeline"
	"github.com/couchcryptid/crisis-safety-service/internal/safety"
)

func main() {
	_ = godotenv.Load() // absent .env is fine

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := redisstore.New(redisClient, logger)

	scorer := classifier.NewClient(cfg.ScorerURL, cfg.ScorerAPIKey, cfg.ScorerTimeout, logger)

	// Mapping provider is feature-flagged; without it the pipeline still
	// runs and only the route/composite queries report unavailable.
	var maps domain.MapProvider
	if cfg.MapsEnabled {
		client := googlemaps.NewClient(cfg.MapsAPIKey, cfg.MapsTimeout, metrics, logger)
		maps = googlemaps.NewCachedProvider(client, cfg.PlacesCacheSize, metrics)
		logger.Info("google maps enabled", "cache_size", cfg.PlacesCacheSize, "timeout", cfg.MapsTimeout)
	} else {
		logger.Info("google maps disabled")
	}

	var notifier httpadapter.NotificationPublisher
	var notifyPublisher *kafkaadapter.Publisher
	if cfg.PushEnabled {
		notifyPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, logger)
		notifier = notifyPublisher
	}

	var alerts pipeline.AlertPublisher
	var alertPublisher *kafkaadapter.Publisher
	if cfg.AlertsEnabled {
		alertPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertsTopic, logger)
		alerts = alertPublisher
	}

	processor := pipeline.NewProcessor(store, scorer, alerts, clock, cfg.ScorerTimeout, logger, metrics)
	poller := pipeline.NewPoller(store, processor, clock,
		cfg.PollInterval, cfg.PollBatchSize, cfg.WorkerCount, logger, metrics)

	engine := safety.NewEngine(store, maps, safety.Config{
		ThreatRadiusKM:    cfg.ThreatRadiusKM,
		MinRiskScore:      cfg.MinRiskScore,
		CheckRadiusKM:     cfg.CheckRadiusKM,
		RouteSampleStride: cfg.RouteSampleStride,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, engine, notifier, poller, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := poller.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	var reader *kafkaadapter.Reader
	if cfg.PushEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		listener := pipeline.NewListener(reader, processor, clock, logger, metrics)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := listener.Run(ctx); err != nil {
				logger.Error("listener error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// In-flight transitions run on a detached context; join the poller
	// and listener before closing the connections they write through.
	workers.Wait()
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if notifyPublisher != nil {
		if err := notifyPublisher.Close(); err != nil {
			logger.Error("kafka notify publisher close error", "error", err)
		}
	}
	if alertPublisher != nil {
		if err := alertPublisher.Close(); err != nil {
			logger.Error("kafka alert publisher close error", "error", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("shutdown complete")
}
