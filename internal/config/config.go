package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Event store (Redis).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Push delivery (Kafka). PushEnabled controls the notification
	// listener; AlertsEnabled controls assessed-event alert publishing.
	KafkaBrokers     []string
	KafkaNotifyTopic string
	KafkaAlertsTopic string
	KafkaGroupID     string
	PushEnabled      bool
	AlertsEnabled    bool

	// Pipeline.
	PollInterval  time.Duration
	PollBatchSize int
	WorkerCount   int

	// Risk classifier.
	ScorerURL     string
	ScorerAPIKey  string
	ScorerTimeout time.Duration

	// Mapping provider.
	MapsAPIKey      string
	MapsEnabled     bool
	MapsTimeout     time.Duration
	PlacesCacheSize int

	// Safety engine defaults.
	ThreatRadiusKM    float64
	MinRiskScore      int
	CheckRadiusKM     float64
	RouteSampleStride int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	pollInterval, err := parseDurationEnv("POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	scorerTimeout, err := parseDurationEnv("SCORER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	mapsTimeout, err := parseDurationEnv("MAPS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	mapsAPIKey := os.Getenv("MAPS_API_KEY")
	mapsEnabled := mapsAPIKey != ""
	if v := os.Getenv("MAPS_ENABLED"); v != "" {
		mapsEnabled = v == "true"
	}

	cfg := &Config{
		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntEnv("REDIS_DB", 0),

		KafkaBrokers:     splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaNotifyTopic: envOrDefault("KAFKA_NOTIFY_TOPIC", "crisis-events"),
		KafkaAlertsTopic: envOrDefault("KAFKA_ALERTS_TOPIC", "crisis-alerts"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "crisis-safety"),
		PushEnabled:      os.Getenv("PUSH_ENABLED") == "true",
		AlertsEnabled:    os.Getenv("ALERTS_ENABLED") == "true",

		PollInterval:  pollInterval,
		PollBatchSize: parseIntEnv("POLL_BATCH_SIZE", 50),
		WorkerCount:   parseIntEnv("WORKER_COUNT", 4),

		ScorerURL:     envOrDefault("SCORER_URL", "http://localhost:8090/classify"),
		ScorerAPIKey:  os.Getenv("SCORER_API_KEY"),
		ScorerTimeout: scorerTimeout,

		MapsAPIKey:      mapsAPIKey,
		MapsEnabled:     mapsEnabled,
		MapsTimeout:     mapsTimeout,
		PlacesCacheSize: parseIntEnv("PLACES_CACHE_SIZE", 1000),

		ThreatRadiusKM:    parseFloatEnv("THREAT_RADIUS_KM", 50),
		MinRiskScore:      parseIntEnv("MIN_RISK_SCORE", 50),
		CheckRadiusKM:     parseFloatEnv("CHECK_RADIUS_KM", 25),
		RouteSampleStride: parseIntEnv("ROUTE_SAMPLE_STRIDE", 10),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.ScorerURL == "" {
		return nil, errors.New("SCORER_URL is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.PollBatchSize <= 0 {
		return nil, errors.New("POLL_BATCH_SIZE must be positive")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WORKER_COUNT must be positive")
	}
	if cfg.RouteSampleStride <= 0 {
		return nil, errors.New("ROUTE_SAMPLE_STRIDE must be positive")
	}
	if cfg.MinRiskScore < 0 || cfg.MinRiskScore > 100 {
		return nil, errors.New("MIN_RISK_SCORE must be within [0,100]")
	}
	if (cfg.PushEnabled || cfg.AlertsEnabled) && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when push or alerts are enabled")
	}
	if cfg.PushEnabled && cfg.KafkaNotifyTopic == "" {
		return nil, errors.New("KAFKA_NOTIFY_TOPIC is required when PUSH_ENABLED is true")
	}
	if cfg.AlertsEnabled && cfg.KafkaAlertsTopic == "" {
		return nil, errors.New("KAFKA_ALERTS_TOPIC is required when ALERTS_ENABLED is true")
	}
	if cfg.MapsEnabled && cfg.MapsAPIKey == "" {
		return nil, errors.New("MAPS_ENABLED is true but MAPS_API_KEY is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func parseFloatEnv(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return def
}
