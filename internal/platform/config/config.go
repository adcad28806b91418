package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	OwnerSharePercent  int
	ViewCacheTTL       time.Duration
	FreshnessWindow    time.Duration
	VisitWriteInterval time.Duration
	IdempotencyTTL     time.Duration

	EnableOutboxRelay  bool
	EnableCacheJanitor bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "inkwell"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		OwnerSharePercent:  envInt("OWNER_SHARE_PERCENT", 90),
		ViewCacheTTL:       envDuration("VIEW_CACHE_TTL", 10*time.Minute),
		FreshnessWindow:    envDuration("VIEW_FRESHNESS_WINDOW", time.Minute),
		VisitWriteInterval: envDuration("VISIT_WRITE_INTERVAL", time.Minute),
		IdempotencyTTL:     envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour),

		EnableOutboxRelay:  envBool("ENABLE_OUTBOX_RELAY", true),
		EnableCacheJanitor: envBool("ENABLE_CACHE_JANITOR", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
