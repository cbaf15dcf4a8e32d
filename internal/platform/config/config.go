// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	JWTIssuer     string
	PageSize      int

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig controls the optional record read cache.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// KafkaConfig controls the optional change-notification feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv reads configuration from the environment, applying development
// defaults where a value is absent.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("CIVREG_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("CIVREG_DATABASE_URL"),
		JWTSigningKey: envOr("CIVREG_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("CIVREG_JWT_ISSUER", "civreg"),
		PageSize:      envInt("CIVREG_PAGE_SIZE", 25),
		Redis: RedisConfig{
			URL: os.Getenv("CIVREG_REDIS_URL"),
			TTL: envDuration("CIVREG_REDIS_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Topic: envOr("CIVREG_KAFKA_TOPIC", "civreg.changes"),
		},
	}
	if brokers := os.Getenv("CIVREG_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
