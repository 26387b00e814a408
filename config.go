package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"checkout-service/database"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Port string
	Env  string

	Postgres database.PostgresConfig

	RedisURL string
	CartTTL  time.Duration

	KafkaBrokers      []string
	OrderEventsTopic  string
	PaymentTopic      string
	PaymentGroupID    string
	CatalogServiceURL string
	OrderSNSTopicARN  string

	JWTSecret string
}

// LoadConfig reads configuration from the environment, with .env support for
// local development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cartTTL, err := time.ParseDuration(getEnv("CART_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CART_TTL: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8084"),
		Env:  getEnv("ENV", "development"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartTTL:           cartTTL,
		KafkaBrokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrderEventsTopic:  getEnv("KAFKA_ORDER_EVENTS_TOPIC", "order-events"),
		PaymentTopic:      getEnv("KAFKA_PAYMENT_EVENTS_TOPIC", "payment-events"),
		PaymentGroupID:    getEnv("KAFKA_PAYMENT_GROUP_ID", "checkout-service"),
		CatalogServiceURL: getEnv("CATALOG_SERVICE_URL", "http://localhost:8082"),
		OrderSNSTopicARN:  os.Getenv("ORDER_SNS_TOPIC_ARN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
