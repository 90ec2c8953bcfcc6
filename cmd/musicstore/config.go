package main

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application-wide settings sourced from the environment.
type Config struct {
	DatabaseURL       string
	LogLevel          string
	LogFormat         string
	DefaultPriceCents int64
	IngestWorkers     int
	ConnectMaxWait    time.Duration
	ConnectBackoff    time.Duration
}

func loadConfig() (Config, error) {
	_ = godotenv.Load("config/local.env")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Config{}, errors.New("DATABASE_URL env var is required")
	}

	price, err := strconv.ParseInt(envOrDefault("DEFAULT_PRICE_CENTS", "99"), 10, 64)
	if err != nil || price < 0 {
		return Config{}, errors.New("DEFAULT_PRICE_CENTS must be a non-negative integer")
	}

	workers, err := strconv.Atoi(envOrDefault("INGEST_WORKERS", "2"))
	if err != nil || workers < 1 {
		return Config{}, errors.New("INGEST_WORKERS must be a positive integer")
	}

	maxWait, err := time.ParseDuration(envOrDefault("DB_CONNECT_MAX_WAIT", "30s"))
	if err != nil || maxWait <= 0 {
		return Config{}, errors.New("DB_CONNECT_MAX_WAIT must be a positive duration")
	}

	backoff, err := time.ParseDuration(envOrDefault("DB_CONNECT_BACKOFF", "500ms"))
	if err != nil || backoff <= 0 {
		return Config{}, errors.New("DB_CONNECT_BACKOFF must be a positive duration")
	}

	return Config{
		DatabaseURL:       dsn,
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "text"),
		DefaultPriceCents: price,
		IngestWorkers:     workers,
		ConnectMaxWait:    maxWait,
		ConnectBackoff:    backoff,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
