// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server captures the full service configuration.
type Server struct {
	Addr             string
	DatabaseURL      string
	Redis            RedisConfig
	MinEventDelay    time.Duration
	IdentityValidity time.Duration
	SweepInterval    time.Duration
}

// RedisConfig describes the optional permission cache. An empty URL means
// Redis is not configured and the cache is skipped.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Server{
		Addr:        getenv("AGORA_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if cfg.DatabaseURL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL is required")
	}

	minDelayDays, err := getenvInt("MIN_EVENT_START_DELAY_DAYS", 15)
	if err != nil {
		return Server{}, err
	}
	validityDays, err := getenvInt("IDENTITY_VALIDITY_DAYS", 3653)
	if err != nil {
		return Server{}, err
	}
	sweep, err := getenvDuration("SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return Server{}, err
	}

	cfg.MinEventDelay = time.Duration(minDelayDays) * 24 * time.Hour
	cfg.IdentityValidity = time.Duration(validityDays) * 24 * time.Hour
	cfg.SweepInterval = sweep
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
