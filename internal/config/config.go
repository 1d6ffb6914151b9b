// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDatabase = errors.New("DATABASE_URL or DB_HOST/DB_NAME environment variables are required")
	ErrInvalidPoolSize = errors.New("DB_POOL_SIZE must be a positive integer")
)

// Database holds connection pool settings.
type Database struct {
	// URL takes precedence over the individual fields when set.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	PoolSize    int
	IdleTimeout time.Duration
}

// DSN returns a connection string for pgx. It never appears in logs.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	return u.String()
}

// Mirror configures the S3 bucket study documents are copied to. An empty
// bucket disables mirroring.
type Mirror struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Config is everything the server needs at startup.
type Config struct {
	Port           string
	Database       Database
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	Mirror         Mirror
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - PORT (default 5050)
//   - DATABASE_URL, or DB_HOST, DB_PORT (default 5432), DB_USER, DB_PASSWORD, DB_NAME
//   - DB_POOL_SIZE (default 20), DB_IDLE_TIMEOUT (default 30s)
//   - CORS_ALLOWED_ORIGINS: comma separated
//   - RATE_LIMIT_RPS (default 20), RATE_LIMIT_BURST (default 40); RPS 0 disables limiting
//   - MIRROR_S3_BUCKET, MIRROR_S3_REGION, MIRROR_S3_ENDPOINT, MIRROR_S3_PATH_STYLE
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "5050"),
		Database: Database{
			URL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
			Host:     strings.TrimSpace(os.Getenv("DB_HOST")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     strings.TrimSpace(os.Getenv("DB_NAME")),
		},
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Mirror: Mirror{
			Bucket:    strings.TrimSpace(os.Getenv("MIRROR_S3_BUCKET")),
			Region:    os.Getenv("MIRROR_S3_REGION"),
			Endpoint:  os.Getenv("MIRROR_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("MIRROR_S3_PATH_STYLE"), "true"),
		},
	}

	var err error
	if cfg.Database.Port, err = intEnv("DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.Database.PoolSize, err = intEnv("DB_POOL_SIZE", 20); err != nil {
		return Config{}, err
	}
	if cfg.Database.IdleTimeout, err = durationEnv("DB_IDLE_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitRPS, err = floatEnv("RATE_LIMIT_RPS", 20); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 40); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the server.
func (c Config) Validate() error {
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return ErrMissingDatabase
	}
	if c.Database.PoolSize <= 0 {
		return ErrInvalidPoolSize
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
