/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory, if present (joho/godotenv)
  3. Process environment
  4. Command-line flags (cmd/server: -port, -db)

VARIABLES:
  PORT                  HTTP port                           8080
  DB_DRIVER             sqlite3 | postgres                  sqlite3
  DB_PATH               SQLite file, or ":memory:"          agro.db
  DATABASE_URL          PostgreSQL DSN (postgres driver)
  REDIS_ADDR            Stock cache address; empty disables the cache
  STOCK_CACHE_TTL       Go duration                         5m
  JWT_SECRET            HS256 signing key for write access
  LOG_LEVEL             debug | info | warn | error         info
  ENVIRONMENT           development | production            development
  ALLOW_NEGATIVE_STOCK  Allow sales beyond on-hand stock    true
  RATES_FILE            JSON wage rate table; empty uses the built-in one
  STOCK_AUDIT_INTERVAL  Go duration; 0 disables the audit   15m
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Port               int
	DBDriver           string
	DBPath             string
	DatabaseURL        string
	RedisAddr          string
	StockCacheTTL      time.Duration
	JWTSecret          string
	LogLevel           string
	Environment        string
	AllowNegativeStock bool
	RatesFile          string
	StockAuditInterval time.Duration
}

// Load reads .env (when present) and the environment. A missing .env is
// not an error; a malformed value is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, for tests.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		DBDriver:    env("DB_DRIVER", DriverSQLite),
		DBPath:      env("DB_PATH", "agro.db"),
		DatabaseURL: env("DATABASE_URL", ""),
		RedisAddr:   env("REDIS_ADDR", ""),
		JWTSecret:   env("JWT_SECRET", ""),
		LogLevel:    env("LOG_LEVEL", "info"),
		Environment: env("ENVIRONMENT", "development"),
		RatesFile:   env("RATES_FILE", ""),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(env("PORT", "8080")); err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	if cfg.StockCacheTTL, err = time.ParseDuration(env("STOCK_CACHE_TTL", "5m")); err != nil {
		return nil, fmt.Errorf("STOCK_CACHE_TTL: %w", err)
	}
	if cfg.StockAuditInterval, err = time.ParseDuration(env("STOCK_AUDIT_INTERVAL", "15m")); err != nil {
		return nil, fmt.Errorf("STOCK_AUDIT_INTERVAL: %w", err)
	}
	if cfg.AllowNegativeStock, err = strconv.ParseBool(env("ALLOW_NEGATIVE_STOCK", "true")); err != nil {
		return nil, fmt.Errorf("ALLOW_NEGATIVE_STOCK: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for sqlite3")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver)
	}
	if c.StockAuditInterval < 0 {
		return fmt.Errorf("STOCK_AUDIT_INTERVAL %s is negative", c.StockAuditInterval)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}
