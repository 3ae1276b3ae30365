/*
main.go - Application entry point

PURPOSE:
  Starts the agro-processing inventory ledger server. Handles
  configuration, dependency wiring and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Initialize logger
  3. Load the wage rate table and the JWT secret
  4. Open store (SQLite or PostgreSQL)
  5. Connect the optional Redis stock cache
  6. Build services, handler and router
  7. Start the stock audit scheduler
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM, or when the listener fails:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the stock audit
  4. Close cache and database connections
  5. Exit

EXAMPLES:
  # SQLite file
  ./server -db="./data/agro.db"

  # PostgreSQL with Redis cache
  DB_DRIVER=postgres DATABASE_URL="postgres://..." REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/agro-ledger/api"
	"github.com/warp/agro-ledger/config"
	"github.com/warp/agro-ledger/factory"
	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/logger"
	"github.com/warp/agro-ledger/store/rediscache"
	"github.com/warp/agro-ledger/store/sqlstore"
	"github.com/warp/agro-ledger/wages"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	log := logger.Init("agro-ledger", cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	// Wage rates and auth are checked before any connection is opened;
	// log.Fatal skips deferred calls.
	rates, err := loadRates(cfg.RatesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load wage rates")
	}

	secret, err := jwtSecret(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid auth configuration")
	}
	auth := api.NewAuthenticator(secret, 24*time.Hour)
	if cfg.JWTSecret == "" {
		token, err := auth.GenerateToken("dev-admin", api.RoleAdmin)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate development admin token")
		} else {
			log.Warn().Str("token", token).Msg("JWT_SECRET not set; using a random secret and a development admin token")
		}
	}

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Stock cache
	var cache *rediscache.Cache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cache, err = rediscache.Dial(ctx, cfg.RedisAddr, cfg.StockCacheTTL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Stock cache disabled")
		} else {
			defer cache.Close()
			log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.StockCacheTTL).Msg("Stock cache enabled")
		}
	}

	// Services
	inv := inventory.NewService(store)
	inv.AllowNegativeStock = cfg.AllowNegativeStock
	inv.Log = logger.Component("inventory")
	if cache != nil {
		inv.Cache = cache
	}

	wg := wages.NewService(store, rates)
	wg.Log = logger.Component("wages")

	// Handler and router
	handler := api.NewHandler(inv, wg)
	handler.Log = logger.Component("http")
	handler.Ping = func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		if cache != nil {
			return cache.Ping(ctx)
		}
		return nil
	}

	// Stock audit
	auditor := api.NewStockAuditor(inv, logger.Component("audit"))
	auditor.Interval = cfg.StockAuditInterval
	auditor.Enabled = cfg.StockAuditInterval > 0
	handler.Auditor = auditor
	auditor.Start()

	router := api.NewRouter(handler, auth)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("driver", cfg.DBDriver).
			Bool("allow_negative_stock", cfg.AllowNegativeStock).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		log.Error().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	auditor.Stop()

	log.Info().Msg("Server stopped")
}

func openStore(cfg *config.Config) (*sqlstore.Store, error) {
	if cfg.DBDriver == config.DriverPostgres {
		return sqlstore.OpenPostgres(cfg.DatabaseURL)
	}
	return sqlstore.OpenSQLite(cfg.DBPath)
}

func loadRates(path string) (wages.RateTable, error) {
	f := factory.NewRateFactory()
	if path == "" {
		return f.ParseRates(factory.DefaultRatesJSON)
	}
	return f.LoadFile(path)
}

// jwtSecret returns the configured secret. Development runs without one
// get a random per-process secret; production refuses to start.
func jwtSecret(cfg *config.Config, log zerolog.Logger) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	if !cfg.IsDevelopment() {
		return "", errors.New("JWT_SECRET is required in production")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	log.Debug().Msg("generated random JWT secret")
	return hex.EncodeToString(buf), nil
}
