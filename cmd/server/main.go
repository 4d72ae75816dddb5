package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/a2a"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/api"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/credentials"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/feedback"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/registry"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/skills"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/tenant"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/trends"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/validation"
)

const serverVersion = "0.3.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize store. DATABASE_URL selects Postgres; SQLite is the
	// development default. Migrations run inside the constructors.
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
	}
	defer db.Close()

	// Optional Redis: shared challenge replay detection and trend
	// snapshot sharing across instances.
	var redisClient *redis.Client
	var replay a2a.ReplayStore
	if cfg.RedisURL != "" {
		redisReplay, err := store.NewRedisReplay(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisReplay.Close()
		replay = redisReplay

		opts, _ := redis.ParseURL(cfg.RedisURL)
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		logger.Info().Msg("connected to Redis")
	} else {
		replay = store.NewMemoryReplay()
	}

	// Name resolution is optional: without an RPC endpoint tenants
	// resolve with an unknown account.
	var names registry.NameResolver
	if rpcURL := cfg.RPCURL(); rpcURL != "" {
		resolver, err := registry.NewENSResolver(rpcURL, cfg.IdentityRegistry)
		if err != nil {
			logger.Fatal().Err(err).Msg("name resolver init failed")
		}
		names = resolver
		logger.Info().Int64("chain_id", cfg.ChainID).Msg("name resolver connected")
	}

	sealer, err := credentials.NewSealer(cfg.SessionSealKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("seal key derivation failed")
	}
	creds := credentials.NewResolver(db, sealer, cfg.SessionPackageFile, logger)

	feedbackSvc := feedback.NewService(db, creds, registry.NewSessionAuthIssuer(), cfg.ChainID, logger)

	var validationReg registry.ValidationRegistry
	if cfg.ValidationRegistryURL != "" {
		validationReg = registry.NewValidationClient(cfg.ValidationRegistryURL)
	}
	validationSvc := validation.NewService(creds, validationReg, nil, cfg.ChainID, logger)

	trendCache := trends.NewCache(cfg.TrendsTTL, trends.FromStore(db), redisClient, logger)

	// Wire the dispatcher
	dispatcher := a2a.NewDispatcher(logger, a2a.NewSignatureVerifier(replay))
	skills.Register(dispatcher, skills.Deps{
		DB:         db,
		Feedback:   feedbackSvc,
		Validation: validationSvc,
		Trends:     trendCache,
		Logger:     logger,
	})

	card := dispatcher.CardHandler(
		"Agentic Trust Dispatcher",
		"Feedback authorization, validation and messaging skills for on-chain agent identities",
		"https://"+cfg.BaseDomain,
		serverVersion,
	)

	tenants := tenant.NewResolver(cfg.BaseDomain, cfg.ENSSuffix, names, logger)
	router := api.NewRouter(logger, db, dispatcher, tenants, card)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting trust dispatcher")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
