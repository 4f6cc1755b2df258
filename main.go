package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"early-listing-bot/config"
	"early-listing-bot/internal/api"
	"early-listing-bot/internal/bridge"
	"early-listing-bot/internal/database"
	"early-listing-bot/internal/detector"
	"early-listing-bot/internal/enrichment"
	"early-listing-bot/internal/executor"
	"early-listing-bot/internal/logging"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("Early listing bot starting")

	// PostgreSQL for pattern history and trade targets
	var (
		db          *database.DB
		patternRepo *database.PatternRepository
		targetRepo  *database.TargetRepository
	)
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("PostgreSQL unavailable, running without pattern history")
		} else {
			defer db.Close()

			migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := db.RunMigrations(migrateCtx); err != nil {
				logger.Fatal().Err(err).Msg("Database migrations failed")
			}
			cancel()

			patternRepo = database.NewPatternRepository(db, logger)
			targetRepo = database.NewTargetRepository(db, logger)
		}
	}

	// Redis for execution state and target dedup
	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		defer redisClient.Close()
	}
	executionStore := database.NewRedisExecutionStore(redisClient, logger)
	deduper := database.NewRedisDeduper(redisClient, logger)

	// Optional LLM enrichment
	var enrich detector.EnrichmentProvider
	if cfg.EnrichmentConfig.Enabled {
		enrich = enrichment.NewLLMProvider(enrichment.ProviderConfig{
			Client: enrichment.ClientConfig{
				Provider: enrichment.Provider(cfg.EnrichmentConfig.Provider),
				APIKey:   cfg.EnrichmentConfig.APIKey(),
				Model:    cfg.EnrichmentConfig.Model,
			},
			CacheTTL: cfg.EnrichmentConfig.CacheTTLDuration(),
		}, logger)
		logger.Info().Str("provider", cfg.EnrichmentConfig.Provider).Msg("LLM enrichment enabled")
	}

	// Detection pipeline
	var store detector.PatternStore
	var rates detector.SuccessRateSource
	if patternRepo != nil {
		store = patternRepo
		rates = patternRepo
	}

	readyCfg := detector.DefaultReadyStateConfig()
	readyCfg.EnrichmentConcurrency = cfg.DetectionConfig.EnrichmentConcurrency
	readyCfg.EnrichmentTimeout = time.Duration(cfg.DetectionConfig.EnrichmentTimeout) * time.Second

	advanceCfg := detector.DefaultAdvanceConfig()
	advanceCfg.MinAdvanceHours = cfg.DetectionConfig.MinAdvanceHours
	advanceCfg.EnrichmentConcurrency = cfg.DetectionConfig.EnrichmentConcurrency
	advanceCfg.EnrichmentTimeout = time.Duration(cfg.DetectionConfig.EnrichmentTimeout) * time.Second

	ready := detector.NewReadyStateDetector(readyCfg, enrich, store, rates, logger)
	preReady := detector.NewPreReadyDetector(detector.DefaultPreReadyConfig(), logger)
	advance := detector.NewAdvanceOpportunityDetector(advanceCfg, enrich, store, rates, logger)

	var correlation *detector.CorrelationAnalyzer
	if cfg.DetectionConfig.CorrelationEnabled && enrich != nil {
		correlation = detector.NewCorrelationAnalyzer(detector.DefaultCorrelationConfig(), enrich, logger)
	}

	orchestrator := detector.NewOrchestrator(ready, preReady, advance, correlation, logger)

	// Execution side
	manager := executor.NewManager(executionStore, logger)

	var sink bridge.TargetSink
	if targetRepo != nil {
		sink = targetRepo
	}
	br := bridge.New(bridge.Config{
		MinConfidence: cfg.BridgeConfig.MinConfidence,
		MaxRisk:       cfg.BridgeConfig.MaxRisk,
		DedupWindow:   cfg.BridgeConfig.DedupWindowDuration(),
	}, deduper, sink, logger)

	// HTTP API
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: true,
	}, orchestrator, manager, br, db, patternRepo, targetRepo, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	logger.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Msg("Early listing bot started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// Snapshot open executors so positions survive restarts
	for _, positionID := range manager.Positions() {
		if exec, err := manager.Get(positionID); err == nil {
			exec.SaveSnapshot(shutdownCtx)
		}
	}

	logger.Info().Msg("Shutdown complete")
}
