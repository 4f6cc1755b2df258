// Package database provides PostgreSQL persistence for detected patterns
// and Redis-backed storage for execution state, with in-memory fallbacks so
// the decision engine keeps working when either store is down.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "Database").Logger()
	log.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		// Detected pattern matches with their eventual outcome for
		// historical success rate tracking
		`CREATE TABLE IF NOT EXISTS pattern_matches (
			id BIGSERIAL PRIMARY KEY,
			pattern_type VARCHAR(30) NOT NULL,
			symbol VARCHAR(30) NOT NULL,
			vcoin_id VARCHAR(60),
			confidence DECIMAL(5, 2) NOT NULL,
			risk_level VARCHAR(10) NOT NULL,
			recommendation VARCHAR(30) NOT NULL,
			advance_notice_hours DECIMAL(10, 2) NOT NULL DEFAULT 0,
			indicators JSONB,
			detected_at TIMESTAMP NOT NULL,
			outcome VARCHAR(20),
			outcome_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_matches_symbol ON pattern_matches(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_matches_type ON pattern_matches(pattern_type)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_matches_detected_at ON pattern_matches(detected_at DESC)`,

		// Trade targets emitted toward the execution side
		`CREATE TABLE IF NOT EXISTS trade_targets (
			id VARCHAR(60) PRIMARY KEY,
			symbol VARCHAR(30) NOT NULL,
			vcoin_id VARCHAR(60),
			pattern_type VARCHAR(30) NOT NULL,
			confidence DECIMAL(5, 2) NOT NULL,
			risk_level VARCHAR(10) NOT NULL,
			recommendation VARCHAR(30) NOT NULL,
			priority INT NOT NULL,
			advance_notice_hours DECIMAL(10, 2) NOT NULL DEFAULT 0,
			execution_estimate TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_targets_symbol ON trade_targets(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_targets_priority ON trade_targets(priority)`,

		// Phase execution records per position
		`CREATE TABLE IF NOT EXISTS phase_executions (
			id BIGSERIAL PRIMARY KEY,
			position_id VARCHAR(60) NOT NULL,
			phase INT NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			amount DECIMAL(20, 8) NOT NULL,
			profit DECIMAL(20, 8) NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phase_executions_position ON phase_executions(position_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
