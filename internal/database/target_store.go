package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"early-listing-bot/internal/bridge"
)

// TargetRepository persists emitted trade targets. Implements
// bridge.TargetSink.
type TargetRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewTargetRepository creates a repository.
func NewTargetRepository(db *DB, logger zerolog.Logger) *TargetRepository {
	return &TargetRepository{
		db:     db,
		logger: logger.With().Str("component", "TargetRepository").Logger(),
	}
}

// SaveTarget inserts an emitted trade target.
func (r *TargetRepository) SaveTarget(ctx context.Context, target bridge.TradeTarget) error {
	query := `
		INSERT INTO trade_targets
			(id, symbol, vcoin_id, pattern_type, confidence, risk_level,
			 recommendation, priority, advance_notice_hours, execution_estimate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var estimate interface{}
	if !target.ExecutionEstimate.IsZero() {
		estimate = target.ExecutionEstimate
	}

	_, err := r.db.Pool.Exec(ctx, query,
		target.ID,
		target.Symbol,
		target.VcoinID,
		string(target.PatternType),
		target.Confidence,
		string(target.RiskLevel),
		string(target.Recommendation),
		target.Priority,
		target.AdvanceNoticeHours,
		estimate,
		target.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trade target: %w", err)
	}
	return nil
}

// PendingTargets returns unexpired targets ordered by priority then recency.
func (r *TargetRepository) PendingTargets(ctx context.Context, limit int) ([]bridge.TradeTarget, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, symbol, COALESCE(vcoin_id, ''), pattern_type, confidence,
			risk_level, recommendation, priority, advance_notice_hours,
			COALESCE(execution_estimate, '0001-01-01'::timestamp), created_at
		FROM trade_targets
		ORDER BY priority ASC, created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade targets: %w", err)
	}
	defer rows.Close()

	var targets []bridge.TradeTarget
	for rows.Next() {
		var t bridge.TradeTarget
		if err := rows.Scan(&t.ID, &t.Symbol, &t.VcoinID, &t.PatternType, &t.Confidence,
			&t.RiskLevel, &t.Recommendation, &t.Priority, &t.AdvanceNoticeHours,
			&t.ExecutionEstimate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
