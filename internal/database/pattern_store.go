package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"early-listing-bot/internal/detector"
)

// Pattern outcome values recorded after a listing resolves.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StoredPattern is a persisted pattern match row.
type StoredPattern struct {
	ID                 int64                  `json:"id"`
	PatternType        string                 `json:"pattern_type"`
	Symbol             string                 `json:"symbol"`
	VcoinID            string                 `json:"vcoin_id,omitempty"`
	Confidence         float64                `json:"confidence"`
	RiskLevel          string                 `json:"risk_level"`
	Recommendation     string                 `json:"recommendation"`
	AdvanceNoticeHours float64                `json:"advance_notice_hours"`
	Indicators         map[string]interface{} `json:"indicators,omitempty"`
	DetectedAt         time.Time              `json:"detected_at"`
	Outcome            *string                `json:"outcome,omitempty"`
}

// PatternRepository persists pattern matches and serves the historical
// success rate the confidence scorer consumes. Implements both
// detector.PatternStore and detector.SuccessRateSource.
type PatternRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewPatternRepository creates a repository.
func NewPatternRepository(db *DB, logger zerolog.Logger) *PatternRepository {
	return &PatternRepository{
		db:     db,
		logger: logger.With().Str("component", "PatternRepository").Logger(),
	}
}

// SavePattern inserts a detected pattern match.
func (r *PatternRepository) SavePattern(ctx context.Context, match detector.PatternMatch) error {
	indicators, err := json.Marshal(match.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}

	query := `
		INSERT INTO pattern_matches
			(pattern_type, symbol, vcoin_id, confidence, risk_level,
			 recommendation, advance_notice_hours, indicators, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Pool.Exec(ctx, query,
		string(match.PatternType),
		match.Symbol,
		match.VcoinID,
		match.Confidence,
		string(match.RiskLevel),
		string(match.Recommendation),
		match.AdvanceNoticeHours,
		indicators,
		match.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pattern match: %w", err)
	}
	return nil
}

// MarkOutcome records how a detected pattern resolved. Only the most recent
// unresolved match for the symbol and pattern type is updated.
func (r *PatternRepository) MarkOutcome(ctx context.Context, symbol string, patternType detector.PatternType, outcome string) error {
	query := `
		UPDATE pattern_matches
		SET outcome = $1, outcome_at = NOW()
		WHERE id = (
			SELECT id FROM pattern_matches
			WHERE symbol = $2 AND pattern_type = $3 AND outcome IS NULL
			ORDER BY detected_at DESC
			LIMIT 1
		)`

	tag, err := r.db.Pool.Exec(ctx, query, outcome, symbol, string(patternType))
	if err != nil {
		return fmt.Errorf("failed to mark pattern outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no unresolved pattern for %s/%s", symbol, patternType)
	}
	return nil
}

// SuccessRate returns the percentage (0-100) of resolved matches of the
// given pattern type that succeeded. Zero when nothing has resolved yet or
// the query fails, so a broken database never blocks detection.
func (r *PatternRepository) SuccessRate(ctx context.Context, patternType detector.PatternType) float64 {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE outcome = $2),
			COUNT(*)
		FROM pattern_matches
		WHERE pattern_type = $1 AND outcome IS NOT NULL`

	var succeeded, resolved int64
	err := r.db.Pool.QueryRow(ctx, query, string(patternType), OutcomeSuccess).Scan(&succeeded, &resolved)
	if err != nil {
		r.logger.Warn().Err(err).Str("pattern_type", string(patternType)).Msg("Success rate query failed")
		return 0
	}
	if resolved == 0 {
		return 0
	}
	return float64(succeeded) / float64(resolved) * 100
}

// RecentPatterns returns the most recent matches, newest first.
func (r *PatternRepository) RecentPatterns(ctx context.Context, limit int) ([]StoredPattern, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, pattern_type, symbol, COALESCE(vcoin_id, ''), confidence,
			risk_level, recommendation, advance_notice_hours, indicators,
			detected_at, outcome
		FROM pattern_matches
		ORDER BY detected_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent patterns: %w", err)
	}
	defer rows.Close()

	var patterns []StoredPattern
	for rows.Next() {
		var p StoredPattern
		var indicators []byte
		if err := rows.Scan(&p.ID, &p.PatternType, &p.Symbol, &p.VcoinID, &p.Confidence,
			&p.RiskLevel, &p.Recommendation, &p.AdvanceNoticeHours, &indicators,
			&p.DetectedAt, &p.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &p.Indicators); err != nil {
				r.logger.Warn().Err(err).Int64("id", p.ID).Msg("Failed to decode indicators")
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
