// Package bridge turns detected patterns into prioritized trade targets for
// the execution side, deduplicating repeats of the same pattern so a symbol
// detected on every polling cycle produces one target.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"early-listing-bot/internal/detector"
)

// TradeTarget is the actionable output handed to the execution side.
type TradeTarget struct {
	ID                 string                  `json:"id"`
	Symbol             string                  `json:"symbol"`
	VcoinID            string                  `json:"vcoin_id,omitempty"`
	Confidence         float64                 `json:"confidence"`
	PatternType        detector.PatternType    `json:"pattern_type"`
	RiskLevel          detector.RiskLevel      `json:"risk_level"`
	Recommendation     detector.Recommendation `json:"recommendation"`
	AdvanceNoticeHours float64                 `json:"advance_notice_hours"`
	Priority           int                     `json:"priority"`
	ExecutionEstimate  time.Time               `json:"execution_estimate,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
}

// Deduper answers whether a pattern key is being seen for the first time
// within the dedup window.
type Deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config tunes target emission.
type Config struct {
	MinConfidence float64       `json:"min_confidence"`
	MaxRisk       string        `json:"max_risk"`
	DedupWindow   time.Duration `json:"dedup_window"`
}

// DefaultConfig returns default bridge configuration.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 70,
		MaxRisk:       string(detector.RiskMedium),
		DedupWindow:   30 * time.Minute,
	}
}

// TargetSink receives emitted targets, typically backed by Postgres.
type TargetSink interface {
	SaveTarget(ctx context.Context, target TradeTarget) error
}

// Bridge filters pattern matches and emits trade targets.
type Bridge struct {
	cfg     Config
	deduper Deduper
	sink    TargetSink // optional
	logger  zerolog.Logger
	nowFn   func() time.Time
}

// New creates a bridge. deduper must not be nil; sink may be.
func New(cfg Config, deduper Deduper, sink TargetSink, logger zerolog.Logger) *Bridge {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 70
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 30 * time.Minute
	}
	if cfg.MaxRisk == "" {
		cfg.MaxRisk = string(detector.RiskMedium)
	}
	return &Bridge{
		cfg:     cfg,
		deduper: deduper,
		sink:    sink,
		logger:  logger.With().Str("component", "Bridge").Logger(),
		nowFn:   time.Now,
	}
}

// EmitTargets converts qualifying matches into trade targets. Matches below
// the confidence floor, above the risk ceiling, or already seen within the
// dedup window are skipped. Deduper errors fail open: a broken dedup store
// must not suppress a real opportunity, a duplicate target is the cheaper
// mistake.
func (b *Bridge) EmitTargets(ctx context.Context, matches []detector.PatternMatch) []TradeTarget {
	targets := make([]TradeTarget, 0, len(matches))
	for _, match := range matches {
		if match.Confidence < b.cfg.MinConfidence {
			continue
		}
		if riskRank(match.RiskLevel) > riskRank(detector.RiskLevel(b.cfg.MaxRisk)) {
			continue
		}

		key := dedupKey(match)
		first, err := b.deduper.FirstSeen(ctx, key, b.cfg.DedupWindow)
		if err != nil {
			b.logger.Warn().Err(err).Str("symbol", match.Symbol).Msg("Dedup check failed, emitting anyway")
		} else if !first {
			continue
		}

		target := b.buildTarget(match)
		if b.sink != nil {
			if err := b.sink.SaveTarget(ctx, target); err != nil {
				b.logger.Error().Err(err).Str("symbol", target.Symbol).Msg("Failed to persist trade target")
			}
		}
		b.logger.Info().
			Str("symbol", target.Symbol).
			Str("pattern_type", string(target.PatternType)).
			Float64("confidence", target.Confidence).
			Int("priority", target.Priority).
			Msg("Trade target emitted")
		targets = append(targets, target)
	}
	return targets
}

func (b *Bridge) buildTarget(match detector.PatternMatch) TradeTarget {
	now := b.nowFn()
	target := TradeTarget{
		ID:                 uuid.NewString(),
		Symbol:             match.Symbol,
		VcoinID:            match.VcoinID,
		Confidence:         match.Confidence,
		PatternType:        match.PatternType,
		RiskLevel:          match.RiskLevel,
		Recommendation:     match.Recommendation,
		AdvanceNoticeHours: match.AdvanceNoticeHours,
		Priority:           priorityFor(match.Confidence),
		CreatedAt:          now,
	}
	if match.AdvanceNoticeHours > 0 {
		target.ExecutionEstimate = now.Add(time.Duration(match.AdvanceNoticeHours * float64(time.Hour)))
	}
	return target
}

// priorityFor maps confidence to execution priority, 1 being most urgent.
func priorityFor(confidence float64) int {
	switch {
	case confidence >= 90:
		return 1
	case confidence >= 80:
		return 2
	case confidence >= 70:
		return 3
	default:
		return 4
	}
}

func riskRank(r detector.RiskLevel) int {
	switch r {
	case detector.RiskLow:
		return 0
	case detector.RiskMedium:
		return 1
	default:
		return 2
	}
}

// dedupKey identifies a pattern occurrence by symbol and pattern type, so
// repeated detections of the same listing collapse into one target while a
// different pattern family for the same symbol still emits.
func dedupKey(match detector.PatternMatch) string {
	return fmt.Sprintf("%s:%s", match.Symbol, match.PatternType)
}
