package detector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ReadyStateConfig holds the tunables for ready-state detection.
type ReadyStateConfig struct {
	TargetStatusTrading   int     `json:"target_status_trading"`
	TargetStatusState     int     `json:"target_status_state"`
	TargetTradingTimeFlag int     `json:"target_trading_time_flag"`
	MinConfidence         float64 `json:"min_confidence"`
	EnrichmentConcurrency int     `json:"enrichment_concurrency"` // max concurrent enrichment calls
	EnrichmentTimeout     time.Duration
}

// DefaultReadyStateConfig returns the canonical target tuple and thresholds.
func DefaultReadyStateConfig() ReadyStateConfig {
	return ReadyStateConfig{
		TargetStatusTrading:   2,
		TargetStatusState:     2,
		TargetTradingTimeFlag: 4,
		MinConfidence:         85,
		EnrichmentConcurrency: 5,
		EnrichmentTimeout:     10 * time.Second,
	}
}

// ReadyStateDetector recognizes symbols whose status tuple exactly matches
// the immediately-tradable target state.
type ReadyStateDetector struct {
	scorer *ConfidenceScorer
	enrich EnrichmentProvider // optional, nil disables enrichment
	store  PatternStore       // optional, nil disables persistence
	rates  SuccessRateSource  // optional, nil means zero historical rate
	cfg    ReadyStateConfig
	logger zerolog.Logger
	nowFn  func() time.Time
}

// SuccessRateSource supplies the historical success rate (0-100) for a
// pattern family, typically backed by stored match outcomes.
type SuccessRateSource interface {
	SuccessRate(ctx context.Context, patternType PatternType) float64
}

// NewReadyStateDetector creates a detector with injected collaborators.
// enrich, store and rates may be nil.
func NewReadyStateDetector(cfg ReadyStateConfig, enrich EnrichmentProvider, store PatternStore, rates SuccessRateSource, logger zerolog.Logger) *ReadyStateDetector {
	if cfg.EnrichmentConcurrency <= 0 {
		cfg.EnrichmentConcurrency = 5
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 10 * time.Second
	}
	return &ReadyStateDetector{
		scorer: NewConfidenceScorer(),
		enrich: enrich,
		store:  store,
		rates:  rates,
		cfg:    cfg,
		logger: logger.With().Str("component", "ReadyStateDetector").Logger(),
		nowFn:  time.Now,
	}
}

// isReadyState applies the exact-match rule.
func (d *ReadyStateDetector) isReadyState(s SymbolStatus) bool {
	return s.StatusTrading == d.cfg.TargetStatusTrading &&
		s.StatusState == d.cfg.TargetStatusState &&
		s.TradingTimeFlag == d.cfg.TargetTradingTimeFlag
}

// Detect scans the symbol batch and emits a match for every symbol in the
// exact ready state whose confidence clears the threshold. Enrichment calls
// run concurrently with a bounded fan-out; output order follows input order
// so identical inputs produce identical results.
func (d *ReadyStateDetector) Detect(ctx context.Context, symbols []SymbolStatus) []PatternMatch {
	candidates := make([]int, 0, len(symbols))
	for i, s := range symbols {
		if d.isReadyState(s) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	boosts := d.fetchBoosts(ctx, symbols, candidates)

	historicalRate := 0.0
	if d.rates != nil {
		historicalRate = d.rates.SuccessRate(ctx, PatternReadyState)
	}

	var matches []PatternMatch
	for n, idx := range candidates {
		s := symbols[idx]
		features := FeatureSet{
			ExactStatusMatch:      true,
			HasVcoinID:            s.VcoinID != "",
			HasAdditionalData:     s.HasAdditionalData,
			HistoricalSuccessRate: historicalRate,
			EnrichmentBoost:       boosts[n].Boost,
		}
		confidence := d.scorer.ScoreReadyState(features)
		if confidence < d.cfg.MinConfidence {
			d.logger.Debug().
				Str("symbol", s.Code).
				Float64("confidence", confidence).
				Msg("Ready state below confidence threshold, skipped")
			continue
		}

		match := PatternMatch{
			PatternType: PatternReadyState,
			Confidence:  confidence,
			Symbol:      s.Code,
			VcoinID:     s.VcoinID,
			Indicators: map[string]interface{}{
				"status_trading":    s.StatusTrading,
				"status_state":      s.StatusState,
				"trading_time_flag": s.TradingTimeFlag,
				"enrichment_boost":  boosts[n].Boost,
			},
			DetectedAt:            d.nowFn(),
			AdvanceNoticeHours:    0,
			RiskLevel:             classifyRisk(confidence),
			Recommendation:        readyRecommendation(confidence),
			HistoricalSuccessRate: historicalRate,
		}
		if len(boosts[n].Insights) > 0 {
			match.Indicators["enrichment_insights"] = boosts[n].Insights
		}
		matches = append(matches, match)
		d.persist(ctx, match)
	}
	return matches
}

// fetchBoosts runs the enrichment calls for the candidate symbols with a
// bounded fan-out. A failed or missing provider contributes zero.
func (d *ReadyStateDetector) fetchBoosts(ctx context.Context, symbols []SymbolStatus, candidates []int) []EnrichmentResult {
	results := make([]EnrichmentResult, len(candidates))
	if d.enrich == nil {
		return results
	}

	sem := make(chan struct{}, d.cfg.EnrichmentConcurrency)
	var wg sync.WaitGroup
	for n, idx := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(n, idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			s := symbols[idx]
			callCtx, cancel := context.WithTimeout(ctx, d.cfg.EnrichmentTimeout)
			defer cancel()

			res, err := d.enrich.ScorePattern(callCtx, s.Code, FeatureSet{
				ExactStatusMatch:  true,
				HasVcoinID:        s.VcoinID != "",
				HasAdditionalData: s.HasAdditionalData,
			})
			if err != nil {
				d.logger.Warn().
					Err(err).
					Str("symbol", s.Code).
					Msg("Enrichment unavailable, contribution treated as zero")
				return
			}
			results[n] = res
		}(n, idx)
	}
	wg.Wait()
	return results
}

// persist saves the match fire-and-forget. Persistence failure must not fail
// detection; the error is logged with enough context to retry out-of-band.
func (d *ReadyStateDetector) persist(ctx context.Context, match PatternMatch) {
	if d.store == nil {
		return
	}
	if err := d.store.SavePattern(ctx, match); err != nil {
		d.logger.Error().
			Err(err).
			Str("symbol", match.Symbol).
			Str("pattern_type", string(match.PatternType)).
			Float64("confidence", match.Confidence).
			Msg("Failed to persist pattern match")
	}
}

// readyRecommendation maps a ready-state confidence to its action tier.
func readyRecommendation(confidence float64) Recommendation {
	if confidence >= 90 {
		return RecommendImmediateAction
	}
	return RecommendMonitorClosely
}
