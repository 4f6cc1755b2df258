package detector

import (
	"time"

	"github.com/rs/zerolog"
)

// PreReadyRule maps a partial-progress status tuple to a confidence score
// and an estimated time until the symbol reaches the ready state. The rule
// set is a fixed decision table, not a learned model: changing it is a
// configuration change.
type PreReadyRule struct {
	StatusTrading int     `json:"status_trading"`
	StatusState   int     `json:"status_state"`
	// RequireFlagMismatch restricts the rule to symbols whose trading time
	// flag has not yet reached the ready-state target.
	RequireFlagMismatch bool    `json:"require_flag_mismatch"`
	Confidence          float64 `json:"confidence"`
	EstimatedHours      float64 `json:"estimated_hours"`
}

// PreReadyConfig holds the decision table and emit threshold.
type PreReadyConfig struct {
	Rules                 []PreReadyRule `json:"rules"`
	MinConfidence         float64        `json:"min_confidence"`
	TargetTradingTimeFlag int            `json:"target_trading_time_flag"`
}

// DefaultPreReadyConfig returns the canonical decision table.
func DefaultPreReadyConfig() PreReadyConfig {
	return PreReadyConfig{
		Rules: []PreReadyRule{
			{StatusTrading: 1, StatusState: 1, Confidence: 60, EstimatedHours: 6},
			{StatusTrading: 2, StatusState: 1, Confidence: 75, EstimatedHours: 2},
			{StatusTrading: 2, StatusState: 2, RequireFlagMismatch: true, Confidence: 85, EstimatedHours: 0.5},
		},
		MinConfidence:         60,
		TargetTradingTimeFlag: 4,
	}
}

// PreReadyDetector estimates time-until-ready for symbols progressing toward
// the ready state. Stateless.
type PreReadyDetector struct {
	cfg    PreReadyConfig
	logger zerolog.Logger
	nowFn  func() time.Time
}

// NewPreReadyDetector creates a detector from the decision table config.
func NewPreReadyDetector(cfg PreReadyConfig, logger zerolog.Logger) *PreReadyDetector {
	if len(cfg.Rules) == 0 {
		cfg = DefaultPreReadyConfig()
	}
	return &PreReadyDetector{
		cfg:    cfg,
		logger: logger.With().Str("component", "PreReadyDetector").Logger(),
		nowFn:  time.Now,
	}
}

// match returns the first rule matching the status tuple.
func (d *PreReadyDetector) match(s SymbolStatus) (PreReadyRule, bool) {
	for _, rule := range d.cfg.Rules {
		if s.StatusTrading != rule.StatusTrading || s.StatusState != rule.StatusState {
			continue
		}
		if rule.RequireFlagMismatch && s.TradingTimeFlag == d.cfg.TargetTradingTimeFlag {
			continue
		}
		return rule, true
	}
	return PreReadyRule{}, false
}

// Detect emits a pre_ready match for every symbol the decision table scores
// at or above the threshold.
func (d *PreReadyDetector) Detect(symbols []SymbolStatus) []PatternMatch {
	var matches []PatternMatch
	for _, s := range symbols {
		rule, ok := d.match(s)
		if !ok || rule.Confidence < d.cfg.MinConfidence {
			continue
		}
		matches = append(matches, PatternMatch{
			PatternType: PatternPreReady,
			Confidence:  rule.Confidence,
			Symbol:      s.Code,
			VcoinID:     s.VcoinID,
			Indicators: map[string]interface{}{
				"status_trading":    s.StatusTrading,
				"status_state":      s.StatusState,
				"trading_time_flag": s.TradingTimeFlag,
				"estimated_hours":   rule.EstimatedHours,
			},
			DetectedAt:         d.nowFn(),
			AdvanceNoticeHours: rule.EstimatedHours,
			RiskLevel:          classifyRisk(rule.Confidence),
			Recommendation:     preReadyRecommendation(rule),
		})
	}
	return matches
}

// preReadyRecommendation maps a decision-table rule to its action tier.
func preReadyRecommendation(rule PreReadyRule) Recommendation {
	if rule.EstimatedHours <= 2 && rule.Confidence >= 75 {
		return RecommendPrepareEntry
	}
	return RecommendMonitorClosely
}
