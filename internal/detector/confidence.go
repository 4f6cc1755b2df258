package detector

// Confidence caps per pattern family. The enrichment contribution is bounded
// separately so a misbehaving external signal can shift a score by at most
// MaxEnrichmentBoost, never invalidate the detector.
const (
	ReadyStateBase      = 50.0
	ReadyStateCap       = 95.0
	AdvanceBase         = 40.0
	AdvanceCap          = 90.0
	ExactMatchBonus     = 30.0
	OptionalFieldBonus  = 5.0
	SuccessRateWeight   = 0.1
	MaxEnrichmentBoost  = 20.0
)

// FeatureSet holds the raw signals the scorer turns into a confidence number.
type FeatureSet struct {
	ExactStatusMatch      bool    `json:"exact_status_match"`
	HasVcoinID            bool    `json:"has_vcoin_id"`
	HasAdditionalData     bool    `json:"has_additional_data"`
	HistoricalSuccessRate float64 `json:"historical_success_rate"` // 0-100
	EnrichmentBoost       float64 `json:"enrichment_boost"`
}

// ConfidenceScorer turns feature sets into bounded confidence scores.
// Pure and stateless; safe to share.
type ConfidenceScorer struct{}

// NewConfidenceScorer creates a new scorer.
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// ScoreReadyState scores a ready-state candidate. Additive model: base 50,
// +30 for the exact status match, +5 per populated optional field,
// historical success rate weighted at 0.1, enrichment bounded to +20.
// Result is clamped to [0, 95].
func (cs *ConfidenceScorer) ScoreReadyState(features FeatureSet) float64 {
	score := ReadyStateBase
	if features.ExactStatusMatch {
		score += ExactMatchBonus
	}
	if features.HasVcoinID {
		score += OptionalFieldBonus
	}
	if features.HasAdditionalData {
		score += OptionalFieldBonus
	}
	score += features.HistoricalSuccessRate * SuccessRateWeight
	score += clampBoost(features.EnrichmentBoost)
	return clamp(score, 0, ReadyStateCap)
}

// AdvanceFeatureSet holds the signals scored for advance opportunities.
type AdvanceFeatureSet struct {
	AdvanceHours          float64 `json:"advance_hours"`
	CategoryScore         float64 `json:"category_score"`
	WeekdayLaunch         bool    `json:"weekday_launch"`
	ActiveHoursLaunch     bool    `json:"active_hours_launch"`
	HistoricalSuccessRate float64 `json:"historical_success_rate"`
	EnrichmentBoost       float64 `json:"enrichment_boost"`
}

// ScoreAdvanceOpportunity scores a calendar entry. Base 40, lead-time bonus
// tiered at the 6h/12h breakpoints, project category score, market-timing
// bonuses, historical rate at 0.1, enrichment bounded to +20. Clamped to
// [0, 90].
func (cs *ConfidenceScorer) ScoreAdvanceOpportunity(features AdvanceFeatureSet) float64 {
	score := AdvanceBase
	switch {
	case features.AdvanceHours >= 12:
		score += 20
	case features.AdvanceHours >= 6:
		score += 15
	default:
		score += 10
	}
	score += features.CategoryScore
	if features.WeekdayLaunch {
		score += 5
	}
	if features.ActiveHoursLaunch {
		score += 5
	}
	score += features.HistoricalSuccessRate * SuccessRateWeight
	score += clampBoost(features.EnrichmentBoost)
	return clamp(score, 0, AdvanceCap)
}

// clampBoost bounds the external enrichment contribution to [0, +20].
func clampBoost(boost float64) float64 {
	return clamp(boost, 0, MaxEnrichmentBoost)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
