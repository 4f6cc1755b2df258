package detector

import (
	"context"
	"fmt"
	"time"
)

// PatternType identifies which detection rule produced a match.
type PatternType string

const (
	PatternReadyState     PatternType = "ready_state"
	PatternPreReady       PatternType = "pre_ready"
	PatternLaunchSequence PatternType = "launch_sequence"
)

// RiskLevel classifies how risky acting on a match is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is the action tier assigned to a match.
type Recommendation string

const (
	RecommendImmediateAction Recommendation = "immediate_action"
	RecommendMonitorClosely  Recommendation = "monitor_closely"
	RecommendPrepareEntry    Recommendation = "prepare_entry"
	RecommendWait            Recommendation = "wait"
)

// SymbolStatus is one exchange symbol's latest known status snapshot.
// A new snapshot replaces the old one for the same Code.
type SymbolStatus struct {
	Code              string `json:"code"`
	VcoinID           string `json:"vcoin_id,omitempty"`
	StatusTrading     int    `json:"status_trading"`
	StatusState       int    `json:"status_state"`
	TradingTimeFlag   int    `json:"trading_time_flag"`
	HasAdditionalData bool   `json:"has_additional_data"`
}

// Signature returns the status signature used for memoized similarity lookups.
func (s SymbolStatus) Signature() StatusSignature {
	return StatusSignature{
		Symbol:          s.Code,
		StatusTrading:   s.StatusTrading,
		StatusState:     s.StatusState,
		TradingTimeFlag: s.TradingTimeFlag,
	}
}

// CalendarEntry is an announced future listing.
type CalendarEntry struct {
	Symbol          string `json:"symbol"`
	VcoinID         string `json:"vcoin_id,omitempty"`
	ProjectName     string `json:"project_name"`
	FirstOpenTimeMs int64  `json:"first_open_time_ms"`
}

// PatternMatch is the record emitted for every detected pattern. Created
// fresh on each detection pass and never mutated afterwards.
type PatternMatch struct {
	PatternType           PatternType            `json:"pattern_type"`
	Confidence            float64                `json:"confidence"`
	Symbol                string                 `json:"symbol"`
	VcoinID               string                 `json:"vcoin_id,omitempty"`
	Indicators            map[string]interface{} `json:"indicators,omitempty"`
	DetectedAt            time.Time              `json:"detected_at"`
	AdvanceNoticeHours    float64                `json:"advance_notice_hours"`
	RiskLevel             RiskLevel              `json:"risk_level"`
	Recommendation        Recommendation         `json:"recommendation"`
	HistoricalSuccessRate float64                `json:"historical_success_rate,omitempty"`
}

// CorrelationResult summarizes pairwise similarity across an analysis batch.
// Derived, read-only, recomputed per run.
type CorrelationResult struct {
	Symbols         []string `json:"symbols"`
	CorrelationType string   `json:"correlation_type"`
	Strength        float64  `json:"strength"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// StatusSignature keys the memoized "find similar patterns" lookups.
type StatusSignature struct {
	Symbol          string `json:"symbol"`
	StatusTrading   int    `json:"status_trading"`
	StatusState     int    `json:"status_state"`
	TradingTimeFlag int    `json:"trading_time_flag"`
}

// Key renders the signature as a cache key.
func (s StatusSignature) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d", s.Symbol, s.StatusTrading, s.StatusState, s.TradingTimeFlag)
}

// NeighborPattern is one entry of an enrichment-derived neighborhood.
type NeighborPattern struct {
	Symbol          string  `json:"symbol"`
	Similarity      float64 `json:"similarity"`
	StatusSignature string  `json:"status_signature"`
}

// EnrichmentResult carries the bounded confidence boost from the external
// enrichment provider plus optional free-form insights.
type EnrichmentResult struct {
	Boost    float64  `json:"boost"`
	Insights []string `json:"insights,omitempty"`
}

// EnrichmentProvider is the outbound contract to the external scoring and
// similarity service. Every call must be safe to fail: the engine treats any
// error as a zero contribution.
type EnrichmentProvider interface {
	ScorePattern(ctx context.Context, symbol string, features FeatureSet) (EnrichmentResult, error)
	FindSimilarPatterns(ctx context.Context, sig StatusSignature) ([]NeighborPattern, error)
}

// PatternStore persists emitted matches. Fire-and-forget from the detectors'
// perspective: errors are logged, never surfaced to AnalyzePatterns callers.
type PatternStore interface {
	SavePattern(ctx context.Context, match PatternMatch) error
}

// classifyRisk is the single classification rule every code path shares.
func classifyRisk(confidence float64) RiskLevel {
	switch {
	case confidence >= 85:
		return RiskLow
	case confidence >= 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}
