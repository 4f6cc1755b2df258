package detector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultConfidenceThreshold filters matches when the request does not
// specify its own threshold.
const DefaultConfidenceThreshold = 70.0

// HighConfidenceThreshold marks a match as high confidence in the summary.
const HighConfidenceThreshold = 80.0

// AnalysisRequest is the primary detection entry point's input.
type AnalysisRequest struct {
	Symbols             []SymbolStatus  `json:"symbols"`
	CalendarEntries     []CalendarEntry `json:"calendar_entries"`
	ConfidenceThreshold float64         `json:"confidence_threshold,omitempty"`
}

// AnalysisSummary aggregates the filtered match set.
type AnalysisSummary struct {
	TotalMatches         int     `json:"total_matches"`
	HighConfidenceCount  int     `json:"high_confidence_count"`
	AverageConfidence    float64 `json:"average_confidence"`
	ReadyStateCount      int     `json:"ready_state_count"`
	PreReadyCount        int     `json:"pre_ready_count"`
	LaunchSequenceCount  int     `json:"launch_sequence_count"`
}

// RecommendationBuckets partitions matches by their recommendation tier.
type RecommendationBuckets struct {
	ImmediateAction []PatternMatch `json:"immediate_action"`
	MonitorClosely  []PatternMatch `json:"monitor_closely"`
	PrepareEntry    []PatternMatch `json:"prepare_entry"`
	Wait            []PatternMatch `json:"wait"`
}

// AnalysisMetadata records run bookkeeping.
type AnalysisMetadata struct {
	RunID               string        `json:"run_id"`
	AnalyzedAt          time.Time     `json:"analyzed_at"`
	Duration            time.Duration `json:"duration"`
	SymbolsAnalyzed     int           `json:"symbols_analyzed"`
	CalendarEntries     int           `json:"calendar_entries"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	CorrelationRan      bool          `json:"correlation_ran"`
}

// AnalysisResult is the full response of one AnalyzePatterns call.
type AnalysisResult struct {
	Matches         []PatternMatch        `json:"matches"`
	Summary         AnalysisSummary       `json:"summary"`
	Recommendations RecommendationBuckets `json:"recommendations"`
	Correlations    *CorrelationResult    `json:"correlations,omitempty"`
	Metadata        AnalysisMetadata      `json:"metadata"`
}

// Orchestrator composes the detectors into one request/response call. It is
// purely a fan-out/fan-in aggregator: no match is mutated after creation.
type Orchestrator struct {
	ready       *ReadyStateDetector
	preReady    *PreReadyDetector
	advance     *AdvanceOpportunityDetector
	correlation *CorrelationAnalyzer
	logger      zerolog.Logger
	nowFn       func() time.Time
}

// NewOrchestrator wires the four detectors together. correlation may be nil.
func NewOrchestrator(ready *ReadyStateDetector, preReady *PreReadyDetector, advance *AdvanceOpportunityDetector, correlation *CorrelationAnalyzer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ready:       ready,
		preReady:    preReady,
		advance:     advance,
		correlation: correlation,
		logger:      logger.With().Str("component", "PatternOrchestrator").Logger(),
		nowFn:       time.Now,
	}
}

// AnalyzePatterns runs all detectors over the request, filters by the
// confidence threshold, buckets recommendations, and gates correlation
// analysis behind batches with more than one symbol (it is the most
// expensive step). Matches are concatenated in fixed order: ready-state,
// pre-ready, advance-opportunity.
func (o *Orchestrator) AnalyzePatterns(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	start := o.nowFn()
	runID := uuid.NewString()

	threshold := req.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	var all []PatternMatch
	all = append(all, o.ready.Detect(ctx, req.Symbols)...)
	all = append(all, o.preReady.Detect(req.Symbols)...)
	all = append(all, o.advance.Detect(ctx, req.CalendarEntries)...)

	matches := make([]PatternMatch, 0, len(all))
	for _, m := range all {
		if m.Confidence >= threshold {
			matches = append(matches, m)
		}
	}

	var correlations *CorrelationResult
	correlationRan := false
	if o.correlation != nil && len(req.Symbols) > 1 {
		correlations = o.correlation.Analyze(ctx, req.Symbols)
		correlationRan = true
	}

	result := &AnalysisResult{
		Matches:         matches,
		Summary:         summarize(matches),
		Recommendations: bucketRecommendations(matches),
		Correlations:    correlations,
		Metadata: AnalysisMetadata{
			RunID:               runID,
			AnalyzedAt:          start,
			Duration:            o.nowFn().Sub(start),
			SymbolsAnalyzed:     len(req.Symbols),
			CalendarEntries:     len(req.CalendarEntries),
			ConfidenceThreshold: threshold,
			CorrelationRan:      correlationRan,
		},
	}

	o.logger.Info().
		Str("run_id", runID).
		Int("symbols", len(req.Symbols)).
		Int("calendar_entries", len(req.CalendarEntries)).
		Int("matches", len(matches)).
		Dur("duration", result.Metadata.Duration).
		Msg("Pattern analysis completed")

	return result
}

func summarize(matches []PatternMatch) AnalysisSummary {
	summary := AnalysisSummary{TotalMatches: len(matches)}
	total := 0.0
	for _, m := range matches {
		total += m.Confidence
		if m.Confidence >= HighConfidenceThreshold {
			summary.HighConfidenceCount++
		}
		switch m.PatternType {
		case PatternReadyState:
			summary.ReadyStateCount++
		case PatternPreReady:
			summary.PreReadyCount++
		case PatternLaunchSequence:
			summary.LaunchSequenceCount++
		}
	}
	if len(matches) > 0 {
		summary.AverageConfidence = total / float64(len(matches))
	}
	return summary
}

func bucketRecommendations(matches []PatternMatch) RecommendationBuckets {
	var buckets RecommendationBuckets
	for _, m := range matches {
		switch m.Recommendation {
		case RecommendImmediateAction:
			buckets.ImmediateAction = append(buckets.ImmediateAction, m)
		case RecommendPrepareEntry:
			buckets.PrepareEntry = append(buckets.PrepareEntry, m)
		case RecommendWait:
			buckets.Wait = append(buckets.Wait, m)
		default:
			buckets.MonitorClosely = append(buckets.MonitorClosely, m)
		}
	}
	return buckets
}
