package detector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newOrchestrator(enrich EnrichmentProvider, correlation *CorrelationAnalyzer) *Orchestrator {
	logger := zerolog.Nop()
	ready := NewReadyStateDetector(DefaultReadyStateConfig(), enrich, nil, nil, logger)
	preReady := NewPreReadyDetector(DefaultPreReadyConfig(), logger)
	advance := NewAdvanceOpportunityDetector(DefaultAdvanceConfig(), enrich, nil, nil, logger)
	advance.nowFn = func() time.Time { return fixedNow }
	return NewOrchestrator(ready, preReady, advance, correlation, logger)
}

func TestAnalyzePatternsOrderingAndSummary(t *testing.T) {
	o := newOrchestrator(nil, nil)

	req := AnalysisRequest{
		Symbols: []SymbolStatus{
			readySymbol("READYUSDT"),                                  // ready state, 90
			{Code: "PREUSDT", StatusTrading: 2, StatusState: 1},       // pre-ready, 75
		},
		CalendarEntries: []CalendarEntry{
			entryOpeningIn("ADVUSDT", "YieldDex", 12*time.Hour), // launch sequence, 85
		},
	}

	result := o.AnalyzePatterns(context.Background(), req)
	if len(result.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(result.Matches))
	}

	// Fixed concatenation order: ready, pre-ready, advance
	wantTypes := []PatternType{PatternReadyState, PatternPreReady, PatternLaunchSequence}
	for i, wantType := range wantTypes {
		if result.Matches[i].PatternType != wantType {
			t.Errorf("position %d: expected %s, got %s", i, wantType, result.Matches[i].PatternType)
		}
	}

	summary := result.Summary
	if summary.TotalMatches != 3 {
		t.Errorf("expected total 3, got %d", summary.TotalMatches)
	}
	if summary.ReadyStateCount != 1 || summary.PreReadyCount != 1 || summary.LaunchSequenceCount != 1 {
		t.Errorf("unexpected per-type counts: %+v", summary)
	}
	// 90 and 85 clear the high-confidence bar, 75 does not
	if summary.HighConfidenceCount != 2 {
		t.Errorf("expected 2 high-confidence matches, got %d", summary.HighConfidenceCount)
	}
	wantAvg := (90.0 + 75.0 + 85.0) / 3
	if diff := summary.AverageConfidence - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected average %.4f, got %.4f", wantAvg, summary.AverageConfidence)
	}

	if result.Metadata.RunID == "" {
		t.Error("expected a run ID")
	}
	if result.Metadata.ConfidenceThreshold != DefaultConfidenceThreshold {
		t.Errorf("expected default threshold, got %.1f", result.Metadata.ConfidenceThreshold)
	}
}

func TestAnalyzePatternsThresholdFilter(t *testing.T) {
	o := newOrchestrator(nil, nil)

	req := AnalysisRequest{
		Symbols: []SymbolStatus{
			{Code: "PREUSDT", StatusTrading: 2, StatusState: 1}, // 75
		},
		ConfidenceThreshold: 80,
	}

	result := o.AnalyzePatterns(context.Background(), req)
	if len(result.Matches) != 0 {
		t.Errorf("expected the 75-confidence match filtered at threshold 80, got %d matches", len(result.Matches))
	}
	if result.Summary.TotalMatches != 0 {
		t.Errorf("summary should reflect the filtered set, got %d", result.Summary.TotalMatches)
	}
}

func TestAnalyzePatternsRecommendationBuckets(t *testing.T) {
	o := newOrchestrator(nil, nil)

	req := AnalysisRequest{
		Symbols: []SymbolStatus{
			readySymbol("READYUSDT"), // 90, immediate_action
			{Code: "PREUSDT", StatusTrading: 2, StatusState: 1}, // 75, prepare_entry
		},
	}

	result := o.AnalyzePatterns(context.Background(), req)
	buckets := result.Recommendations
	if len(buckets.ImmediateAction) != 1 || buckets.ImmediateAction[0].Symbol != "READYUSDT" {
		t.Errorf("expected READYUSDT in immediate_action, got %+v", buckets.ImmediateAction)
	}
	if len(buckets.PrepareEntry) != 1 || buckets.PrepareEntry[0].Symbol != "PREUSDT" {
		t.Errorf("expected PREUSDT in prepare_entry, got %+v", buckets.PrepareEntry)
	}
	if len(buckets.MonitorClosely) != 0 || len(buckets.Wait) != 0 {
		t.Errorf("unexpected entries in other buckets: %+v", buckets)
	}
}

func TestAnalyzePatternsCorrelationGating(t *testing.T) {
	enrich := &fakeEnrichment{neighbors: map[string][]NeighborPattern{}}
	correlation := NewCorrelationAnalyzer(DefaultCorrelationConfig(), enrich, zerolog.Nop())
	o := newOrchestrator(nil, correlation)

	// Single symbol: correlation must not run
	result := o.AnalyzePatterns(context.Background(), AnalysisRequest{
		Symbols: []SymbolStatus{readySymbol("ONLYUSDT")},
	})
	if result.Metadata.CorrelationRan {
		t.Error("correlation should not run for a single symbol")
	}
	if enrich.lookupCalls != 0 {
		t.Errorf("expected no lookups, got %d", enrich.lookupCalls)
	}

	// Two symbols: correlation runs
	result = o.AnalyzePatterns(context.Background(), AnalysisRequest{
		Symbols: []SymbolStatus{readySymbol("AAAUSDT"), readySymbol("BBBUSDT")},
	})
	if !result.Metadata.CorrelationRan {
		t.Error("correlation should run for multi-symbol batches")
	}
	if enrich.lookupCalls == 0 {
		t.Error("expected similarity lookups for the pair")
	}
}
