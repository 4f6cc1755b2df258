package detector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeEnrichment struct {
	mu          sync.Mutex
	scoreCalls  int
	lookupCalls int
	boost       float64
	insights    []string
	neighbors   map[string][]NeighborPattern
	err         error
}

func (f *fakeEnrichment) ScorePattern(ctx context.Context, symbol string, features FeatureSet) (EnrichmentResult, error) {
	f.mu.Lock()
	f.scoreCalls++
	f.mu.Unlock()
	if f.err != nil {
		return EnrichmentResult{}, f.err
	}
	return EnrichmentResult{Boost: f.boost, Insights: f.insights}, nil
}

func (f *fakeEnrichment) FindSimilarPatterns(ctx context.Context, sig StatusSignature) ([]NeighborPattern, error) {
	f.mu.Lock()
	f.lookupCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors[sig.Key()], nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []PatternMatch
	err   error
}

func (f *fakeStore) SavePattern(ctx context.Context, match PatternMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, match)
	return nil
}

type fakeRates struct {
	rate float64
}

func (f *fakeRates) SuccessRate(ctx context.Context, patternType PatternType) float64 {
	return f.rate
}

func readySymbol(code string) SymbolStatus {
	return SymbolStatus{
		Code:              code,
		VcoinID:           code + "-id",
		StatusTrading:     2,
		StatusState:       2,
		TradingTimeFlag:   4,
		HasAdditionalData: true,
	}
}

func TestReadyStateDetectIgnoresNonMatchingTuples(t *testing.T) {
	d := NewReadyStateDetector(DefaultReadyStateConfig(), nil, nil, nil, zerolog.Nop())

	symbols := []SymbolStatus{
		{Code: "AAAUSDT", StatusTrading: 1, StatusState: 2, TradingTimeFlag: 4},
		{Code: "BBBUSDT", StatusTrading: 2, StatusState: 1, TradingTimeFlag: 4},
		{Code: "CCCUSDT", StatusTrading: 2, StatusState: 2, TradingTimeFlag: 3},
	}

	matches := d.Detect(context.Background(), symbols)
	if len(matches) != 0 {
		t.Errorf("expected no matches for non-target tuples, got %d", len(matches))
	}
}

func TestReadyStateDetectThreshold(t *testing.T) {
	d := NewReadyStateDetector(DefaultReadyStateConfig(), nil, nil, nil, zerolog.Nop())

	// Bare match without optional fields scores 80, below the 85 floor
	bare := SymbolStatus{Code: "LOWUSDT", StatusTrading: 2, StatusState: 2, TradingTimeFlag: 4}
	matches := d.Detect(context.Background(), []SymbolStatus{bare})
	if len(matches) != 0 {
		t.Fatalf("expected bare match below threshold to be dropped, got %d matches", len(matches))
	}

	// With both optional fields it scores 90 and clears
	matches = d.Detect(context.Background(), []SymbolStatus{readySymbol("HIGHUSDT")})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.Confidence != 90 {
		t.Errorf("expected confidence 90, got %.2f", m.Confidence)
	}
	if m.PatternType != PatternReadyState {
		t.Errorf("expected pattern type %s, got %s", PatternReadyState, m.PatternType)
	}
	if m.RiskLevel != RiskLow {
		t.Errorf("expected low risk at 90, got %s", m.RiskLevel)
	}
	if m.Recommendation != RecommendImmediateAction {
		t.Errorf("expected immediate_action at 90, got %s", m.Recommendation)
	}
	if m.AdvanceNoticeHours != 0 {
		t.Errorf("ready state matches have zero advance notice, got %.2f", m.AdvanceNoticeHours)
	}
}

func TestReadyStateDetectPreservesInputOrder(t *testing.T) {
	enrich := &fakeEnrichment{boost: 5}
	d := NewReadyStateDetector(DefaultReadyStateConfig(), enrich, nil, nil, zerolog.Nop())

	symbols := []SymbolStatus{
		readySymbol("AAAUSDT"),
		{Code: "SKIPUSDT", StatusTrading: 1},
		readySymbol("BBBUSDT"),
		readySymbol("CCCUSDT"),
	}

	matches := d.Detect(context.Background(), symbols)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	want := []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}
	for i, symbol := range want {
		if matches[i].Symbol != symbol {
			t.Errorf("position %d: expected %s, got %s", i, symbol, matches[i].Symbol)
		}
	}
}

func TestReadyStateDetectEnrichmentFailureIsZeroBoost(t *testing.T) {
	broken := &fakeEnrichment{err: errors.New("provider down")}
	d := NewReadyStateDetector(DefaultReadyStateConfig(), broken, nil, nil, zerolog.Nop())

	matches := d.Detect(context.Background(), []SymbolStatus{readySymbol("AAAUSDT")})
	if len(matches) != 1 {
		t.Fatalf("expected detection to survive enrichment failure, got %d matches", len(matches))
	}
	if matches[0].Confidence != 90 {
		t.Errorf("expected boost-free confidence 90, got %.2f", matches[0].Confidence)
	}
}

func TestReadyStateDetectStoreFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	d := NewReadyStateDetector(DefaultReadyStateConfig(), nil, store, nil, zerolog.Nop())

	matches := d.Detect(context.Background(), []SymbolStatus{readySymbol("AAAUSDT")})
	if len(matches) != 1 {
		t.Fatalf("expected match despite store failure, got %d", len(matches))
	}
}

func TestReadyStateDetectPersistsMatches(t *testing.T) {
	store := &fakeStore{}
	rates := &fakeRates{rate: 50}
	d := NewReadyStateDetector(DefaultReadyStateConfig(), nil, store, rates, zerolog.Nop())

	matches := d.Detect(context.Background(), []SymbolStatus{readySymbol("AAAUSDT")})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	// 50 + 30 + 5 + 5 + 50*0.1 = 95
	if matches[0].Confidence != 95 {
		t.Errorf("expected confidence 95 with historical rate, got %.2f", matches[0].Confidence)
	}
	if matches[0].HistoricalSuccessRate != 50 {
		t.Errorf("expected recorded rate 50, got %.2f", matches[0].HistoricalSuccessRate)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected 1 persisted match, got %d", len(store.saved))
	}
	if store.saved[0].Symbol != "AAAUSDT" {
		t.Errorf("persisted wrong symbol: %s", store.saved[0].Symbol)
	}
}
