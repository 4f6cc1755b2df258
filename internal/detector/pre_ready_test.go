package detector

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPreReadyDecisionTable(t *testing.T) {
	d := NewPreReadyDetector(DefaultPreReadyConfig(), zerolog.Nop())

	cases := []struct {
		name           string
		symbol         SymbolStatus
		wantMatch      bool
		wantConfidence float64
		wantHours      float64
		wantRec        Recommendation
	}{
		{
			name:           "early stage",
			symbol:         SymbolStatus{Code: "AUSDT", StatusTrading: 1, StatusState: 1},
			wantMatch:      true,
			wantConfidence: 60,
			wantHours:      6,
			wantRec:        RecommendMonitorClosely,
		},
		{
			name:           "mid stage",
			symbol:         SymbolStatus{Code: "BUSDT", StatusTrading: 2, StatusState: 1},
			wantMatch:      true,
			wantConfidence: 75,
			wantHours:      2,
			wantRec:        RecommendPrepareEntry,
		},
		{
			name:           "final stage with flag mismatch",
			symbol:         SymbolStatus{Code: "CUSDT", StatusTrading: 2, StatusState: 2, TradingTimeFlag: 1},
			wantMatch:      true,
			wantConfidence: 85,
			wantHours:      0.5,
			wantRec:        RecommendPrepareEntry,
		},
		{
			name:      "fully ready tuple is not pre-ready",
			symbol:    SymbolStatus{Code: "DUSDT", StatusTrading: 2, StatusState: 2, TradingTimeFlag: 4},
			wantMatch: false,
		},
		{
			name:      "unknown tuple",
			symbol:    SymbolStatus{Code: "EUSDT", StatusTrading: 3, StatusState: 1},
			wantMatch: false,
		},
	}

	for _, tc := range cases {
		matches := d.Detect([]SymbolStatus{tc.symbol})
		if !tc.wantMatch {
			if len(matches) != 0 {
				t.Errorf("%s: expected no match, got %d", tc.name, len(matches))
			}
			continue
		}
		if len(matches) != 1 {
			t.Errorf("%s: expected 1 match, got %d", tc.name, len(matches))
			continue
		}
		m := matches[0]
		if m.PatternType != PatternPreReady {
			t.Errorf("%s: expected pattern type %s, got %s", tc.name, PatternPreReady, m.PatternType)
		}
		if m.Confidence != tc.wantConfidence {
			t.Errorf("%s: expected confidence %.0f, got %.2f", tc.name, tc.wantConfidence, m.Confidence)
		}
		if m.AdvanceNoticeHours != tc.wantHours {
			t.Errorf("%s: expected %.1f estimated hours, got %.2f", tc.name, tc.wantHours, m.AdvanceNoticeHours)
		}
		if m.Recommendation != tc.wantRec {
			t.Errorf("%s: expected recommendation %s, got %s", tc.name, tc.wantRec, m.Recommendation)
		}
	}
}

func TestPreReadyEmptyConfigFallsBackToDefaults(t *testing.T) {
	d := NewPreReadyDetector(PreReadyConfig{}, zerolog.Nop())

	matches := d.Detect([]SymbolStatus{{Code: "AUSDT", StatusTrading: 2, StatusState: 1}})
	if len(matches) != 1 {
		t.Fatalf("expected default rules to apply, got %d matches", len(matches))
	}
	if matches[0].Confidence != 75 {
		t.Errorf("expected confidence 75 from default table, got %.2f", matches[0].Confidence)
	}
}
