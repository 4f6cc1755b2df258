package detector

import "testing"

func TestScoreReadyStateBaseline(t *testing.T) {
	scorer := NewConfidenceScorer()

	// Exact match with no optional fields: 50 + 30 = 80
	score := scorer.ScoreReadyState(FeatureSet{ExactStatusMatch: true})
	if score != 80 {
		t.Errorf("expected 80 for bare exact match, got %.2f", score)
	}

	// Both optional fields populated: 50 + 30 + 5 + 5 = 90
	score = scorer.ScoreReadyState(FeatureSet{
		ExactStatusMatch:  true,
		HasVcoinID:        true,
		HasAdditionalData: true,
	})
	if score != 90 {
		t.Errorf("expected 90 with optional fields, got %.2f", score)
	}
}

func TestScoreReadyStateHistoricalRate(t *testing.T) {
	scorer := NewConfidenceScorer()

	// Rate 60 contributes 6 points
	score := scorer.ScoreReadyState(FeatureSet{
		ExactStatusMatch:      true,
		HistoricalSuccessRate: 60,
	})
	if score != 86 {
		t.Errorf("expected 86 with historical rate 60, got %.2f", score)
	}
}

func TestScoreReadyStateCap(t *testing.T) {
	scorer := NewConfidenceScorer()

	// Everything maxed: 50 + 30 + 5 + 5 + 10 + 20 = 120, capped at 95
	score := scorer.ScoreReadyState(FeatureSet{
		ExactStatusMatch:      true,
		HasVcoinID:            true,
		HasAdditionalData:     true,
		HistoricalSuccessRate: 100,
		EnrichmentBoost:       20,
	})
	if score != ReadyStateCap {
		t.Errorf("expected cap %.0f, got %.2f", ReadyStateCap, score)
	}
}

func TestScoreReadyStateBoostBounds(t *testing.T) {
	scorer := NewConfidenceScorer()

	// An absurd boost still contributes at most MaxEnrichmentBoost
	huge := scorer.ScoreReadyState(FeatureSet{EnrichmentBoost: 10000})
	bounded := scorer.ScoreReadyState(FeatureSet{EnrichmentBoost: MaxEnrichmentBoost})
	if huge != bounded {
		t.Errorf("boost 10000 scored %.2f, boost %.0f scored %.2f, expected equal",
			huge, MaxEnrichmentBoost, bounded)
	}

	// Negative boosts contribute zero, never subtract
	negative := scorer.ScoreReadyState(FeatureSet{ExactStatusMatch: true, EnrichmentBoost: -50})
	plain := scorer.ScoreReadyState(FeatureSet{ExactStatusMatch: true})
	if negative != plain {
		t.Errorf("negative boost scored %.2f, expected %.2f", negative, plain)
	}
}

func TestScoreAdvanceOpportunityLeadTimeTiers(t *testing.T) {
	scorer := NewConfidenceScorer()

	cases := []struct {
		name     string
		hours    float64
		expected float64
	}{
		{"short lead", 4, 50},    // 40 + 10
		{"six hours", 6, 55},     // 40 + 15
		{"eleven hours", 11, 55}, // 40 + 15
		{"twelve hours", 12, 60}, // 40 + 20
		{"two days", 48, 60},     // 40 + 20
	}

	for _, tc := range cases {
		score := scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{AdvanceHours: tc.hours})
		if score != tc.expected {
			t.Errorf("%s: expected %.0f, got %.2f", tc.name, tc.expected, score)
		}
	}
}

func TestScoreAdvanceOpportunityCap(t *testing.T) {
	scorer := NewConfidenceScorer()

	score := scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{
		AdvanceHours:          24,
		CategoryScore:         15,
		WeekdayLaunch:         true,
		ActiveHoursLaunch:     true,
		HistoricalSuccessRate: 100,
		EnrichmentBoost:       100,
	})
	if score != AdvanceCap {
		t.Errorf("expected cap %.0f, got %.2f", AdvanceCap, score)
	}
}

func TestScoreAdvanceOpportunityTimingBonuses(t *testing.T) {
	scorer := NewConfidenceScorer()

	base := scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{AdvanceHours: 4})
	weekday := scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{AdvanceHours: 4, WeekdayLaunch: true})
	both := scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{AdvanceHours: 4, WeekdayLaunch: true, ActiveHoursLaunch: true})

	if weekday-base != 5 {
		t.Errorf("weekday bonus: expected +5, got %+.2f", weekday-base)
	}
	if both-weekday != 5 {
		t.Errorf("active hours bonus: expected +5, got %+.2f", both-weekday)
	}
}

func BenchmarkScoreReadyState(b *testing.B) {
	scorer := NewConfidenceScorer()
	features := FeatureSet{
		ExactStatusMatch:      true,
		HasVcoinID:            true,
		HistoricalSuccessRate: 62.5,
		EnrichmentBoost:       12,
	}
	for i := 0; i < b.N; i++ {
		scorer.ScoreReadyState(features)
	}
}
