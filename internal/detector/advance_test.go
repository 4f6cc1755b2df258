package detector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fixedNow is a Wednesday at midnight UTC so weekday and active-hours
// bonuses depend only on the offsets the tests choose.
var fixedNow = time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC)

func newAdvanceDetector(t *testing.T) *AdvanceOpportunityDetector {
	t.Helper()
	d := NewAdvanceOpportunityDetector(DefaultAdvanceConfig(), nil, nil, nil, zerolog.Nop())
	d.nowFn = func() time.Time { return fixedNow }
	return d
}

func entryOpeningIn(symbol, project string, lead time.Duration) CalendarEntry {
	return CalendarEntry{
		Symbol:          symbol,
		VcoinID:         symbol + "-id",
		ProjectName:     project,
		FirstOpenTimeMs: fixedNow.Add(lead).UnixMilli(),
	}
}

func TestAdvanceDetectMinimumLeadTimeInclusive(t *testing.T) {
	d := newAdvanceDetector(t)

	// Exactly 3.5 hours qualifies; a minute less does not.
	// Open at 03:30 UTC: weekday but outside active hours, defi category:
	// 40 + 10 + 15 + 5 = 70, right at the confidence floor.
	atBoundary := entryOpeningIn("SWPUSDT", "SuperSwap", 3*time.Hour+30*time.Minute)
	below := entryOpeningIn("LATUSDT", "LateSwap", 3*time.Hour+29*time.Minute)

	matches := d.Detect(context.Background(), []CalendarEntry{atBoundary, below})
	if len(matches) != 1 {
		t.Fatalf("expected only the boundary entry to match, got %d matches", len(matches))
	}
	if matches[0].Symbol != "SWPUSDT" {
		t.Errorf("expected SWPUSDT, got %s", matches[0].Symbol)
	}
	if matches[0].Confidence != 70 {
		t.Errorf("expected confidence 70, got %.2f", matches[0].Confidence)
	}
	if got := matches[0].AdvanceNoticeHours; got != 3.5 {
		t.Errorf("expected 3.5 advance hours, got %.4f", got)
	}
}

func TestAdvanceDetectPastEntriesIgnored(t *testing.T) {
	d := newAdvanceDetector(t)

	matches := d.Detect(context.Background(), []CalendarEntry{
		entryOpeningIn("OLDUSDT", "SuperSwap", -2*time.Hour),
		entryOpeningIn("NOWUSDT", "SuperSwap", 0),
	})
	if len(matches) != 0 {
		t.Errorf("expected past and immediate entries to be ignored, got %d matches", len(matches))
	}
}

func TestAdvanceDetectPrepareEntryWindow(t *testing.T) {
	d := newAdvanceDetector(t)

	// 12h lead at noon UTC on a weekday, defi: 40 + 20 + 15 + 5 + 5 = 85.
	// Within the 3.5-12h actionable window, so prepare_entry.
	inWindow := entryOpeningIn("DEXUSDT", "YieldDex", 12*time.Hour)
	matches := d.Detect(context.Background(), []CalendarEntry{inWindow})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Confidence != 85 {
		t.Errorf("expected confidence 85, got %.2f", matches[0].Confidence)
	}
	if matches[0].Recommendation != RecommendPrepareEntry {
		t.Errorf("expected prepare_entry, got %s", matches[0].Recommendation)
	}
	if matches[0].RiskLevel != RiskLow {
		t.Errorf("expected low risk at 85, got %s", matches[0].RiskLevel)
	}

	// Same entry two days out: same confidence tier but beyond the
	// actionable window, so monitor_closely.
	farOut := entryOpeningIn("FARUSDT", "YieldDex", 48*time.Hour)
	matches = d.Detect(context.Background(), []CalendarEntry{farOut})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Recommendation != RecommendMonitorClosely {
		t.Errorf("expected monitor_closely beyond 12h, got %s", matches[0].Recommendation)
	}
}

func TestClassifyProject(t *testing.T) {
	d := newAdvanceDetector(t)

	cases := []struct {
		project      string
		wantCategory string
		wantScore    float64
	}{
		{"SuperSwap", "defi", 15},
		{"PepeCoin", "meme", 8},
		{"MetaverseQuest", "gaming", 10},
		{"BoringToken", "other", 5},
	}
	for _, tc := range cases {
		category, score := d.classifyProject(tc.project)
		if category != tc.wantCategory || score != tc.wantScore {
			t.Errorf("%s: expected %s/%.0f, got %s/%.0f",
				tc.project, tc.wantCategory, tc.wantScore, category, score)
		}
	}
}

func TestClassifyProjectDeterministicOnOverlap(t *testing.T) {
	d := newAdvanceDetector(t)

	// Name matches both ai and defi keywords; sorted category order makes
	// the result stable.
	first, _ := d.classifyProject("AI Yield Labs")
	for i := 0; i < 10; i++ {
		category, _ := d.classifyProject("AI Yield Labs")
		if category != first {
			t.Fatalf("classification flapped: %s then %s", first, category)
		}
	}
	if first != "ai" {
		t.Errorf("expected ai to win in sorted order, got %s", first)
	}
}
