package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"early-listing-bot/internal/detector"
)

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	keys []string
	err  error
}

func (f *fakeDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved []TradeTarget
	err   error
}

func (f *fakeSink) SaveTarget(ctx context.Context, target TradeTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, target)
	return nil
}

var bridgeNow = time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)

func newTestBridge(deduper Deduper, sink TargetSink) *Bridge {
	b := New(DefaultConfig(), deduper, sink, zerolog.Nop())
	b.nowFn = func() time.Time { return bridgeNow }
	return b
}

func match(symbol string, confidence float64, risk detector.RiskLevel) detector.PatternMatch {
	return detector.PatternMatch{
		Symbol:      symbol,
		PatternType: detector.PatternReadyState,
		Confidence:  confidence,
		RiskLevel:   risk,
	}
}

func TestEmitTargetsConfidenceFloor(t *testing.T) {
	b := newTestBridge(&fakeDeduper{}, nil)

	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("LOWUSDT", 69.9, detector.RiskLow),
		match("OKUSDT", 70, detector.RiskLow),
	})
	if len(targets) != 1 || targets[0].Symbol != "OKUSDT" {
		t.Errorf("expected only the at-floor match emitted, got %+v", targets)
	}
}

func TestEmitTargetsRiskCeiling(t *testing.T) {
	b := newTestBridge(&fakeDeduper{}, nil)

	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("SAFEUSDT", 90, detector.RiskLow),
		match("MIDUSDT", 90, detector.RiskMedium),
		match("WILDUSDT", 90, detector.RiskHigh),
	})
	if len(targets) != 2 {
		t.Fatalf("expected high risk filtered under the medium ceiling, got %d targets", len(targets))
	}
	for _, target := range targets {
		if target.RiskLevel == detector.RiskHigh {
			t.Errorf("high-risk target leaked: %s", target.Symbol)
		}
	}
}

func TestEmitTargetsDeduplicates(t *testing.T) {
	deduper := &fakeDeduper{}
	b := newTestBridge(deduper, nil)

	batch := []detector.PatternMatch{match("AAAUSDT", 90, detector.RiskLow)}
	first := b.EmitTargets(context.Background(), batch)
	second := b.EmitTargets(context.Background(), batch)
	if len(first) != 1 {
		t.Fatalf("expected first detection emitted, got %d", len(first))
	}
	if len(second) != 0 {
		t.Errorf("expected repeat detection suppressed, got %d targets", len(second))
	}
	if deduper.keys[0] != "AAAUSDT:ready_state" {
		t.Errorf("unexpected dedup key %s", deduper.keys[0])
	}

	// A different pattern family for the same symbol is a distinct key.
	launch := detector.PatternMatch{
		Symbol:      "AAAUSDT",
		PatternType: detector.PatternLaunchSequence,
		Confidence:  90,
		RiskLevel:   detector.RiskLow,
	}
	if targets := b.EmitTargets(context.Background(), []detector.PatternMatch{launch}); len(targets) != 1 {
		t.Errorf("expected different pattern type to emit, got %d", len(targets))
	}
}

func TestEmitTargetsDeduperFailureFailsOpen(t *testing.T) {
	deduper := &fakeDeduper{err: errors.New("redis down")}
	b := newTestBridge(deduper, nil)

	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("AAAUSDT", 90, detector.RiskLow),
	})
	if len(targets) != 1 {
		t.Errorf("a broken dedup store must not suppress targets, got %d", len(targets))
	}
}

func TestEmitTargetsPriorityMapping(t *testing.T) {
	b := newTestBridge(&fakeDeduper{}, nil)

	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("P1USDT", 90, detector.RiskLow),
		match("P2USDT", 80, detector.RiskLow),
		match("P3USDT", 70, detector.RiskLow),
	})
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(targets))
	}
	wantPriorities := []int{1, 2, 3}
	for i, want := range wantPriorities {
		if targets[i].Priority != want {
			t.Errorf("%s: expected priority %d, got %d", targets[i].Symbol, want, targets[i].Priority)
		}
	}
}

func TestEmitTargetsExecutionEstimate(t *testing.T) {
	b := newTestBridge(&fakeDeduper{}, nil)

	advance := detector.PatternMatch{
		Symbol:             "ADVUSDT",
		PatternType:        detector.PatternLaunchSequence,
		Confidence:         85,
		RiskLevel:          detector.RiskLow,
		AdvanceNoticeHours: 3.5,
	}
	ready := match("NOWUSDT", 90, detector.RiskLow)

	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{advance, ready})
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}

	wantEstimate := bridgeNow.Add(3*time.Hour + 30*time.Minute)
	if !targets[0].ExecutionEstimate.Equal(wantEstimate) {
		t.Errorf("expected estimate %v, got %v", wantEstimate, targets[0].ExecutionEstimate)
	}
	if !targets[1].ExecutionEstimate.IsZero() {
		t.Errorf("zero advance notice must leave the estimate unset, got %v", targets[1].ExecutionEstimate)
	}
	if targets[0].ID == "" || targets[0].ID == targets[1].ID {
		t.Error("expected unique non-empty target IDs")
	}
}

func TestEmitTargetsPersistsToSink(t *testing.T) {
	sink := &fakeSink{}
	b := newTestBridge(&fakeDeduper{}, sink)

	b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("AAAUSDT", 90, detector.RiskLow),
	})
	if len(sink.saved) != 1 || sink.saved[0].Symbol != "AAAUSDT" {
		t.Errorf("expected target persisted, got %+v", sink.saved)
	}

	// A failing sink does not block emission.
	broken := &fakeSink{err: errors.New("db down")}
	b = newTestBridge(&fakeDeduper{}, broken)
	targets := b.EmitTargets(context.Background(), []detector.PatternMatch{
		match("BBBUSDT", 90, detector.RiskLow),
	})
	if len(targets) != 1 {
		t.Errorf("sink failure must not suppress the target, got %d", len(targets))
	}
}
