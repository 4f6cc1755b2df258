package detector

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AdvanceConfig holds the tunables for advance-opportunity detection.
// MinAdvanceHours is the system's defining business rule: lowering it
// increases recall at the cost of false positives.
type AdvanceConfig struct {
	MinAdvanceHours       float64             `json:"min_advance_hours"`
	MinConfidence         float64             `json:"min_confidence"`
	CategoryScores        map[string]float64  `json:"category_scores"`
	CategoryKeywords      map[string][]string `json:"category_keywords"`
	DefaultCategoryScore  float64             `json:"default_category_score"`
	EnrichmentConcurrency int                 `json:"enrichment_concurrency"`
	EnrichmentTimeout     time.Duration
}

// DefaultAdvanceConfig returns the canonical advance-opportunity tunables.
func DefaultAdvanceConfig() AdvanceConfig {
	return AdvanceConfig{
		MinAdvanceHours: 3.5,
		MinConfidence:   70,
		CategoryScores: map[string]float64{
			"defi":           15,
			"ai":             15,
			"infrastructure": 12,
			"gaming":         10,
			"meme":           8,
		},
		CategoryKeywords: map[string][]string{
			"defi":           {"defi", "swap", "yield", "lending", "dex"},
			"ai":             {"ai", "agent", "gpt", "neural", "intelligence"},
			"infrastructure": {"chain", "layer", "protocol", "network", "bridge"},
			"gaming":         {"game", "gaming", "metaverse", "play"},
			"meme":           {"meme", "doge", "pepe", "inu"},
		},
		DefaultCategoryScore:  5,
		EnrichmentConcurrency: 5,
		EnrichmentTimeout:     10 * time.Second,
	}
}

// AdvanceOpportunityDetector scores upcoming listings discovered far enough
// ahead of their open time to act on.
type AdvanceOpportunityDetector struct {
	scorer *ConfidenceScorer
	enrich EnrichmentProvider // optional
	store  PatternStore       // optional
	rates  SuccessRateSource  // optional
	cfg    AdvanceConfig
	logger zerolog.Logger
	nowFn  func() time.Time
}

// NewAdvanceOpportunityDetector creates a detector with injected
// collaborators. enrich, store and rates may be nil.
func NewAdvanceOpportunityDetector(cfg AdvanceConfig, enrich EnrichmentProvider, store PatternStore, rates SuccessRateSource, logger zerolog.Logger) *AdvanceOpportunityDetector {
	if cfg.MinAdvanceHours <= 0 {
		cfg.MinAdvanceHours = 3.5
	}
	if cfg.EnrichmentConcurrency <= 0 {
		cfg.EnrichmentConcurrency = 5
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 10 * time.Second
	}
	return &AdvanceOpportunityDetector{
		scorer: NewConfidenceScorer(),
		enrich: enrich,
		store:  store,
		rates:  rates,
		cfg:    cfg,
		logger: logger.With().Str("component", "AdvanceOpportunityDetector").Logger(),
		nowFn:  time.Now,
	}
}

// Detect scores calendar entries whose advance window is at least
// MinAdvanceHours (inclusive lower bound). Output order follows input order.
func (d *AdvanceOpportunityDetector) Detect(ctx context.Context, entries []CalendarEntry) []PatternMatch {
	now := d.nowFn()

	type candidate struct {
		idx          int
		advanceHours float64
	}
	candidates := make([]candidate, 0, len(entries))
	for i, e := range entries {
		advanceHours := float64(e.FirstOpenTimeMs-now.UnixMilli()) / 3.6e6
		if advanceHours < d.cfg.MinAdvanceHours {
			continue
		}
		candidates = append(candidates, candidate{idx: i, advanceHours: advanceHours})
	}
	if len(candidates) == 0 {
		return nil
	}

	boosts := make([]EnrichmentResult, len(candidates))
	if d.enrich != nil {
		sem := make(chan struct{}, d.cfg.EnrichmentConcurrency)
		var wg sync.WaitGroup
		for n := range candidates {
			wg.Add(1)
			sem <- struct{}{}
			go func(n int) {
				defer wg.Done()
				defer func() { <-sem }()

				e := entries[candidates[n].idx]
				callCtx, cancel := context.WithTimeout(ctx, d.cfg.EnrichmentTimeout)
				defer cancel()

				res, err := d.enrich.ScorePattern(callCtx, e.Symbol, FeatureSet{HasVcoinID: e.VcoinID != ""})
				if err != nil {
					d.logger.Warn().
						Err(err).
						Str("symbol", e.Symbol).
						Msg("Enrichment unavailable, contribution treated as zero")
					return
				}
				boosts[n] = res
			}(n)
		}
		wg.Wait()
	}

	historicalRate := 0.0
	if d.rates != nil {
		historicalRate = d.rates.SuccessRate(ctx, PatternLaunchSequence)
	}

	var matches []PatternMatch
	for n, c := range candidates {
		e := entries[c.idx]
		openTime := time.UnixMilli(e.FirstOpenTimeMs).UTC()
		category, categoryScore := d.classifyProject(e.ProjectName)

		confidence := d.scorer.ScoreAdvanceOpportunity(AdvanceFeatureSet{
			AdvanceHours:          c.advanceHours,
			CategoryScore:         categoryScore,
			WeekdayLaunch:         openTime.Weekday() != time.Saturday && openTime.Weekday() != time.Sunday,
			ActiveHoursLaunch:     openTime.Hour() >= 6 && openTime.Hour() < 18,
			HistoricalSuccessRate: historicalRate,
			EnrichmentBoost:       boosts[n].Boost,
		})
		if confidence < d.cfg.MinConfidence {
			continue
		}

		match := PatternMatch{
			PatternType: PatternLaunchSequence,
			Confidence:  confidence,
			Symbol:      e.Symbol,
			VcoinID:     e.VcoinID,
			Indicators: map[string]interface{}{
				"project_name":     e.ProjectName,
				"project_category": category,
				"first_open_time":  openTime,
				"enrichment_boost": boosts[n].Boost,
			},
			DetectedAt:            d.nowFn(),
			AdvanceNoticeHours:    c.advanceHours,
			RiskLevel:             classifyRisk(confidence),
			Recommendation:        advanceRecommendation(confidence, c.advanceHours),
			HistoricalSuccessRate: historicalRate,
		}
		matches = append(matches, match)
		d.persist(ctx, match)
	}
	return matches
}

// classifyProject buckets a project name into a category via keyword match.
// Categories are checked in sorted order so classification is deterministic
// when keywords from several categories appear in the same name.
func (d *AdvanceOpportunityDetector) classifyProject(name string) (string, float64) {
	lowered := strings.ToLower(name)
	categories := make([]string, 0, len(d.cfg.CategoryKeywords))
	for category := range d.cfg.CategoryKeywords {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, kw := range d.cfg.CategoryKeywords[category] {
			if strings.Contains(lowered, kw) {
				return category, d.cfg.CategoryScores[category]
			}
		}
	}
	return "other", d.cfg.DefaultCategoryScore
}

func (d *AdvanceOpportunityDetector) persist(ctx context.Context, match PatternMatch) {
	if d.store == nil {
		return
	}
	if err := d.store.SavePattern(ctx, match); err != nil {
		d.logger.Error().
			Err(err).
			Str("symbol", match.Symbol).
			Str("pattern_type", string(match.PatternType)).
			Msg("Failed to persist pattern match")
	}
}

// advanceRecommendation is computed deterministically from confidence and
// the advance window. No randomness.
func advanceRecommendation(confidence, advanceHours float64) Recommendation {
	if confidence < 60 {
		return RecommendWait
	}
	if confidence >= 80 && advanceHours >= 3.5 && advanceHours <= 12 {
		return RecommendPrepareEntry
	}
	return RecommendMonitorClosely
}
