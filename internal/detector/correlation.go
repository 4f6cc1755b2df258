package detector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CorrelationConfig holds the tunables for pairwise correlation analysis.
type CorrelationConfig struct {
	// SimilarityThreshold is the minimum neighborhood overlap for a pair to
	// count as correlated.
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// MaxQualifyingPairs stops the scan once enough correlated pairs are
	// found; exactness beyond the cap is not required for recommendations.
	MaxQualifyingPairs int `json:"max_qualifying_pairs"`
	// MaxChunkSize bounds how many pairs are compared concurrently.
	MaxChunkSize   int `json:"max_chunk_size"`
	LookupTimeout  time.Duration
	LookupFanOut   int `json:"lookup_fan_out"`
}

// DefaultCorrelationConfig returns the canonical correlation tunables.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		SimilarityThreshold: 0.3,
		MaxQualifyingPairs:  20,
		MaxChunkSize:        10,
		LookupTimeout:       10 * time.Second,
		LookupFanOut:        5,
	}
}

// CorrelationAnalyzer finds symbol pairs whose enrichment-derived similar
// pattern neighborhoods overlap. The naive approach is O(k^2) external calls;
// this implementation memoizes lookups per status signature, processes pair
// chunks sequentially with concurrent lookups inside a chunk, and terminates
// early once enough qualifying pairs are found.
type CorrelationAnalyzer struct {
	enrich EnrichmentProvider
	cfg    CorrelationConfig
	logger zerolog.Logger
}

// NewCorrelationAnalyzer creates an analyzer. enrich may be nil, in which
// case Analyze reports no correlations.
func NewCorrelationAnalyzer(cfg CorrelationConfig, enrich EnrichmentProvider, logger zerolog.Logger) *CorrelationAnalyzer {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.MaxQualifyingPairs <= 0 {
		cfg.MaxQualifyingPairs = 20
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 10
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	if cfg.LookupFanOut <= 0 {
		cfg.LookupFanOut = 5
	}
	return &CorrelationAnalyzer{
		enrich: enrich,
		cfg:    cfg,
		logger: logger.With().Str("component", "CorrelationAnalyzer").Logger(),
	}
}

type symbolPair struct {
	a, b int // indexes into the symbol batch
}

type pairSimilarity struct {
	a, b       string
	similarity float64
}

// Analyze computes the pairwise correlation summary for a symbol batch.
// The memoization cache is scoped to this run.
func (ca *CorrelationAnalyzer) Analyze(ctx context.Context, symbols []SymbolStatus) *CorrelationResult {
	if ca.enrich == nil || len(symbols) < 2 {
		return nil
	}

	pairs := make([]symbolPair, 0, len(symbols)*(len(symbols)-1)/2)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			pairs = append(pairs, symbolPair{a: i, b: j})
		}
	}

	// Adaptive chunk size: small batches stay in one chunk, large batches
	// split into roughly four.
	chunkSize := int(math.Ceil(float64(len(pairs)) / 4))
	if chunkSize > ca.cfg.MaxChunkSize {
		chunkSize = ca.cfg.MaxChunkSize
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	memo := make(map[string][]NeighborPattern)
	var qualifying []pairSimilarity

	for start := 0; start < len(pairs) && len(qualifying) < ca.cfg.MaxQualifyingPairs; start += chunkSize {
		end := start + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk := pairs[start:end]

		ca.prefetchNeighborhoods(ctx, symbols, chunk, memo)

		for _, p := range chunk {
			if len(qualifying) >= ca.cfg.MaxQualifyingPairs {
				break
			}
			a, b := symbols[p.a], symbols[p.b]
			na, okA := memo[a.Signature().Key()]
			nb, okB := memo[b.Signature().Key()]
			if !okA || !okB {
				continue
			}
			similarity := neighborhoodOverlap(na, nb)
			if similarity >= ca.cfg.SimilarityThreshold {
				qualifying = append(qualifying, pairSimilarity{a: a.Code, b: b.Code, similarity: similarity})
			}
		}
	}

	if len(qualifying) == 0 {
		return nil
	}
	return ca.summarize(qualifying)
}

// prefetchNeighborhoods resolves every signature the chunk needs that is not
// memoized yet. Distinct signatures are fetched concurrently with a bounded
// fan-out; repeated appearances across pairs cost a single external call.
func (ca *CorrelationAnalyzer) prefetchNeighborhoods(ctx context.Context, symbols []SymbolStatus, chunk []symbolPair, memo map[string][]NeighborPattern) {
	pending := make([]StatusSignature, 0, len(chunk)*2)
	seen := make(map[string]bool, len(chunk)*2)
	for _, p := range chunk {
		for _, idx := range []int{p.a, p.b} {
			sig := symbols[idx].Signature()
			key := sig.Key()
			if _, memoized := memo[key]; memoized || seen[key] {
				continue
			}
			seen[key] = true
			pending = append(pending, sig)
		}
	}
	if len(pending) == 0 {
		return
	}

	results := make([][]NeighborPattern, len(pending))
	sem := make(chan struct{}, ca.cfg.LookupFanOut)
	var wg sync.WaitGroup
	for i, sig := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sig StatusSignature) {
			defer wg.Done()
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, ca.cfg.LookupTimeout)
			defer cancel()

			neighbors, err := ca.enrich.FindSimilarPatterns(callCtx, sig)
			if err != nil {
				ca.logger.Warn().
					Err(err).
					Str("symbol", sig.Symbol).
					Msg("Similar-pattern lookup failed, pair skipped")
				return
			}
			results[i] = neighbors
		}(i, sig)
	}
	wg.Wait()

	for i, sig := range pending {
		if results[i] != nil {
			memo[sig.Key()] = results[i]
		}
	}
}

// neighborhoodOverlap computes the shared fraction of two neighborhoods.
// A lookup map is built from one side before scanning the other, so the
// comparison is O(n) rather than a nested loop.
func neighborhoodOverlap(a, b []NeighborPattern) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	keys := make(map[string]bool, len(a))
	for _, n := range a {
		keys[neighborKey(n)] = true
	}
	common := 0
	for _, n := range b {
		if keys[neighborKey(n)] {
			common++
		}
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(common) / float64(larger)
}

// neighborKey identifies a neighborhood entry by symbol, similarity score
// rounded to two decimals, and status signature.
func neighborKey(n NeighborPattern) string {
	return fmt.Sprintf("%s|%.2f|%s", n.Symbol, n.Similarity, n.StatusSignature)
}

// summarize aggregates the qualifying pairs into one CorrelationResult.
func (ca *CorrelationAnalyzer) summarize(qualifying []pairSimilarity) *CorrelationResult {
	total := 0.0
	symbolSet := make(map[string]bool)
	insights := make([]string, 0, len(qualifying))
	for _, q := range qualifying {
		total += q.similarity
		symbolSet[q.a] = true
		symbolSet[q.b] = true
		insights = append(insights, fmt.Sprintf("%s and %s share %.0f%% of their similar-pattern neighborhood", q.a, q.b, q.similarity*100))
	}
	avg := total / float64(len(qualifying))

	distinct := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		distinct = append(distinct, s)
	}
	sort.Strings(distinct)

	var recommendations []string
	switch {
	case avg > 0.7:
		recommendations = append(recommendations,
			fmt.Sprintf("Strong correlation across %v: treat these listings as one cluster and size entries accordingly", distinct))
	case avg > 0.5:
		recommendations = append(recommendations,
			fmt.Sprintf("Moderate correlation across %v: stagger entries to avoid doubling exposure", distinct))
	default:
		recommendations = append(recommendations,
			fmt.Sprintf("Weak correlation across %v: treat listings independently but monitor the overlap", distinct))
	}

	return &CorrelationResult{
		Symbols:         distinct,
		CorrelationType: "pattern_similarity",
		Strength:        avg,
		Insights:        insights,
		Recommendations: recommendations,
	}
}
