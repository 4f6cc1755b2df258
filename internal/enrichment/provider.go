package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"early-listing-bot/internal/cache"
	"early-listing-bot/internal/detector"
)

const (
	scoringSystemPrompt = `You are a crypto listing research assistant. You score how promising a
newly detected listing pattern is. Respond ONLY with JSON of the form
{"boost": <number 0-20>, "insights": ["..."]}. No prose.`

	similaritySystemPrompt = `You are a crypto listing research assistant. Given a symbol status
signature you return historically similar listing patterns. Respond ONLY
with a JSON array of the form
[{"symbol": "...", "similarity": <0-1>, "status_signature": "..."}].
No prose.`
)

// ProviderConfig tunes the LLM-backed enrichment provider.
type ProviderConfig struct {
	Client        ClientConfig  `json:"client"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	CacheCapacity int           `json:"cache_capacity"`
}

// DefaultProviderConfig returns default configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Client:        DefaultClientConfig(),
		CacheTTL:      15 * time.Minute,
		CacheCapacity: 512,
	}
}

// LLMProvider implements detector.EnrichmentProvider on top of an LLM
// completion client. Responses are cached per symbol and per signature so
// repeated detection runs within the TTL cost one external call.
type LLMProvider struct {
	client *Client
	scores *cache.TTLCache
	sims   *cache.TTLCache
	logger zerolog.Logger
}

// NewLLMProvider creates a provider from config.
func NewLLMProvider(cfg ProviderConfig, logger zerolog.Logger) *LLMProvider {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 512
	}
	return &LLMProvider{
		client: NewClient(cfg.Client),
		scores: cache.New(cfg.CacheTTL, cfg.CacheCapacity),
		sims:   cache.New(cfg.CacheTTL, cfg.CacheCapacity),
		logger: logger.With().Str("component", "LLMProvider").Logger(),
	}
}

// ScorePattern asks the LLM for a bounded confidence boost for a symbol.
// Errors are returned to the caller, which treats them as zero boost.
func (p *LLMProvider) ScorePattern(ctx context.Context, symbol string, features detector.FeatureSet) (detector.EnrichmentResult, error) {
	key := scoreKey(symbol, features)
	if cached, ok := p.scores.Get(key); ok {
		return cached.(detector.EnrichmentResult), nil
	}

	prompt := fmt.Sprintf(
		"Symbol: %s\nExact status match: %t\nHas vcoin ID: %t\nHas additional data: %t\nHistorical success rate: %.1f\n\nScore this listing pattern.",
		symbol, features.ExactStatusMatch, features.HasVcoinID, features.HasAdditionalData, features.HistoricalSuccessRate)

	raw, err := p.client.Complete(ctx, scoringSystemPrompt, prompt)
	if err != nil {
		return detector.EnrichmentResult{}, fmt.Errorf("enrichment scoring failed for %s: %w", symbol, err)
	}

	var result detector.EnrichmentResult
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(raw)), &result); err != nil {
		return detector.EnrichmentResult{}, fmt.Errorf("failed to parse scoring response for %s: %w", symbol, err)
	}
	if result.Boost < 0 {
		result.Boost = 0
	}
	if result.Boost > detector.MaxEnrichmentBoost {
		result.Boost = detector.MaxEnrichmentBoost
	}

	p.scores.Set(key, result)
	p.logger.Debug().
		Str("symbol", symbol).
		Float64("boost", result.Boost).
		Int("insights", len(result.Insights)).
		Msg("Pattern scored")
	return result, nil
}

// FindSimilarPatterns asks the LLM for historically similar listing
// patterns for a status signature.
func (p *LLMProvider) FindSimilarPatterns(ctx context.Context, sig detector.StatusSignature) ([]detector.NeighborPattern, error) {
	key := sig.Key()
	if cached, ok := p.sims.Get(key); ok {
		return cached.([]detector.NeighborPattern), nil
	}

	prompt := fmt.Sprintf(
		"Symbol: %s\nStatus trading: %d\nStatus state: %d\nTrading time flag: %d\n\nList similar historical listing patterns.",
		sig.Symbol, sig.StatusTrading, sig.StatusState, sig.TradingTimeFlag)

	raw, err := p.client.Complete(ctx, similaritySystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("similarity lookup failed for %s: %w", sig.Symbol, err)
	}

	var neighbors []detector.NeighborPattern
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(raw)), &neighbors); err != nil {
		return nil, fmt.Errorf("failed to parse similarity response for %s: %w", sig.Symbol, err)
	}

	p.sims.Set(key, neighbors)
	return neighbors, nil
}

func scoreKey(symbol string, features detector.FeatureSet) string {
	return fmt.Sprintf("%s:%t:%t:%t", symbol, features.ExactStatusMatch, features.HasVcoinID, features.HasAdditionalData)
}

// stripMarkdownCodeBlock removes ```json fences some models wrap around
// JSON payloads despite instructions.
func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
