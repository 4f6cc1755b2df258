package executor

import "sort"

// Urgency describes how far price has overshot a phase's trigger threshold.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// DefaultMaxPhasesPerCall bounds the blast radius of a single price tick:
// a spike that would otherwise trigger many phases at once fires at most
// this many.
const DefaultMaxPhasesPerCall = 3

// PlannedPhase is one phase eligible to fire now.
type PlannedPhase struct {
	Phase            int     `json:"phase"`
	PercentageTarget float64 `json:"percentage_target"`
	SellPercentage   float64 `json:"sell_percentage"`
	Amount           float64 `json:"amount"`
	ExpectedProfit   float64 `json:"expected_profit"`
	Overshoot        float64 `json:"overshoot"`
	Urgency          Urgency `json:"urgency"`
}

// urgencyRank orders urgencies for sorting, highest first.
func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
}

// classifyUrgency maps an overshoot (percentage points past the trigger)
// to its urgency tier.
func classifyUrgency(overshoot float64) Urgency {
	switch {
	case overshoot > 20:
		return UrgencyHigh
	case overshoot > 10:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// PlanPhases returns the ordered list of phases eligible to fire at
// currentPrice. Pure and deterministic: a level is eligible iff the price
// increase meets its target and the phase has not executed yet. Output is
// sorted urgency-descending with strategy-level order breaking ties, then
// truncated to maxPhases (DefaultMaxPhasesPerCall when <= 0).
func PlanPhases(currentPrice, entryPrice, totalAmount float64, strategy TradingStrategyConfig, executed map[int]bool, maxPhases int) []PlannedPhase {
	if maxPhases <= 0 {
		maxPhases = DefaultMaxPhasesPerCall
	}
	if entryPrice <= 0 {
		return nil
	}

	priceIncreasePct := (currentPrice - entryPrice) / entryPrice * 100

	var eligible []PlannedPhase
	for i, level := range strategy.Levels {
		phase := i + 1
		if executed[phase] {
			continue
		}
		if priceIncreasePct < level.PercentageTarget {
			continue
		}
		amount := totalAmount * level.SellPercentage / 100
		overshoot := priceIncreasePct - level.PercentageTarget
		eligible = append(eligible, PlannedPhase{
			Phase:            phase,
			PercentageTarget: level.PercentageTarget,
			SellPercentage:   level.SellPercentage,
			Amount:           amount,
			ExpectedProfit:   amount * (currentPrice - entryPrice),
			Overshoot:        overshoot,
			Urgency:          classifyUrgency(overshoot),
		})
	}

	// Stable sort keeps strategy-level order for equal urgency, which keeps
	// caller behavior deterministic under replay.
	sort.SliceStable(eligible, func(i, j int) bool {
		return urgencyRank(eligible[i].Urgency) < urgencyRank(eligible[j].Urgency)
	})

	if len(eligible) > maxPhases {
		eligible = eligible[:maxPhases]
	}
	return eligible
}
