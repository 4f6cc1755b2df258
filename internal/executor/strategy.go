package executor

import (
	"errors"
	"fmt"
)

// Strategy validation errors. These are configuration errors: fatal at
// construction, never retried.
var (
	ErrNoLevels            = errors.New("strategy has no levels")
	ErrInvalidTarget       = errors.New("level percentage target must be positive")
	ErrInvalidSellPercent  = errors.New("level sell percentage must be in (0, 100]")
	ErrSellPercentOverflow = errors.New("level sell percentages exceed 100% of the position")
)

// StrategyLevel is one discrete partial-exit step: when price has risen by
// PercentageTarget, sell SellPercentage of the position.
type StrategyLevel struct {
	PercentageTarget float64 `json:"percentage_target"`
	Multiplier       float64 `json:"multiplier"`
	SellPercentage   float64 `json:"sell_percentage"`
}

// TradingStrategyConfig is an ordered, immutable list of exit levels.
// Switching strategy constructs a new executor rather than mutating levels
// in place; explicit dynamic-target adjustments replace the array atomically.
type TradingStrategyConfig struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Levels []StrategyLevel `json:"levels"`
}

// Validate checks that the level list is well formed.
func (c TradingStrategyConfig) Validate() error {
	if len(c.Levels) == 0 {
		return ErrNoLevels
	}
	totalSell := 0.0
	for i, level := range c.Levels {
		if level.PercentageTarget <= 0 {
			return fmt.Errorf("level %d: %w", i+1, ErrInvalidTarget)
		}
		if level.SellPercentage <= 0 || level.SellPercentage > 100 {
			return fmt.Errorf("level %d: %w", i+1, ErrInvalidSellPercent)
		}
		totalSell += level.SellPercentage
	}
	if totalSell > 100.0+1e-9 {
		return ErrSellPercentOverflow
	}
	return nil
}

// DefaultStrategy returns a conservative three-phase take-profit ladder.
func DefaultStrategy() TradingStrategyConfig {
	return TradingStrategyConfig{
		ID:   "default-3phase",
		Name: "Default 3-Phase Ladder",
		Levels: []StrategyLevel{
			{PercentageTarget: 10, Multiplier: 1.10, SellPercentage: 25},
			{PercentageTarget: 20, Multiplier: 1.20, SellPercentage: 25},
			{PercentageTarget: 30, Multiplier: 1.30, SellPercentage: 50},
		},
	}
}
