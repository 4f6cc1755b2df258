package executor

import "time"

// ExecutionSummary is the derived P&L view of an executor's state.
type ExecutionSummary struct {
	PositionID        string     `json:"position_id"`
	State             string     `json:"state"`
	EntryPrice        float64    `json:"entry_price"`
	ExecutedPhases    int        `json:"executed_phases"`
	TotalPhases       int        `json:"total_phases"`
	CompletionPercent float64    `json:"completion_percent"`
	TotalSold         float64    `json:"total_sold"`
	RemainingAmount   float64    `json:"remaining_amount"`
	RealizedProfit    float64    `json:"realized_profit"`
	AverageExitPrice  float64    `json:"average_exit_price"`
	FirstExecution    *time.Time `json:"first_execution,omitempty"`
	LastExecution     *time.Time `json:"last_execution,omitempty"`
}

// PhaseAnalytics is the per-phase breakdown.
type PhaseAnalytics struct {
	Phase            int     `json:"phase"`
	PercentageTarget float64 `json:"percentage_target"`
	SellPercentage   float64 `json:"sell_percentage"`
	Executed         bool    `json:"executed"`
	Price            float64 `json:"price,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	Profit           float64 `json:"profit,omitempty"`
	ReturnPercent    float64 `json:"return_percent,omitempty"`
}

// Summarize computes the read-only P&L summary. Derived views have no
// independent invariants: everything here follows from the executor state.
func (e *PhaseExecutor) Summarize() ExecutionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := ExecutionSummary{
		PositionID:  e.positionID,
		EntryPrice:  e.entryPrice,
		TotalPhases: len(e.strategy.Levels),
	}
	switch {
	case len(e.executed) == 0:
		summary.State = StateCreated
	case len(e.executed) == len(e.strategy.Levels):
		summary.State = StateComplete
	default:
		summary.State = StateActive
	}
	summary.ExecutedPhases = len(e.executed)
	if summary.TotalPhases > 0 {
		summary.CompletionPercent = float64(summary.ExecutedPhases) / float64(summary.TotalPhases) * 100
	}

	weightedPrice := 0.0
	for _, record := range e.history {
		summary.TotalSold += record.Amount
		summary.RealizedProfit += record.Profit
		weightedPrice += record.Price * record.Amount
		ts := record.Timestamp
		if summary.FirstExecution == nil || ts.Before(*summary.FirstExecution) {
			first := ts
			summary.FirstExecution = &first
		}
		if summary.LastExecution == nil || ts.After(*summary.LastExecution) {
			last := ts
			summary.LastExecution = &last
		}
	}
	if summary.TotalSold > 0 {
		summary.AverageExitPrice = weightedPrice / summary.TotalSold
	}
	summary.RemainingAmount = e.totalAmount - summary.TotalSold
	if summary.RemainingAmount < 0 {
		summary.RemainingAmount = 0
	}
	return summary
}

// PhaseBreakdown returns per-phase analytics in strategy-level order.
func (e *PhaseExecutor) PhaseBreakdown() []PhaseAnalytics {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := make(map[int]PhaseExecutionRecord, len(e.history))
	for _, record := range e.history {
		records[record.Phase] = record
	}

	breakdown := make([]PhaseAnalytics, 0, len(e.strategy.Levels))
	for i, level := range e.strategy.Levels {
		phase := i + 1
		analytics := PhaseAnalytics{
			Phase:            phase,
			PercentageTarget: level.PercentageTarget,
			SellPercentage:   level.SellPercentage,
			Executed:         e.executed[phase],
		}
		if record, ok := records[phase]; ok {
			analytics.Price = record.Price
			analytics.Amount = record.Amount
			analytics.Profit = record.Profit
			if e.entryPrice > 0 {
				analytics.ReturnPercent = (record.Price - e.entryPrice) / e.entryPrice * 100
			}
		}
		breakdown = append(breakdown, analytics)
	}
	return breakdown
}
