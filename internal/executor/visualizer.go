package executor

import (
	"fmt"
	"strings"
)

// ProgressReport renders a human-readable view of execution progress at the
// given current price. Intended for logs, CLI output and chat alerts.
func (e *PhaseExecutor) ProgressReport(currentPrice float64) string {
	summary := e.Summarize()
	breakdown := e.PhaseBreakdown()

	var b strings.Builder
	fmt.Fprintf(&b, "Position %s (%s)\n", summary.PositionID, summary.State)
	fmt.Fprintf(&b, "Entry %.4f | Current %.4f (%+.2f%%)\n",
		summary.EntryPrice, currentPrice, priceChangePct(currentPrice, summary.EntryPrice))
	fmt.Fprintf(&b, "Progress: %d/%d phases (%.0f%%)\n",
		summary.ExecutedPhases, summary.TotalPhases, summary.CompletionPercent)

	for _, phase := range breakdown {
		marker := "[ ]"
		detail := fmt.Sprintf("target +%.1f%%, sell %.0f%%", phase.PercentageTarget, phase.SellPercentage)
		if phase.Executed {
			marker = "[x]"
			detail = fmt.Sprintf("sold %.2f @ %.4f, profit %.2f", phase.Amount, phase.Price, phase.Profit)
		}
		fmt.Fprintf(&b, "  %s Phase %d: %s\n", marker, phase.Phase, detail)
	}

	fmt.Fprintf(&b, "Realized profit: %.2f | Remaining: %.2f", summary.RealizedProfit, summary.RemainingAmount)
	if summary.TotalSold > 0 {
		fmt.Fprintf(&b, " | Avg exit: %.4f", summary.AverageExitPrice)
	}
	return b.String()
}

func priceChangePct(current, entry float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (current - entry) / entry * 100
}
