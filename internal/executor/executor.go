package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Construction and phase-operation errors.
var (
	ErrInvalidEntryPrice    = errors.New("entry price must be positive")
	ErrInvalidTotalAmount   = errors.New("total amount must be positive")
	ErrPhaseOutOfRange      = errors.New("phase outside strategy range")
	ErrPhaseAlreadyExecuted = errors.New("phase already executed")
	ErrLevelsBelowExecuted  = errors.New("new levels drop already-executed phases")
)

// Executor lifecycle states.
const (
	StateCreated  = "created"
	StateActive   = "active"
	StateComplete = "complete"
)

// PhaseExecutionRecord is the append-only record of one fired phase.
type PhaseExecutionRecord struct {
	Phase              int       `json:"phase"`
	Price              float64   `json:"price"`
	Amount             float64   `json:"amount"`
	Profit             float64   `json:"profit"`
	Timestamp          time.Time `json:"timestamp"`
	Slippage           float64   `json:"slippage,omitempty"`
	ExecutionLatencyMs float64   `json:"execution_latency_ms,omitempty"`
}

// ExecutorSnapshot is the external form of the executor state used for
// export/import.
type ExecutorSnapshot struct {
	PositionID     string                 `json:"position_id"`
	Strategy       TradingStrategyConfig  `json:"strategy"`
	EntryPrice     float64                `json:"entry_price"`
	TotalAmount    float64                `json:"total_amount"`
	ExecutedPhases []int                  `json:"executed_phases"`
	PhaseHistory   []PhaseExecutionRecord `json:"phase_history"`
	ExportedAt     time.Time              `json:"exported_at"`
}

// ExecutionStore persists execution records and snapshots. Fire-and-forget
// from the executor's perspective: the in-memory state stays authoritative
// whether or not the store call succeeds.
type ExecutionStore interface {
	PersistExecution(ctx context.Context, positionID string, record PhaseExecutionRecord) error
	SaveSnapshot(ctx context.Context, snapshot ExecutorSnapshot) error
}

// PhaseExecutor owns one position's multi-phase exit state. State is mutated
// only through RecordPhaseExecution and ImportState, and every import runs
// the synchronizer so the executed-phase set and the execution history never
// drift apart.
type PhaseExecutor struct {
	mu          sync.Mutex
	positionID  string
	strategy    TradingStrategyConfig
	entryPrice  float64
	totalAmount float64
	executed    map[int]bool
	history     []PhaseExecutionRecord
	store       ExecutionStore // optional
	logger      zerolog.Logger
	nowFn       func() time.Time
}

// NewPhaseExecutor validates the position parameters and strategy up front.
// Non-positive entry price or amount and malformed levels are configuration
// errors: the caller must fix inputs, not retry.
func NewPhaseExecutor(positionID string, strategy TradingStrategyConfig, entryPrice, totalAmount float64, store ExecutionStore, logger zerolog.Logger) (*PhaseExecutor, error) {
	if entryPrice <= 0 {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrInvalidEntryPrice)
	}
	if totalAmount <= 0 {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrInvalidTotalAmount)
	}
	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("position %s: invalid strategy: %w", positionID, err)
	}
	return &PhaseExecutor{
		positionID:  positionID,
		strategy:    strategy,
		entryPrice:  entryPrice,
		totalAmount: totalAmount,
		executed:    make(map[int]bool),
		store:       store,
		logger:      logger.With().Str("component", "PhaseExecutor").Str("position_id", positionID).Logger(),
		nowFn:       time.Now,
	}, nil
}

// PositionID returns the identifier of the position this executor owns.
func (e *PhaseExecutor) PositionID() string {
	return e.positionID
}

// EntryPrice returns the validated entry price.
func (e *PhaseExecutor) EntryPrice() float64 {
	return e.entryPrice
}

// TotalAmount returns the validated position size.
func (e *PhaseExecutor) TotalAmount() float64 {
	return e.totalAmount
}

// Strategy returns a copy of the attached strategy.
func (e *PhaseExecutor) Strategy() TradingStrategyConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyStrategy(e.strategy)
}

// State reports the lifecycle state derived from execution progress.
func (e *PhaseExecutor) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case len(e.executed) == 0:
		return StateCreated
	case len(e.executed) == len(e.strategy.Levels):
		return StateComplete
	default:
		return StateActive
	}
}

// PlanPhases returns the phases eligible to fire at currentPrice, capped at
// maxPhases per call.
func (e *PhaseExecutor) PlanPhases(currentPrice float64, maxPhases int) []PlannedPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PlanPhases(currentPrice, e.entryPrice, e.totalAmount, e.strategy, e.executed, maxPhases)
}

// RecordPhaseExecution appends the execution record for a fired phase and
// marks it executed. Exactly-once per phase per executor instance: an
// out-of-range or already-executed phase is rejected with no state change,
// and the error propagates since silently ignoring it would hide a caller bug.
func (e *PhaseExecutor) RecordPhaseExecution(ctx context.Context, phase int, price, amount float64) (*PhaseExecutionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if phase < 1 || phase > len(e.strategy.Levels) {
		return nil, fmt.Errorf("phase %d of %d: %w", phase, len(e.strategy.Levels), ErrPhaseOutOfRange)
	}
	if e.executed[phase] {
		return nil, fmt.Errorf("phase %d: %w", phase, ErrPhaseAlreadyExecuted)
	}

	record := PhaseExecutionRecord{
		Phase:     phase,
		Price:     price,
		Amount:    amount,
		Profit:    amount * (price - e.entryPrice),
		Timestamp: e.nowFn(),
	}
	e.history = append(e.history, record)
	e.executed[phase] = true

	e.logger.Info().
		Int("phase", phase).
		Float64("price", price).
		Float64("amount", amount).
		Float64("profit", record.Profit).
		Msg("Phase execution recorded")

	// Persistence is best effort: in-memory state is the source of truth
	// until the next successful persist.
	if e.store != nil {
		if err := e.store.PersistExecution(ctx, e.positionID, record); err != nil {
			e.logger.Error().
				Err(err).
				Int("phase", phase).
				Msg("Failed to persist phase execution, in-memory state remains authoritative")
		}
	}

	return &record, nil
}

// ExportState returns a deep copy of the executor state.
func (e *PhaseExecutor) ExportState() ExecutorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	executed := make([]int, 0, len(e.executed))
	for phase := range e.executed {
		executed = append(executed, phase)
	}
	sort.Ints(executed)

	history := make([]PhaseExecutionRecord, len(e.history))
	copy(history, e.history)

	return ExecutorSnapshot{
		PositionID:     e.positionID,
		Strategy:       copyStrategy(e.strategy),
		EntryPrice:     e.entryPrice,
		TotalAmount:    e.totalAmount,
		ExecutedPhases: executed,
		PhaseHistory:   history,
		ExportedAt:     e.nowFn(),
	}
}

// ImportState replaces the execution state from an external snapshot and
// always runs the synchronizer afterwards to restore the set/history
// invariant. If the snapshot is unusable the executor resets to a clean
// state and the error is returned: total failure is preferred over partial
// corruption.
func (e *PhaseExecutor) ImportState(snapshot ExecutorSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.applySnapshot(snapshot); err != nil {
		e.resetLocked()
		e.logger.Error().
			Err(err).
			Msg("State import failed, executor reset to clean state")
		return fmt.Errorf("import state: %w", err)
	}

	repairs := synchronize(e.executed, e.history)
	for _, repair := range repairs {
		e.logger.Warn().
			Int("phase", repair.Phase).
			Str("action", string(repair.Action)).
			Msg("Execution state repaired during import")
	}
	return nil
}

// applySnapshot validates and copies the snapshot into the executor.
func (e *PhaseExecutor) applySnapshot(snapshot ExecutorSnapshot) error {
	maxPhase := len(e.strategy.Levels)
	if len(snapshot.Strategy.Levels) > 0 {
		if err := snapshot.Strategy.Validate(); err != nil {
			return fmt.Errorf("snapshot strategy: %w", err)
		}
		maxPhase = len(snapshot.Strategy.Levels)
	}

	seen := make(map[int]bool, len(snapshot.PhaseHistory))
	for _, record := range snapshot.PhaseHistory {
		if record.Phase < 1 || record.Phase > maxPhase {
			return fmt.Errorf("history record for phase %d: %w", record.Phase, ErrPhaseOutOfRange)
		}
		if seen[record.Phase] {
			return fmt.Errorf("history has duplicate records for phase %d", record.Phase)
		}
		seen[record.Phase] = true
	}

	executed := make(map[int]bool, len(snapshot.ExecutedPhases))
	for _, phase := range snapshot.ExecutedPhases {
		if phase < 1 || phase > maxPhase {
			// Out-of-range executed markers without a record are drift the
			// synchronizer would remove anyway; drop them here.
			continue
		}
		executed[phase] = true
	}

	if len(snapshot.Strategy.Levels) > 0 {
		e.strategy = copyStrategy(snapshot.Strategy)
	}
	e.executed = executed
	e.history = make([]PhaseExecutionRecord, len(snapshot.PhaseHistory))
	copy(e.history, snapshot.PhaseHistory)
	return nil
}

// Reset discards all execution state, returning the executor to Created.
func (e *PhaseExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.logger.Info().Msg("Executor state reset")
}

func (e *PhaseExecutor) resetLocked() {
	e.executed = make(map[int]bool)
	e.history = nil
}

// Reinitialize attaches a new strategy and position parameters, discarding
// all execution state. This is the explicit transition back to Created after
// a position completes.
func (e *PhaseExecutor) Reinitialize(strategy TradingStrategyConfig, entryPrice, totalAmount float64) error {
	if entryPrice <= 0 {
		return ErrInvalidEntryPrice
	}
	if totalAmount <= 0 {
		return ErrInvalidTotalAmount
	}
	if err := strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = copyStrategy(strategy)
	e.entryPrice = entryPrice
	e.totalAmount = totalAmount
	e.resetLocked()
	e.logger.Info().
		Str("strategy_id", strategy.ID).
		Float64("entry_price", entryPrice).
		Msg("Executor reinitialized")
	return nil
}

// SetDynamicTargets atomically replaces the level array. The new levels must
// validate and must still cover every already-executed phase.
func (e *PhaseExecutor) SetDynamicTargets(levels []StrategyLevel) error {
	replacement := TradingStrategyConfig{ID: e.strategy.ID, Name: e.strategy.Name, Levels: levels}
	if err := replacement.Validate(); err != nil {
		return fmt.Errorf("invalid dynamic targets: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for phase := range e.executed {
		if phase > len(levels) {
			return fmt.Errorf("phase %d: %w", phase, ErrLevelsBelowExecuted)
		}
	}
	replacement.Levels = make([]StrategyLevel, len(levels))
	copy(replacement.Levels, levels)
	e.strategy = replacement
	e.logger.Info().Int("levels", len(levels)).Msg("Dynamic targets applied")
	return nil
}

// SaveSnapshot persists the current state through the execution store.
// Best effort, like record persistence.
func (e *PhaseExecutor) SaveSnapshot(ctx context.Context) {
	if e.store == nil {
		return
	}
	snapshot := e.ExportState()
	if err := e.store.SaveSnapshot(ctx, snapshot); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist executor snapshot")
	}
}

func copyStrategy(s TradingStrategyConfig) TradingStrategyConfig {
	out := s
	out.Levels = make([]StrategyLevel, len(s.Levels))
	copy(out.Levels, s.Levels)
	return out
}
