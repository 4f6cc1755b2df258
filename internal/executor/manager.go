package executor

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Manager errors.
var (
	ErrPositionExists   = errors.New("position already has an executor")
	ErrPositionNotFound = errors.New("no executor for position")
)

// Manager owns one PhaseExecutor per open position. Executors are created
// per position and collaborators are passed in explicitly: no singletons,
// no hidden global state.
type Manager struct {
	mu        sync.RWMutex
	executors map[string]*PhaseExecutor
	store     ExecutionStore // optional, shared by all executors
	logger    zerolog.Logger
}

// NewManager creates an executor manager. store may be nil.
func NewManager(store ExecutionStore, logger zerolog.Logger) *Manager {
	return &Manager{
		executors: make(map[string]*PhaseExecutor),
		store:     store,
		logger:    logger.With().Str("component", "ExecutorManager").Logger(),
	}
}

// Open creates an executor for a new position. Fails if the position
// already has one or if the parameters are invalid.
func (m *Manager) Open(positionID string, strategy TradingStrategyConfig, entryPrice, totalAmount float64) (*PhaseExecutor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.executors[positionID]; exists {
		return nil, ErrPositionExists
	}
	exec, err := NewPhaseExecutor(positionID, strategy, entryPrice, totalAmount, m.store, m.logger)
	if err != nil {
		return nil, err
	}
	m.executors[positionID] = exec
	m.logger.Info().
		Str("position_id", positionID).
		Str("strategy_id", strategy.ID).
		Msg("Executor opened")
	return exec, nil
}

// Get returns the executor for a position.
func (m *Manager) Get(positionID string) (*PhaseExecutor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exec, ok := m.executors[positionID]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return exec, nil
}

// Close discards the executor for a closed position.
func (m *Manager) Close(positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executors[positionID]; !ok {
		return ErrPositionNotFound
	}
	delete(m.executors, positionID)
	m.logger.Info().Str("position_id", positionID).Msg("Executor closed")
	return nil
}

// Positions lists open position IDs in sorted order.
func (m *Manager) Positions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.executors))
	for id := range m.executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
