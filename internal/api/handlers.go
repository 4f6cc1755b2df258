package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"early-listing-bot/internal/detector"
	"early-listing-bot/internal/executor"
)

// handleAnalyzePatterns runs the full detection pipeline over a snapshot of
// symbol statuses and calendar entries, emits trade targets for qualifying
// matches, and broadcasts the result to WebSocket subscribers.
func (s *Server) handleAnalyzePatterns(c *gin.Context) {
	var req detector.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Symbols) == 0 && len(req.CalendarEntries) == 0 {
		errorResponse(c, http.StatusBadRequest, "At least one symbol or calendar entry is required")
		return
	}

	result := s.orchestrator.AnalyzePatterns(c.Request.Context(), req)

	var targets interface{}
	if s.bridge != nil {
		targets = s.bridge.EmitTargets(c.Request.Context(), result.Matches)
	}

	s.hub.BroadcastAnalysis(result)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"targets": targets,
	})
}

// handleRecentPatterns returns recently persisted pattern matches.
func (s *Server) handleRecentPatterns(c *gin.Context) {
	if s.patterns == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Pattern storage is disabled")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	patterns, err := s.patterns.RecentPatterns(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to load patterns: "+err.Error())
		return
	}
	successResponse(c, patterns)
}

// handlePendingTargets returns emitted trade targets ordered by priority.
func (s *Server) handlePendingTargets(c *gin.Context) {
	if s.targets == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Target storage is disabled")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	targets, err := s.targets.PendingTargets(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to load targets: "+err.Error())
		return
	}
	successResponse(c, targets)
}

type openPositionRequest struct {
	PositionID  string                          `json:"position_id" binding:"required"`
	EntryPrice  float64                         `json:"entry_price" binding:"required"`
	TotalAmount float64                         `json:"total_amount" binding:"required"`
	Strategy    *executor.TradingStrategyConfig `json:"strategy,omitempty"`
}

// handleOpenPosition creates a phase executor for a new position. The
// default three-level strategy is used when none is supplied.
func (s *Server) handleOpenPosition(c *gin.Context) {
	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	strategy := executor.DefaultStrategy()
	if req.Strategy != nil {
		strategy = *req.Strategy
	}

	exec, err := s.manager.Open(req.PositionID, strategy, req.EntryPrice, req.TotalAmount)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, executor.ErrPositionExists) {
			status = http.StatusConflict
		}
		errorResponse(c, status, err.Error())
		return
	}
	successResponse(c, exec.ExportState())
}

// handleListPositions lists open position IDs.
func (s *Server) handleListPositions(c *gin.Context) {
	successResponse(c, s.manager.Positions())
}

func (s *Server) lookupExecutor(c *gin.Context) (*executor.PhaseExecutor, bool) {
	exec, err := s.manager.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return nil, false
	}
	return exec, true
}

// handleGetPosition returns the full executor snapshot.
func (s *Server) handleGetPosition(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}
	successResponse(c, exec.ExportState())
}

// handlePositionSummary returns the derived P&L summary and per-phase
// breakdown.
func (s *Server) handlePositionSummary(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}
	successResponse(c, gin.H{
		"summary":   exec.Summarize(),
		"breakdown": exec.PhaseBreakdown(),
	})
}

// handlePositionReport returns the text progress report at a given price.
func (s *Server) handlePositionReport(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}

	currentPrice, err := strconv.ParseFloat(c.Query("current_price"), 64)
	if err != nil || currentPrice <= 0 {
		errorResponse(c, http.StatusBadRequest, "current_price query parameter must be a positive number")
		return
	}
	c.String(http.StatusOK, exec.ProgressReport(currentPrice))
}

type planPhasesRequest struct {
	CurrentPrice float64 `json:"current_price" binding:"required"`
	MaxPhases    int     `json:"max_phases,omitempty"`
}

// handlePlanPhases returns the phases that should execute at the current
// price, ordered by urgency.
func (s *Server) handlePlanPhases(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}

	var req planPhasesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	successResponse(c, exec.PlanPhases(req.CurrentPrice, req.MaxPhases))
}

type recordExecutionRequest struct {
	Phase  int     `json:"phase" binding:"required"`
	Price  float64 `json:"price" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

// handleRecordExecution records one completed phase execution.
func (s *Server) handleRecordExecution(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}

	var req recordExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	record, err := exec.RecordPhaseExecution(c.Request.Context(), req.Phase, req.Price, req.Amount)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, executor.ErrPhaseAlreadyExecuted) {
			status = http.StatusConflict
		}
		errorResponse(c, status, err.Error())
		return
	}
	successResponse(c, record)
}

// handleImportState replaces the executor state with a stored snapshot.
func (s *Server) handleImportState(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}

	var snapshot executor.ExecutorSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := exec.ImportState(snapshot); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, exec.ExportState())
}

type setLevelsRequest struct {
	Levels []executor.StrategyLevel `json:"levels" binding:"required"`
}

// handleSetLevels replaces the strategy levels mid-flight, typically in
// response to changed market conditions.
func (s *Server) handleSetLevels(c *gin.Context) {
	exec, ok := s.lookupExecutor(c)
	if !ok {
		return
	}

	var req setLevelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := exec.SetDynamicTargets(req.Levels); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, exec.ExportState())
}

// handleClosePosition discards a position's executor.
func (s *Server) handleClosePosition(c *gin.Context) {
	if err := s.manager.Close(c.Param("id")); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, gin.H{"closed": c.Param("id")})
}
