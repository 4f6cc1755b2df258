// Package api exposes the decision engine over HTTP: pattern analysis,
// position execution and a WebSocket feed of analysis results.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"early-listing-bot/internal/bridge"
	"early-listing-bot/internal/database"
	"early-listing-bot/internal/detector"
	"early-listing-bot/internal/executor"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	orchestrator *detector.Orchestrator
	manager      *executor.Manager
	bridge       *bridge.Bridge
	db           *database.DB                 // optional
	patterns     *database.PatternRepository  // optional
	targets      *database.TargetRepository   // optional
	hub          *WSHub
	rateLimiter  *RateLimiter
	config       ServerConfig
	logger       zerolog.Logger
}

// NewServer creates a new API server. db, patterns and targets may be nil
// when running without Postgres.
func NewServer(
	config ServerConfig,
	orchestrator *detector.Orchestrator,
	manager *executor.Manager,
	br *bridge.Bridge,
	db *database.DB,
	patterns *database.PatternRepository,
	targets *database.TargetRepository,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:       router,
		orchestrator: orchestrator,
		manager:      manager,
		bridge:       br,
		db:           db,
		patterns:     patterns,
		targets:      targets,
		hub:          NewWSHub(logger),
		rateLimiter:  NewRateLimiter(120, time.Minute),
		config:       config,
		logger:       logger.With().Str("component", "APIServer").Logger(),
	}

	go server.hub.Run()
	server.setupRoutes()

	return server
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"path":  path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())
	{
		v1.POST("/patterns/analyze", s.handleAnalyzePatterns)
		v1.GET("/patterns/recent", s.handleRecentPatterns)
		v1.GET("/targets", s.handlePendingTargets)

		v1.POST("/positions", s.handleOpenPosition)
		v1.GET("/positions", s.handleListPositions)
		v1.GET("/positions/:id", s.handleGetPosition)
		v1.GET("/positions/:id/summary", s.handlePositionSummary)
		v1.GET("/positions/:id/report", s.handlePositionReport)
		v1.POST("/positions/:id/plan", s.handlePlanPhases)
		v1.POST("/positions/:id/executions", s.handleRecordExecution)
		v1.POST("/positions/:id/import", s.handleImportState)
		v1.PUT("/positions/:id/levels", s.handleSetLevels)
		v1.DELETE("/positions/:id", s.handleClosePosition)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "disabled",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
