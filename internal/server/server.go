// Package server exposes the debate system over HTTP: run debates, check the
// execution gate, query history and inspect adapter availability.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/analysis"
	"dev.helix.debate/internal/config"
	"dev.helix.debate/internal/engine"
	"dev.helix.debate/internal/gate"
	"dev.helix.debate/internal/history"
	"dev.helix.debate/internal/llm"
	"dev.helix.debate/internal/orchestrator"
)

// Debater runs one complete debate.
type Debater interface {
	RunDebate(ctx context.Context, request, filePath string, focusAreas []string) (*orchestrator.Result, error)
}

// Iterator runs the debate-revise loop to a target consensus.
type Iterator interface {
	RunIterativeDebate(ctx context.Context, topic, filePath string, focusAreas []string, targetConsensus, maxIterations int) (*engine.Result, error)
}

// Options wires the server's collaborators. Registry, History and Gate may
// be nil; the matching endpoints then report 503. A nil Analyzer gets the
// default hybrid (LLM with rule-based fallback).
type Options struct {
	Config   *config.Config
	Debater  Debater
	Iterator Iterator
	Registry *llm.Registry
	History  *history.Store
	Gate     *gate.Gate
	Analyzer *analysis.HybridAnalyzer
	Logger   *logrus.Logger
}

// Server is the HTTP facade over the debate system.
type Server struct {
	router   *gin.Engine
	cfg      *config.Config
	debater  Debater
	iterator Iterator
	registry *llm.Registry
	history  *history.Store
	gate     *gate.Gate
	analyzer *analysis.HybridAnalyzer
	log      *logrus.Logger
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New builds the server and registers all routes.
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.NewHybridAnalyzer(
			analysis.NewLLMAnalyzer(analysis.DefaultLLMConfig(), opts.Logger),
			analysis.NewRuleBasedAnalyzer(),
		)
	}

	s := &Server{
		router:   gin.New(),
		cfg:      opts.Config,
		debater:  opts.Debater,
		iterator: opts.Iterator,
		registry: opts.Registry,
		history:  opts.History,
		gate:     opts.Gate,
		analyzer: opts.Analyzer,
		log:      opts.Logger,
	}
	s.router.Use(gin.Recovery(), requestID())
	s.registerRoutes()
	return s
}

// requestID tags every request with an id, honoring one supplied by the
// caller, so responses and logs can be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// Router exposes the gin engine for embedding and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("debate server listening")
	return s.router.Run(addr)
}

func (s *Server) registerRoutes() {
	// /health and /invoke are top-level so the server can itself serve as a
	// bridge backend for the HTTP adapter family.
	s.router.GET("/health", s.getHealth)
	s.router.POST("/invoke", s.postInvoke)

	api := s.router.Group("/api/v1")
	api.GET("/providers", s.getProviders)
	api.POST("/debates", s.postDebate)
	api.POST("/debates/iterative", s.postIterativeDebate)
	api.POST("/debates/check", s.postComplexityCheck)
	api.POST("/debates/analyze", s.postAnalyze)
	api.GET("/history/statistics", s.getHistoryStatistics)
	api.GET("/history/recent", s.getRecentDebates)
	api.GET("/sessions/:session_id/execution", s.getExecutionVerdict)
	api.POST("/sessions/:session_id/override", s.postUserOverride)
}

// HealthResponse reports process liveness and adapter availability.
type HealthResponse struct {
	Status        string `json:"status"`
	Enabled       bool   `json:"enabled"`
	ProviderCount int    `json:"provider_count"`
	MultiVendor   bool   `json:"multi_vendor"`
}

func (s *Server) getHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Enabled: s.cfg.Enabled}
	if s.registry != nil {
		status := s.registry.GetStatus()
		resp.ProviderCount = status.ProviderCount
		resp.MultiVendor = status.MultiVendor
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getProviders(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "adapter registry not configured"})
		return
	}
	c.JSON(http.StatusOK, s.registry.GetStatus())
}

// InvokeRequest is the bridge wire contract for one raw invocation.
type InvokeRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Model  string `json:"model"`
}

// InvokeResponse mirrors the bridge response shape; Message carries the
// failure detail on 503.
type InvokeResponse struct {
	Response string `json:"response,omitempty"`
	Model    string `json:"model,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) postInvoke(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, InvokeResponse{Message: "adapter registry not configured"})
		return
	}

	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	primary, _ := s.registry.Pair()
	if primary == nil {
		c.JSON(http.StatusServiceUnavailable, InvokeResponse{Message: "no adapters available"})
		return
	}

	resp := primary.Invoke(c.Request.Context(), req.Prompt)
	if !resp.Success {
		c.JSON(http.StatusServiceUnavailable, InvokeResponse{
			Model:   resp.Model,
			Vendor:  resp.Vendor,
			Message: resp.Err,
		})
		return
	}
	c.JSON(http.StatusOK, InvokeResponse{
		Response: resp.Text,
		Model:    resp.Model,
		Vendor:   resp.Vendor,
	})
}

// DebateRequest starts one debate over a plan file.
type DebateRequest struct {
	Request    string   `json:"request" binding:"required"`
	FilePath   string   `json:"file_path" binding:"required"`
	FocusAreas []string `json:"focus_areas"`
}

func (s *Server) postDebate(c *gin.Context) {
	if s.debater == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "debate orchestrator not configured"})
		return
	}

	var req DebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.debater.RunDebate(c.Request.Context(), req.Request, req.FilePath, req.FocusAreas)
	if err != nil {
		s.log.WithError(err).Error("debate failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// IterativeDebateRequest starts the debate-revise loop. Zero target or
// iterations fall back to the configured defaults.
type IterativeDebateRequest struct {
	Topic           string   `json:"topic" binding:"required"`
	FilePath        string   `json:"file_path" binding:"required"`
	FocusAreas      []string `json:"focus_areas"`
	TargetConsensus int      `json:"target_consensus"`
	MaxIterations   int      `json:"max_iterations"`
}

func (s *Server) postIterativeDebate(c *gin.Context) {
	if s.iterator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "iterative engine not configured"})
		return
	}

	var req IterativeDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.iterator.RunIterativeDebate(c.Request.Context(),
		req.Topic, req.FilePath, req.FocusAreas, req.TargetConsensus, req.MaxIterations)
	if err != nil {
		s.log.WithError(err).Error("iterative debate failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ComplexityCheckRequest asks whether a change needs a debate.
type ComplexityCheckRequest struct {
	Request   string   `json:"request" binding:"required"`
	FilePaths []string `json:"file_paths"`
}

func (s *Server) postComplexityCheck(c *gin.Context) {
	var req ComplexityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gate.CheckDebateRequired(s.cfg, req.Request, req.FilePaths))
}

// AnalyzeRequest compares two proposals without running a full debate.
type AnalyzeRequest struct {
	First  string `json:"first" binding:"required"`
	Second string `json:"second" binding:"required"`
}

func (s *Server) postAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.analyzer.Analyze(req.First, req.Second))
}

func (s *Server) getHistoryStatistics(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history store not configured"})
		return
	}

	stats, err := s.history.GetStatistics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RecentDebatesResponse lists archived debates from the last N days.
type RecentDebatesResponse struct {
	Debates []*history.Record `json:"debates"`
	Total   int               `json:"total"`
}

func (s *Server) getRecentDebates(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history store not configured"})
		return
	}

	days := intQuery(c, "days", 7)
	limit := intQuery(c, "limit", 20)

	debates, err := s.history.RecentDebates(days, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RecentDebatesResponse{Debates: debates, Total: len(debates)})
}

func (s *Server) getExecutionVerdict(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "execution gate not configured"})
		return
	}

	verdict := s.gate.CheckExecution(c.Param("session_id"))
	if verdict.Err != "" {
		c.JSON(http.StatusNotFound, verdict)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// OverrideResponse acknowledges a recorded user override.
type OverrideResponse struct {
	SessionID    string `json:"session_id"`
	UserOverride bool   `json:"user_override"`
}

func (s *Server) postUserOverride(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "execution gate not configured"})
		return
	}

	sessionID := c.Param("session_id")
	if err := s.gate.MarkUserOverride(sessionID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, OverrideResponse{SessionID: sessionID, UserOverride: true})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
