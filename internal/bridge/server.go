package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/synthesishq/synthesis-agent/internal/config"
	apperrors "github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
	"github.com/synthesishq/synthesis-agent/internal/store"
)

// pollTimeout bounds one long-poll request; the surface re-polls
// immediately after each response.
const pollTimeout = 25 * time.Second

// AuthService is the slice of the auth flow the bridge exposes over HTTP.
type AuthService interface {
	InitiateSignIn(ctx context.Context) error
	HandleDeepLink(ctx context.Context, raw string) error
	SignOut(ctx context.Context) error
	Token(ctx context.Context) (string, error)
	SessionExpiry() time.Time
}

// Capturer starts a capture and returns its journal ID.
type Capturer interface {
	TriggerCapture(ctx context.Context) (string, error)
}

// Server is the loopback HTTP bridge. Second app instances forward deep
// links here, the UI surface long-polls here, and local tooling drives
// sign-in, sign-out, captures and the status surface through it.
type Server struct {
	router     *gin.Engine
	cfg        config.AgentConfig
	auth       AuthService
	capturer   Capturer
	hub        *SurfaceHub
	journal    store.Journal
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the bridge server. capturer and journal may be nil
// when the agent runs without capture support.
func NewServer(cfg config.AgentConfig, auth AuthService, capturer Capturer, hub *SurfaceHub, journal store.Journal, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		cfg:      cfg,
		auth:     auth,
		capturer: capturer,
		hub:      hub,
		journal:  journal,
		metrics:  m,
		logger:   logger,
	}
	s.router.HandleMethodNotAllowed = true
	s.router.Use(gin.Recovery())
	s.router.Use(loggingMiddleware(logger))
	s.setupRoutes()
	return s
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/v1")
	{
		v1.POST("/deeplink", s.handleDeepLink)
		v1.POST("/signin", s.handleSignIn)
		v1.POST("/signout", s.handleSignOut)
		v1.GET("/session", s.handleSession)
		v1.POST("/capture", s.handleCapture)
		v1.GET("/captures", s.handleRecentCaptures)
		v1.GET("/ui/poll", s.handlePoll)
		v1.POST("/ui/token", s.handleProvideToken)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type deepLinkRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) handleDeepLink(c *gin.Context) {
	var req deepLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	err := s.auth.HandleDeepLink(c.Request.Context(), req.URL)
	if err != nil {
		var denied *apperrors.ErrAuthorizationDenied
		var mismatch *apperrors.ErrStateMismatch
		if errors.As(err, &denied) || errors.As(err, &mismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSignIn(c *gin.Context) {
	if err := s.auth.InitiateSignIn(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSignOut(c *gin.Context) {
	if err := s.auth.SignOut(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSession(c *gin.Context) {
	token, err := s.auth.Token(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"signed_in": token != ""}
	if expiry := s.auth.SessionExpiry(); !expiry.IsZero() && token != "" {
		resp["expires_at"] = expiry.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCapture(c *gin.Context) {
	if s.capturer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "capture is not configured"})
		return
	}

	id, err := s.capturer.TriggerCapture(c.Request.Context())
	if err != nil {
		var busy *apperrors.ErrCaptureInProgress
		if errors.As(err, &busy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) handleRecentCaptures(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"captures": []store.CaptureRecord{}})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}

	records, err := s.journal.RecentCaptures(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"captures": records})
}

func (s *Server) handlePoll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pollTimeout)
	defer cancel()

	ev, ok := s.hub.Poll(ctx)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type provideTokenRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Token     string `json:"token"`
}

func (s *Server) handleProvideToken(c *gin.Context) {
	var req provideTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required"})
		return
	}
	if !s.hub.ProvideToken(req.RequestID, req.Token) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such pending token request"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Run starts the bridge on the configured loopback address and blocks
// until shutdown.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BridgeHost, s.cfg.BridgePort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting bridge server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the bridge server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down bridge server")
	return s.httpServer.Shutdown(ctx)
}
