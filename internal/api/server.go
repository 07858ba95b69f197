package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/picmigrate/picmigrate/internal/config"
	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/history"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/migrate"
	"github.com/picmigrate/picmigrate/internal/oauth"
	"github.com/picmigrate/picmigrate/internal/tokenstore"
)

// Server is the operator-facing HTTP surface: the OAuth callback, batch
// submission, connection status, reset and log download.
type Server struct {
	router       *gin.Engine
	config       config.ServerConfig
	apiConfig    config.APIConfig
	authorizer   *oauth.Authorizer
	tokens       *tokenstore.Store
	orchestrator *migrate.Orchestrator
	history      *history.Store
	journal      *logging.Journal
	metrics      *metrics.Metrics
	logger       *logging.Logger
	httpServer   *http.Server

	// One batch at a time; the orchestrator is sequential by design.
	batchMu sync.Mutex
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the API server and wires every route.
func NewServer(
	cfg config.ServerConfig,
	apiCfg config.APIConfig,
	authorizer *oauth.Authorizer,
	tokens *tokenstore.Store,
	orchestrator *migrate.Orchestrator,
	hist *history.Store,
	journal *logging.Journal,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		router:       gin.New(),
		config:       cfg,
		apiConfig:    apiCfg,
		authorizer:   authorizer,
		tokens:       tokens,
		orchestrator: orchestrator,
		history:      hist,
		journal:      journal,
		metrics:      m,
		logger:       logger,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()

	if len(apiCfg.APIKeys) > 0 {
		headerName := apiCfg.HeaderName
		if headerName == "" {
			headerName = DefaultAPIKeyHeader
		}
		logger.Info("API key authentication enabled",
			"header", headerName,
			"keys", MaskAPIKeys(apiCfg.APIKeys),
		)
	}
	return server
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

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Unauthenticated: metrics, health and the OAuth surface. The callback
	// must be reachable by the browser redirect.
	s.router.GET("/", s.handleIndex)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/oauth/callback", s.handleOAuthCallback)
	s.router.GET("/oauth/authorize/:account", s.handleAuthorizeRedirect)

	authMiddleware := APIKeyAuth(s.apiConfig.APIKeys, s.apiConfig.HeaderName, s.logger)

	operator := s.router.Group("")
	operator.Use(authMiddleware)
	{
		operator.GET("/status", s.handleStatus)
		operator.POST("/migrations", s.handleRunBatch)
		operator.GET("/migrations", s.handleListBatches)
		operator.GET("/migrations/:id", s.handleGetBatch)
		operator.POST("/reset", s.handleReset)
		operator.GET("/log", s.handleLog)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// ShutdownWithTimeout gracefully shuts down the server, waiting at most
// timeout for in-flight requests to finish.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())
	if s.httpServer == nil {
		return nil
	}
	if err := GracefulShutdown(s.httpServer, timeout); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
