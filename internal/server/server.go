package server

import (
	"github.com/gin-gonic/gin"
	"github.com/kanopusdev/aurelis/internal/analytics"
	"github.com/kanopusdev/aurelis/internal/cache"
	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"go.uber.org/zap"
)

// Server exposes the orchestrator as a local OpenAI-compatible endpoint so
// editors and tools can talk to Aurelis over HTTP.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	router  *gin.Engine
	orch    *orchestrator.Orchestrator
	cache   *cache.Cache
	tracker *analytics.Tracker
}

// New creates a new server instance. cache and tracker may be nil.
func New(cfg *config.Config, logger *zap.Logger, orch *orchestrator.Orchestrator, c *cache.Cache, tracker *analytics.Tracker) *Server {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  gin.New(),
		orch:    orch,
		cache:   c,
		tracker: tracker,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Server.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/status", s.getStatus)

	api := s.router.Group("/v1")
	if s.cfg.Security.APIKey != "" {
		api.Use(s.apiKeyAuthMiddleware())
	}
	{
		api.POST("/chat/completions", s.chatCompletions)
		api.GET("/models", s.listModels)
	}
}
