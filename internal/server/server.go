package server

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luminascale/enhance-api/internal/auth"
	"github.com/luminascale/enhance-api/internal/config"
	"github.com/luminascale/enhance-api/internal/enhance"
	"github.com/luminascale/enhance-api/internal/gate"
	"github.com/luminascale/enhance-api/internal/quota"
	"github.com/luminascale/enhance-api/internal/sizing"
)

// ServiceName appears in health and info payloads.
const ServiceName = "Luminascale Enhance API"

// Version is injected by the cmd layer at startup.
var Version = "dev"

// Server represents the API server
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	router    *gin.Engine
	validator *auth.Validator
	ledger    *quota.Ledger
	gate      *gate.Gate
	policy    sizing.Policy
	enhancer  enhance.Enhancer
	tally     usageTally
}

// usageTally is the in-process request accounting surfaced by /stats.
// Monitoring only; the quota ledger is the source of truth for budgets.
type usageTally struct {
	served   atomic.Int64
	rejected atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// New creates a new server instance
func New(cfg *config.Config, logger *zap.Logger, ledger *quota.Ledger, enhancer enhance.Enhancer) *Server {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    gin.New(),
		validator: auth.NewValidator(cfg.Security.APIKey, cfg.Security.KeyName),
		ledger:    ledger,
		gate:      gate.New(cfg.Upload.MaxFileSize, cfg.Upload.MinFileSize, cfg.Upload.AllowedTypes),
		policy: sizing.Policy{
			MaxInputPixels: cfg.Sizing.MaxInputPixels,
			MinHeight:      cfg.Sizing.MinHeight,
		},
		enhancer: enhancer,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.serviceInfo)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/stats", s.getStats)

	s.router.POST("/enhance", s.enhanceImage)
}
