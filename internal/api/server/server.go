package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craterhub/downloads-accounting/internal/api/middleware"
	"github.com/craterhub/downloads-accounting/internal/api/rest"
	"github.com/craterhub/downloads-accounting/internal/config"
	"github.com/craterhub/downloads-accounting/internal/logger"
)

// Server wraps the HTTP server serving the accounting API
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

// New creates a new API server
func New(cfg config.ServerConfig, debug bool, handler rest.Handler, authCfg middleware.AuthConfig) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())

	rest.SetupRoutes(router, handler, authCfg)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
	}
}

// Start begins serving requests. It blocks until the server stops.
func (s *Server) Start() error {
	logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
