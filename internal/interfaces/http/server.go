// Package http provides the HTTP adapter over the storage core. It is a
// thin layer that translates requests into manager and expense-core calls;
// the core itself exposes no wire protocol.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Dajungeks/yumold-erp-system-sub000/internal/backend"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP adapter over the backend selector.
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates the HTTP server over the given selector.
func NewServer(config ServerConfig, selector *backend.Selector, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(selector, logger),
		logger:   logger,
	}
	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)

	api := s.router.Group("/api/v1")
	{
		requests := api.Group("/expense/requests")
		{
			requests.GET("", s.handlers.ListRequests)
			requests.POST("", s.handlers.CreateRequest)
			requests.GET("/:id", s.handlers.GetRequest)
			requests.POST("/:id/cancel", s.handlers.CancelRequest)
			requests.DELETE("/:id", s.handlers.DeleteRequest)
		}

		approvals := api.Group("/expense/approvals")
		{
			approvals.GET("/pending", s.handlers.PendingApprovals)
			approvals.POST("/:id/decide", s.handlers.DecideApproval)
		}

		entities := api.Group("/entities/:entity")
		{
			entities.GET("", s.handlers.ListEntity)
			entities.POST("", s.handlers.AddEntity)
			entities.GET("/:id", s.handlers.GetEntity)
			entities.PUT("/:id", s.handlers.UpdateEntity)
			entities.DELETE("/:id", s.handlers.DeleteEntity)
		}

		system := api.Group("/system")
		{
			system.GET("/backend", s.handlers.BackendStatus)
			system.PUT("/backend", s.handlers.SetBackend)
			system.GET("/pool", s.handlers.PoolStats)
		}
	}
}

// Start begins listening; it blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
