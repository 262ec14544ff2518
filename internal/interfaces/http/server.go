// Package http exposes the upload board, the claims table and the analytics dashboard over gin.
// Handlers only translate requests into application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc"

	"github.com/garyjia/fraudguard/internal/application/service"
	"github.com/garyjia/fraudguard/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DocumentInspector turns an uploaded file into a document ready for submission
type DocumentInspector interface {
	Inspect(name string, content []byte) entity.Document
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// BatchDrainTimeout bounds the wait for running upload batches on Stop.
	// Batches still running afterwards are cancelled and their remaining files fail.
	BatchDrainTimeout time.Duration
	MaxUploadSize     int64
	AllowedOrigins    []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "0.0.0.0",
		Port:              8080,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		BatchDrainTimeout: 65 * time.Second,
		MaxUploadSize:     50 << 20,
		AllowedOrigins:    []string{"*"},
	}
}

// Services groups the application services the API serves
type Services struct {
	Uploads   *service.UploadOrchestrator
	Inspector DocumentInspector
	Claims    *service.ClaimsService
	Analytics *service.AnalyticsService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, config.MaxUploadSize, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware(s.config.AllowedOrigins))
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware lets the browser UI call the API from another origin
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && origins[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		uploads := api.Group("/uploads")
		uploads.POST("", h.SubmitUploads)
		uploads.GET("", h.ListUploads)
		uploads.GET("/batches/:id", h.GetBatch)
		uploads.GET("/:id", h.GetUpload)

		claims := api.Group("/claims")
		claims.GET("", h.ListClaims)
		claims.GET("/locations", h.ListLocations)
		claims.GET("/export", h.ExportClaims)
		claims.GET("/:id", h.GetClaim)

		api.GET("/analytics", h.GetAnalytics)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop stops accepting requests, then waits for running batches up to BatchDrainTimeout.
// Batches still running are cancelled so every entry resolves before Stop returns.
func (s *Server) Stop() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if s.httpServer != nil {
		s.logger.Info("Stopping HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := s.httpServer.Shutdown(ctx)
		cancel()
		if err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
			return err
		}
	}

	drain := s.config.BatchDrainTimeout
	if drain <= 0 {
		drain = timeout
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drain)
	defer cancelDrain()

	if err := s.handlers.WaitForBatches(drainCtx); err != nil {
		s.logger.Error("Cancelling upload batches still running at shutdown", "error", err)
		s.handlers.CancelBatches()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.handlers.WaitForBatches(ctx); err != nil {
			s.logger.Error("Upload batches did not stop after cancellation", "error", err)
			return err
		}
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handlers returns the request handlers (for testing)
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// batchRunner runs upload batches after the request that started them returns
type batchRunner struct {
	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newBatchRunner() *batchRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &batchRunner{ctx: ctx, cancel: cancel}
}

func (r *batchRunner) Go(fn func(ctx context.Context)) {
	r.wg.Go(func() { fn(r.ctx) })
}

func (r *batchRunner) Cancel() {
	r.cancel()
}

func (r *batchRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
