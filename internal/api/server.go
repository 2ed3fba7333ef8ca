package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/version"
)

// Server is the trail API server.
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	startTime  time.Time
}

// NewServer creates a new API server instance
func NewServer(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API config: %w", err)
	}
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		config:    config,
		startTime: time.Now(),
	}, nil
}

// NewServerWithListener creates a server that serves on an already bound
// listener.
func NewServerWithListener(config *Config, listener net.Listener) (*Server, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}
	s, err := NewServer(config)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	return s, nil
}

// Handler builds the gin engine with middleware and routes.
func (s *Server) Handler() http.Handler {
	router := gin.New()

	if !logging.IsConfiguredByCLI() {
		gin.DefaultWriter = logging.NewLevelWriter("DEBUG", "gin")
		gin.DefaultErrorWriter = logging.NewLevelWriter("ERROR", "gin")
	}

	router.Use(s.loggingMiddleware())
	router.Use(s.metricsMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(gin.Recovery())

	s.setupRoutes(router)
	return router
}

// Start serves the API in the background.
func (s *Server) Start() error {
	if s.listener == nil {
		addr := net.JoinHostPort(s.config.BindAddr, fmt.Sprintf("%d", s.config.BindPort))
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to bind to %s: %w", addr, err)
		}
		s.listener = listener
	}

	logging.Info("API: Starting HTTP server on %s", s.listener.Addr())

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("API: HTTP server failed: %v", err)
		}
	}()

	logging.Success("API: HTTP server started on %s", s.listener.Addr())
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("API: Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) version() string {
	return version.TraildVersion
}
