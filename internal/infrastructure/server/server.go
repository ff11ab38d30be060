package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/api/middleware"
	"github.com/GriffinCanCode/modhost/internal/api/ws"
	"github.com/GriffinCanCode/modhost/internal/diagnostics"
	"github.com/GriffinCanCode/modhost/internal/extension"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/GriffinCanCode/modhost/internal/supervisor"
)

// Supervisor is the worker view the server reports on
type Supervisor interface {
	Info() supervisor.Info
	Stats(ctx context.Context) (supervisor.ProcessStats, error)
}

// Window is the display surface the server drives
type Window interface {
	Page() *sandbox.Page
	ShowingError() bool
	IsFullscreen() bool
	DiagnosticsOpen() bool
	ToggleDiagnosticView() bool
	Reload(ctx context.Context) error
	DispatchKey(ctx context.Context, ev sandbox.KeyEvent) (bool, error)
	Quit()
}

// Injector reports extension cycles
type Injector interface {
	Last() (extension.Cycle, bool)
	Discover() ([]extension.Descriptor, error)
	Survey() (extension.Inventory, error)
}

// Config holds server settings
type Config struct {
	Addr      string
	CORS      middleware.CORSConfig
	RateLimit *middleware.RateLimitConfig // nil disables limiting
	Debug     bool
}

// Deps are the components behind the routes
type Deps struct {
	Supervisor Supervisor
	Window     Window
	Injector   Injector
	Hub        *diagnostics.Hub
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Server is the local control and diagnostics server
type Server struct {
	cfg     Config
	deps    Deps
	router  *gin.Engine
	http    *http.Server
	logger  *zap.Logger
	started time.Time
}

// New builds the router
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(logger))
	router.Use(monitoring.Middleware(deps.Metrics))
	router.Use(middleware.CORS(cfg.CORS))
	if cfg.RateLimit != nil {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		router:  router,
		logger:  logger,
		started: time.Now(),
	}

	h := &handlers{deps: deps, started: s.started}
	stream := ws.NewHandler(deps.Hub, logger.Named("ws"), deps.Metrics, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.AllowedOrigin(cfg.CORS, origin)
	})

	router.GET("/health", h.health)
	router.GET("/status", h.status)
	router.GET("/extensions", h.extensions)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	router.POST("/reload", h.reload)
	router.POST("/input/key", h.key)
	router.POST("/quit", h.quit)

	router.POST("/diagnostics/toggle", h.toggleDiagnostics)
	router.GET("/diagnostics/stream", stream.HandleConnection)

	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	addr := ln.Addr().String()
	s.logger.Info("control server listening", zap.String("addr", addr))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server stopped", zap.Error(err))
		}
	}()
	return addr, nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down control server")
	return s.http.Shutdown(ctx)
}
