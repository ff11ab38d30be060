package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/api/middleware"
	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/diagnostics"
	"github.com/GriffinCanCode/modhost/internal/extension"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/server"
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/GriffinCanCode/modhost/internal/supervisor"
	"github.com/GriffinCanCode/modhost/internal/window"
)

const shutdownTimeout = 5 * time.Second

// Host owns every long-lived component
type Host struct {
	cfg    *config.Config
	logger *logging.Logger
	log    *zap.Logger

	metrics    *monitoring.Metrics
	supervisor *supervisor.Supervisor
	hub        *diagnostics.Hub
	window     *window.Window
	registry   *bridge.Registry
	prefs      prefs.Store
	injector   *extension.Injector
	server     *server.Server

	opener window.Opener
	cycles sync.WaitGroup
	addr   string
	ready  chan struct{}
}

// Option configures a Host
type Option func(*Host)

// WithOpener replaces the OS browser opener used for allow-listed URLs
func WithOpener(o window.Opener) Option {
	return func(h *Host) {
		h.opener = o
	}
}

// New wires the host. Nothing runs until Run.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	h := &Host{
		cfg:     cfg,
		logger:  logger,
		log:     logger.Component("host"),
		metrics: monitoring.NewMetrics(),
		hub:     diagnostics.NewHub(),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.supervisor = supervisor.New(supervisor.Config{
		Command:      cfg.Worker.Command,
		Args:         cfg.Worker.Args,
		Dir:          cfg.Worker.Dir,
		WriteTimeout: cfg.Worker.WriteTimeout,
		StopGrace:    cfg.Worker.StopGrace,
		GateFailures: cfg.Worker.GateFailures,
		GateTimeout:  cfg.Worker.GateTimeout,
	}, logger.Component("supervisor"), supervisor.WithMetrics(h.metrics))

	store, err := prefs.OpenFile(cfg.Prefs.Path, 0, logger.Component("prefs"))
	if err != nil {
		h.log.Warn("preferences unavailable, keeping them in memory",
			zap.String("path", cfg.Prefs.Path), zap.Error(err))
		h.prefs = prefs.NewMemoryStore()
	} else {
		h.prefs = store
	}

	winOpts := []window.Option{window.WithPrefs(h.prefs), window.WithMetrics(h.metrics)}
	if h.opener != nil {
		winOpts = append(winOpts, window.WithOpener(h.opener))
	}
	h.window = window.New(window.Config{
		ContentPath:   cfg.Window.ContentPath,
		AllowExternal: cfg.Window.AllowExternal,
		Fullscreen:    cfg.Window.Fullscreen,
		Sandbox: sandbox.Config{
			InjectTimeout:   cfg.Sandbox.InjectTimeout,
			CallbackTimeout: cfg.Sandbox.CallbackTimeout,
			WaitInterval:    cfg.Sandbox.WaitInterval,
			WaitAttempts:    cfg.Sandbox.WaitAttempts,
		},
	}, h.hub, logger.Component("window"), winOpts...)

	h.registry, err = bridge.New(h.window, h.supervisor, bridge.Config{
		AppRoot:   cfg.Bridge.AppRoot,
		ImageExts: cfg.Bridge.ImageExts,
	}, logger.Component("bridge"), h.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build capability bridge: %w", err)
	}
	h.window.SetRegistry(h.registry)

	h.injector = extension.NewInjector(extension.Config{
		Dir:    cfg.Extensions.Dir,
		Suffix: cfg.Extensions.Suffix,
	}, logger.Component("extension"), h.metrics)

	if cfg.Server.Enabled {
		srvCfg := server.Config{
			Addr:  cfg.Server.Addr(),
			CORS:  middleware.DefaultCORSConfig(),
			Debug: cfg.Logging.Development,
		}
		if cfg.RateLimit.Enabled {
			rl := middleware.DefaultRateLimitConfig()
			rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
			rl.Burst = cfg.RateLimit.Burst
			srvCfg.RateLimit = &rl
		}
		h.server = server.New(srvCfg, server.Deps{
			Supervisor: h.supervisor,
			Window:     h.window,
			Injector:   h.injector,
			Hub:        h.hub,
			Metrics:    h.metrics,
			Logger:     logger.Component("server"),
		})
	}

	return h, nil
}

// Run starts the host and blocks until ctx is done or the window quits
func (h *Host) Run(ctx context.Context) error {
	h.log.Info("host starting",
		zap.String("content", h.cfg.Window.ContentPath),
		zap.String("mods", h.cfg.Extensions.Dir),
		zap.String("worker", h.cfg.Worker.Command),
	)

	if !h.supervisor.Start() {
		h.log.Warn("continuing without telemetry worker", zap.String("error", h.supervisor.Info().LastError))
	}

	if inv, err := h.injector.Survey(); err != nil {
		h.log.Warn("extension survey failed", zap.Error(err))
	} else if !inv.Exists {
		h.log.Warn("extension directory missing", zap.String("dir", inv.Dir))
	} else {
		h.log.Info("extension directory",
			zap.String("dir", inv.Dir),
			zap.Int("modules", inv.Modules),
			zap.Int("nested", inv.Nested),
		)
	}

	// closing the previous page cancels its cycle through page.Context
	h.window.OnContentReady(func(page *sandbox.Page) {
		h.cycles.Add(1)
		go func() {
			defer h.cycles.Done()
			h.injector.Run(page.Context(), page)
		}()
	})

	if err := h.window.Load(ctx); err != nil {
		if !errors.Is(err, window.ErrContentNotFound) {
			h.shutdown()
			return fmt.Errorf("failed to load content: %w", err)
		}
		h.log.Warn("content not found, showing error page", zap.String("content", h.cfg.Window.ContentPath))
	}

	if h.server != nil {
		addr, err := h.server.Start()
		if err != nil {
			h.log.Error("control server unavailable", zap.Error(err))
		} else {
			h.addr = addr
		}
	}
	close(h.ready)

	select {
	case <-ctx.Done():
		h.log.Info("host stopping", zap.String("reason", ctx.Err().Error()))
	case <-h.window.Done():
		h.log.Info("host stopping", zap.String("reason", "window closed"))
	}

	h.shutdown()
	return nil
}

func (h *Host) shutdown() {
	h.supervisor.Stop()
	waitCtx, cancel := context.WithTimeout(context.Background(), h.cfg.Worker.StopGrace+time.Second)
	if err := h.supervisor.Wait(waitCtx); err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
		h.log.Warn("worker did not exit in time", zap.Error(err))
	}
	cancel()

	h.window.Quit()
	h.cycles.Wait()

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := h.server.Shutdown(ctx); err != nil {
			h.log.Warn("control server shutdown", zap.Error(err))
		}
		cancel()
	}

	if err := h.prefs.Flush(); err != nil {
		h.log.Error("failed to save preferences", zap.Error(err))
	}

	h.log.Info("host stopped")
	_ = h.logger.Sync()
}

// Ready is closed once content is loaded and the control server is up
func (h *Host) Ready() <-chan struct{} { return h.ready }

// Addr returns the control server address. It is empty before Ready and when
// the server is disabled.
func (h *Host) Addr() string { return h.addr }

// Window returns the display surface
func (h *Host) Window() *window.Window { return h.window }

// Supervisor returns the worker supervisor
func (h *Host) Supervisor() *supervisor.Supervisor { return h.supervisor }

// Injector returns the extension injector
func (h *Host) Injector() *extension.Injector { return h.injector }

// Metrics returns the host metrics
func (h *Host) Metrics() *monitoring.Metrics { return h.metrics }
