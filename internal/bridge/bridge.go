package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/telemetry"
	"go.uber.org/zap"
)

// Stable capability names exposed to the page
const (
	CapQuit                 = "quit"
	CapIsFullscreen         = "isFullscreen"
	CapSetFullscreen        = "setFullscreen"
	CapOnFullscreenChange   = "onFullscreenChange"
	CapReadImages           = "readImages"
	CapToggleDiagnosticView = "toggleDiagnosticView"
	CapSendTelemetry        = "sendTelemetry"
)

// Window is the part of the display surface the bridge may drive
type Window interface {
	Quit()
	IsFullscreen() bool
	SetFullscreen(on bool)
	// OnFullscreenChange registers fn and returns a func that removes it
	OnFullscreenChange(fn func(on bool)) (remove func())
	ToggleDiagnosticView() bool
}

// Sender forwards telemetry to the worker
type Sender interface {
	Send(ev telemetry.Event) bool
}

// Config holds the fixed inputs of the privileged operations
type Config struct {
	AppRoot   string
	ImageExts []string
}

// New builds the closed capability set over the given window and sender
func New(win Window, sender Sender, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	assets := NewAssets(cfg.AppRoot, cfg.ImageExts, logger)

	return NewRegistry(
		WithMiddleware(observe(logger, metrics)),

		WithCapability(CapQuit, FireAndForget, nil,
			"terminate the display surface and the worker",
			func(ctx context.Context, _ []any) (any, error) {
				win.Quit()
				return nil, nil
			}),

		WithCapability(CapIsFullscreen, Sync, nil,
			"report whether the display is fullscreen",
			func(ctx context.Context, _ []any) (any, error) {
				return win.IsFullscreen(), nil
			}),

		WithCapability(CapSetFullscreen, FireAndForget, []ArgKind{ArgBool},
			"enter or leave fullscreen",
			func(ctx context.Context, args []any) (any, error) {
				win.SetFullscreen(args[0].(bool))
				return nil, nil
			}),

		WithCapability(CapOnFullscreenChange, FireAndForget, []ArgKind{ArgFunc},
			"call back with the new fullscreen state on every change",
			func(ctx context.Context, args []any) (any, error) {
				cb := args[0].(Callback)
				remove := win.OnFullscreenChange(func(on bool) { cb(on) })
				// the listener lives as long as the calling page
				context.AfterFunc(ctx, remove)
				return nil, nil
			}),

		WithCapability(CapReadImages, Async, []ArgKind{ArgString},
			"list allow-listed image files under a path relative to the app root",
			func(ctx context.Context, args []any) (any, error) {
				return assets.ReadImages(args[0].(string)), nil
			}),

		WithCapability(CapToggleDiagnosticView, FireAndForget, nil,
			"open or close the diagnostic view",
			func(ctx context.Context, _ []any) (any, error) {
				open := win.ToggleDiagnosticView()
				logger.Debug("diagnostic view toggled", zap.Bool("open", open))
				return nil, nil
			}),

		WithCapability(CapSendTelemetry, FireAndForget, []ArgKind{ArgString, ArgString, ArgNumber},
			"forward one key event to the worker",
			func(ctx context.Context, args []any) (any, error) {
				ts, _ := asFloat(args[2])
				ev, err := telemetry.New(args[0].(string), telemetry.Action(args[1].(string)), ts)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCall, CapSendTelemetry, err)
				}
				sender.Send(ev)
				return nil, nil
			}),
	)
}

// observe logs and counts every capability call that passed validation
func observe(logger *zap.Logger, metrics *monitoring.Metrics) Middleware {
	return func(name string, next Handler) Handler {
		return func(ctx context.Context, args []any) (any, error) {
			start := time.Now()
			out, err := next(ctx, args)

			result := "ok"
			switch {
			case errors.Is(err, ErrMalformedCall):
				result = "malformed"
			case err != nil:
				result = "error"
			}
			metrics.RecordCapabilityCall(name, result)

			if err != nil {
				logger.Warn("capability call failed",
					zap.String("capability", name),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
			}
			return out, err
		}
	}
}
