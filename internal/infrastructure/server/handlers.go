package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/GriffinCanCode/modhost/internal/window"
)

const keyTimeout = 2 * time.Second

type handlers struct {
	deps    Deps
	started time.Time
}

func (h *handlers) pageID() string {
	if p := h.deps.Window.Page(); p != nil {
		return p.ID().String()
	}
	return ""
}

func (h *handlers) health(c *gin.Context) {
	info := h.deps.Supervisor.Info()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"worker":        info.State,
		"page":          h.pageID(),
		"showing_error": h.deps.Window.ShowingError(),
		"uptime":        time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handlers) status(c *gin.Context) {
	resp := gin.H{
		"worker":      h.deps.Supervisor.Info(),
		"page":        h.pageID(),
		"fullscreen":  h.deps.Window.IsFullscreen(),
		"diagnostics": h.deps.Window.DiagnosticsOpen(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()
	if stats, err := h.deps.Supervisor.Stats(ctx); err == nil {
		resp["process"] = stats
	}

	if p := h.deps.Window.Page(); p != nil {
		resp["sandbox"] = p.Stats()
	}
	if cycle, ok := h.deps.Injector.Last(); ok {
		resp["last_cycle"] = cycle
	}
	if h.deps.Metrics != nil {
		resp["metrics"] = h.deps.Metrics.Snapshot()
	}
	if h.deps.Hub != nil {
		sent, dropped := h.deps.Hub.Stats()
		resp["viewers"] = gin.H{
			"count":   h.deps.Hub.Subscribers(),
			"sent":    sent,
			"dropped": dropped,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handlers) extensions(c *gin.Context) {
	mods, err := h.deps.Injector.Discover()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.deps.Injector.Survey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": mods, "inventory": inv})
}

func (h *handlers) reload(c *gin.Context) {
	err := h.deps.Window.Reload(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"reloaded": true, "page": h.pageID()})
	case errors.Is(err, window.ErrContentNotFound):
		// the error page is up; the window is still usable
		c.JSON(http.StatusOK, gin.H{"reloaded": true, "page": h.pageID(), "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *handlers) key(c *gin.Context) {
	var ev sandbox.KeyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), keyTimeout)
	defer cancel()

	consumed, err := h.deps.Window.DispatchKey(ctx, ev)
	if err != nil {
		if errors.Is(err, window.ErrNoPage) || errors.Is(err, sandbox.ErrPageClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.deps.Logger.Warn("key dispatch failed", zap.String("key", ev.Key), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"consumed": consumed, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed})
}

func (h *handlers) quit(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"quitting": true})
	go h.deps.Window.Quit()
}

func (h *handlers) toggleDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"open": h.deps.Window.ToggleDiagnosticView()})
}
