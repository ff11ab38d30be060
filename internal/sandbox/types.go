package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"go.uber.org/zap"
)

// ErrPageClosed is returned for work submitted to a page that has been closed
var ErrPageClosed = errors.New("page closed")

// HostOrigin labels work submitted by the host rather than an extension
const HostOrigin = "host"

// Config defines page runtime limits
type Config struct {
	InjectTimeout   time.Duration // Bound on one top-level script run
	CallbackTimeout time.Duration // Bound on one timer, listener or watcher callback
	WaitInterval    time.Duration // Default document.waitFor poll interval
	WaitAttempts    int           // Default document.waitFor attempts before giving up
	MaxCallStack    int           // goja call stack limit
	CallQueue       int           // Pending fire-and-forget capability calls per page
}

// DefaultConfig returns the default page limits
func DefaultConfig() Config {
	return Config{
		InjectTimeout:   5 * time.Second,
		CallbackTimeout: time.Second,
		WaitInterval:    500 * time.Millisecond,
		WaitAttempts:    40,
		MaxCallStack:    1024,
		CallQueue:       256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InjectTimeout <= 0 {
		c.InjectTimeout = d.InjectTimeout
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = d.CallbackTimeout
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = d.WaitInterval
	}
	if c.WaitAttempts <= 0 {
		c.WaitAttempts = d.WaitAttempts
	}
	if c.MaxCallStack <= 0 {
		c.MaxCallStack = d.MaxCallStack
	}
	if c.CallQueue <= 0 {
		c.CallQueue = d.CallQueue
	}
	return c
}

// Options wires a page to the host
type Options struct {
	Config   Config
	Registry *bridge.Registry // capabilities exposed as the frozen bridge global; nil exposes none
	Prefs    prefs.Store      // backing store for localStorage; nil keeps it in memory
	Console  func(LogEntry)   // receives every console line
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics

	URL      string                 // reported by location.href
	Navigate func(url string) error // location.assign, location.replace and href writes
	Open     func(url string) error // window.open; the page never gets a new window
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`   // log, info, warn, error, debug
	Message string    `json:"message"` // markup stripped
	Origin  string    `json:"origin"`  // extension that produced it
	Page    string    `json:"page"`
	Time    time.Time `json:"time"`
}

// Mutation represents one DOM modification
type Mutation struct {
	Type     string `json:"type"`     // attribute, style, text, html, childList
	Target   string `json:"target"`   // tag#id.class of the changed element
	Property string `json:"property"` // attribute or style property name
	Value    string `json:"value"`
}

// KeyEvent is host keyboard input delivered to the page
type KeyEvent struct {
	Type   string `json:"type" binding:"required,oneof=keydown keyup"`
	Key    string `json:"key" binding:"required"`
	Code   string `json:"code"`
	Alt    bool   `json:"alt"`
	Ctrl   bool   `json:"ctrl"`
	Shift  bool   `json:"shift"`
	Meta   bool   `json:"meta"`
	Repeat bool   `json:"repeat"`
}

// Stats counts page activity
type Stats struct {
	Jobs         int64 `json:"jobs"`
	Injected     int64 `json:"injected"`
	ScriptErrors int64 `json:"script_errors"`
	TimersFired  int64 `json:"timers_fired"`
	WaitGiveUps  int64 `json:"wait_give_ups"`
	CallsDropped int64 `json:"calls_dropped"`
}

// ScriptError is a failure raised while running page code
type ScriptError struct {
	Origin      string
	Message     string
	Interrupted bool // stopped by a timeout or cancellation rather than a throw
	Err         error
}

func (e *ScriptError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("%s: interrupted: %s", e.Origin, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Origin, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
