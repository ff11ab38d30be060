package window

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/diagnostics"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/GriffinCanCode/modhost/internal/shared/textenc"
	"go.uber.org/zap"
)

var (
	// ErrNavigationBlocked is returned for every in-window navigation
	ErrNavigationBlocked = errors.New("navigation blocked")
	// ErrContentNotFound means neither content path exists; the error page is shown
	ErrContentNotFound = errors.New("content file not found")
	// ErrNoPage is returned when input arrives before any content has loaded
	ErrNoPage = errors.New("no page loaded")
	// ErrClosed is returned after Quit
	ErrClosed = errors.New("window closed")
)

const errorPage = `<!DOCTYPE html>
<html><head><title>Error</title></head>
<body><h1>Error: Game File Not Found</h1><p>%s</p></body></html>`

// Config defines the display surface
type Config struct {
	ContentPath   string
	AllowExternal []string
	Fullscreen    bool
	Sandbox       sandbox.Config
}

// ReadyFunc is called with each page whose content loaded
type ReadyFunc func(page *sandbox.Page)

// Window is the headless display surface: it owns the current page, the
// fullscreen state and the navigation policy.
type Window struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	hub     *diagnostics.Hub
	prefs   prefs.Store
	opener  Opener

	// loadMu serializes page swaps so at most one live page exists
	loadMu sync.Mutex

	mu          sync.Mutex
	registry    *bridge.Registry
	page        *sandbox.Page
	contentPath string
	errorShown  bool
	fullscreen  bool
	fsListeners map[int]func(bool)
	fsNext      int
	ready       []ReadyFunc
	closed      bool

	done     chan struct{}
	quitOnce sync.Once
}

// Option configures a Window
type Option func(*Window)

// WithOpener replaces the external URL opener
func WithOpener(o Opener) Option {
	return func(w *Window) {
		w.opener = o
	}
}

// WithPrefs backs page localStorage with s
func WithPrefs(s prefs.Store) Option {
	return func(w *Window) {
		w.prefs = s
	}
}

// WithMetrics records page metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(w *Window) {
		w.metrics = m
	}
}

// New creates a window. Nothing is loaded until Load.
func New(cfg Config, hub *diagnostics.Hub, logger *zap.Logger, opts ...Option) *Window {
	if cfg.ContentPath == "" {
		cfg.ContentPath = "index.html"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = diagnostics.NewHub()
	}

	w := &Window{
		cfg:         cfg,
		logger:      logger,
		hub:         hub,
		opener:      SystemOpener,
		fullscreen:  cfg.Fullscreen,
		fsListeners: make(map[int]func(bool)),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.prefs == nil {
		w.prefs = prefs.NewMemoryStore()
	}
	return w
}

// SetRegistry installs the capabilities exposed to pages loaded from now on
func (w *Window) SetRegistry(r *bridge.Registry) {
	w.mu.Lock()
	w.registry = r
	w.mu.Unlock()
}

// OnContentReady registers fn for every successful content load
func (w *Window) OnContentReady(fn ReadyFunc) {
	w.mu.Lock()
	w.ready = append(w.ready, fn)
	w.mu.Unlock()
}

// Load starts a new content-load cycle. The previous page is closed first,
// which abandons anything its scripts still had scheduled. When the content
// file is missing an error page is shown, ErrContentNotFound is returned and
// no ready handler runs. Concurrent loads run one after another; ready
// handlers run after the swap and may themselves call Load.
func (w *Window) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	page, path, err := w.swapPage()
	if err != nil {
		return err
	}

	w.logger.Info("content loaded",
		zap.String("path", path),
		zap.String("page", page.ID().String()),
	)
	w.mu.Lock()
	ready := slices.Clone(w.ready)
	w.mu.Unlock()
	for _, fn := range ready {
		fn(page)
	}
	return nil
}

// swapPage closes the current page and installs a fresh one built from the
// content file, or the error page when it is missing.
func (w *Window) swapPage() (*sandbox.Page, string, error) {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	path, doc, err := w.resolveContent()
	missing := errors.Is(err, ErrContentNotFound)
	if err != nil && !missing {
		return nil, "", err
	}
	if missing {
		w.logger.Error("content file not found, showing error page",
			zap.String("content_path", w.cfg.ContentPath),
		)
		doc = fmt.Sprintf(errorPage, html.EscapeString(w.cfg.ContentPath))
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, "", ErrClosed
	}
	old := w.page
	w.page = nil
	registry := w.registry
	w.mu.Unlock()

	if old != nil {
		old.Close()
	}

	opts := sandbox.Options{
		Config:   w.cfg.Sandbox,
		Prefs:    w.prefs,
		Console:  w.hub.Publish,
		Logger:   w.logger,
		Metrics:  w.metrics,
		Navigate: w.Navigate,
		Open:     w.OpenWindow,
	}
	if !missing {
		// the error page gets no capabilities
		opts.Registry = registry
		opts.URL = "file://" + filepath.ToSlash(path)
	}
	page, perr := sandbox.NewPage(doc, opts)
	if perr != nil {
		return nil, "", fmt.Errorf("failed to build page: %w", perr)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		page.Close()
		return nil, "", ErrClosed
	}
	w.page = page
	w.contentPath = path
	w.errorShown = missing
	w.mu.Unlock()

	if missing {
		return nil, "", err
	}
	return page, path, nil
}

// Reload repeats Load for the same content
func (w *Window) Reload(ctx context.Context) error {
	w.logger.Info("reloading content")
	return w.Load(ctx)
}

// resolveContent tries ContentPath, then the same name one directory up
func (w *Window) resolveContent() (string, string, error) {
	candidates := []string{w.cfg.ContentPath}
	if !filepath.IsAbs(w.cfg.ContentPath) {
		candidates = append(candidates, filepath.Join("..", w.cfg.ContentPath))
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		doc, err := textenc.ReadFile(c)
		if err != nil {
			return "", "", fmt.Errorf("failed to read content %s: %w", c, err)
		}
		abs, aerr := filepath.Abs(c)
		if aerr != nil {
			abs = c
		}
		return abs, doc, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrContentNotFound, w.cfg.ContentPath)
}

// Page returns the current page, or nil
func (w *Window) Page() *sandbox.Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page
}

// ShowingError reports whether the error page is displayed
func (w *Window) ShowingError() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errorShown
}

// IsFullscreen reports the fullscreen state
func (w *Window) IsFullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullscreen
}

// SetFullscreen changes the fullscreen state. Listeners and the page hear
// about actual changes only.
func (w *Window) SetFullscreen(on bool) {
	w.mu.Lock()
	if w.fullscreen == on || w.closed {
		w.mu.Unlock()
		return
	}
	w.fullscreen = on
	listeners := make([]func(bool), 0, len(w.fsListeners))
	for _, fn := range w.fsListeners {
		listeners = append(listeners, fn)
	}
	page := w.page
	w.mu.Unlock()

	w.logger.Info("fullscreen changed", zap.Bool("fullscreen", on))
	for _, fn := range listeners {
		fn(on)
	}
	if page != nil {
		page.DispatchEvent("fullscreenchange", on)
	}
}

// OnFullscreenChange registers fn and returns a func that removes it
func (w *Window) OnFullscreenChange(fn func(bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.fsNext
	w.fsNext++
	w.fsListeners[id] = fn

	return func() {
		w.mu.Lock()
		delete(w.fsListeners, id)
		w.mu.Unlock()
	}
}

// DispatchKey handles host keyboard input. A non-repeat keydown of F11 or
// Alt+Enter toggles fullscreen and is consumed; everything else goes to the
// page.
func (w *Window) DispatchKey(ctx context.Context, ev sandbox.KeyEvent) (consumed bool, err error) {
	if isFullscreenToggle(ev) {
		w.SetFullscreen(!w.IsFullscreen())
		return true, nil
	}

	page := w.Page()
	if page == nil {
		return false, ErrNoPage
	}
	return false, page.DispatchKey(ctx, ev)
}

func isFullscreenToggle(ev sandbox.KeyEvent) bool {
	if ev.Type != "keydown" || ev.Repeat {
		return false
	}
	return ev.Code == "F11" || ev.Key == "F11" || (ev.Alt && (ev.Code == "Enter" || ev.Key == "Enter"))
}

// Navigate is the in-window navigation rule: every navigation is refused
func (w *Window) Navigate(url string) error {
	w.logger.Warn("navigation blocked", zap.String("url", url))
	return fmt.Errorf("%w: %s", ErrNavigationBlocked, url)
}

// OpenWindow refuses to open a new window. URLs on the external allow-list
// are handed to the system opener instead.
func (w *Window) OpenWindow(url string) error {
	if !slices.Contains(w.cfg.AllowExternal, url) {
		w.logger.Warn("window open denied", zap.String("url", url))
		return fmt.Errorf("%w: %s", ErrNavigationBlocked, url)
	}

	w.logger.Info("opening external url", zap.String("url", url))
	if err := w.opener(url); err != nil {
		w.logger.Warn("external opener failed", zap.String("url", url), zap.Error(err))
		return err
	}
	return nil
}

// ToggleDiagnosticView opens or closes the diagnostic view
func (w *Window) ToggleDiagnosticView() bool {
	open := w.hub.Toggle()
	w.logger.Info("diagnostic view toggled", zap.Bool("open", open))
	return open
}

// DiagnosticsOpen reports whether the diagnostic view is open
func (w *Window) DiagnosticsOpen() bool {
	return w.hub.IsOpen()
}

// Quit closes the page and the window. It is safe to call more than once and
// from any goroutine other than a page job.
func (w *Window) Quit() {
	w.quitOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		page := w.page
		w.page = nil
		w.mu.Unlock()

		if page != nil {
			page.Close()
		}
		w.logger.Info("window closed")
		close(w.done)
	})
}

// Done is closed once the window quits
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// ContentPath returns the resolved content file of the current page
func (w *Window) ContentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.contentPath
}

var _ bridge.Window = (*Window)(nil)
