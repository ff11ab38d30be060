package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Page is one content load of the display surface: a goja runtime over a
// parsed document, driven by a single loop goroutine. Closing the page stops
// its loop and timers, so nothing scheduled by its scripts can reach a later
// page.
type Page struct {
	id      id.PageID
	cfg     Config
	vm      *goja.Runtime
	dom     *DOM
	logger  *zap.Logger
	metrics *monitoring.Metrics

	registry *bridge.Registry
	prefs    prefs.Store
	console  func(LogEntry)
	started  time.Time
	url      string
	navigate func(string) error
	open     func(string) error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
	calls  chan func()

	mu     sync.Mutex
	queue  []job
	closed bool
	timers map[int64]*timer
	timerN int64

	// loop-only state
	origin    string
	proxies   map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	listeners map[string][]listener
	watchers  []*watcher
	pending   []pendingMutation
	watching  *watcher

	stats struct {
		jobs, injected, scriptErrors, timersFired, waitGiveUps, callsDropped atomic.Int64
	}
}

type listener struct {
	origin string
	fn     goja.Value
	call   goja.Callable
}

// NewPage parses doc and builds its runtime. The page is live until Close.
func NewPage(doc string, opts Options) (*Page, error) {
	dom, err := ParseDOM(doc)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config.withDefaults()
	pid := id.NewPageID()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Prefs
	if store == nil {
		store = prefs.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		id:        pid,
		cfg:       cfg,
		vm:        goja.New(),
		dom:       dom,
		logger:    logger.With(zap.String("page", pid.String())),
		metrics:   opts.Metrics,
		registry:  opts.Registry,
		prefs:     store,
		console:   opts.Console,
		started:   time.Now(),
		url:       opts.URL,
		navigate:  opts.Navigate,
		open:      opts.Open,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		wake:      make(chan struct{}, 1),
		calls:     make(chan func(), cfg.CallQueue),
		timers:    make(map[int64]*timer),
		proxies:   make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		listeners: make(map[string][]listener),
	}
	p.vm.SetMaxCallStackSize(cfg.MaxCallStack)
	dom.onMutate = p.recordMutation

	if err := p.setupGlobals(); err != nil {
		cancel()
		return nil, err
	}

	go p.run()
	go p.runCalls()

	return p, nil
}

// ID returns the page identity
func (p *Page) ID() id.PageID {
	return p.id
}

// Context is cancelled when the page closes
func (p *Page) Context() context.Context {
	return p.ctx
}

// Done is closed once the page loop has stopped
func (p *Page) Done() <-chan struct{} {
	return p.done
}

// Closed reports whether Close has been called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Inject runs one extension's source as a top-level script. A throw, a syntax
// error, a timeout or ctx cancellation yields *ScriptError.
func (p *Page) Inject(ctx context.Context, name, src string) error {
	err := p.await(ctx, name, p.cfg.InjectTimeout, func() error {
		_, err := p.vm.RunScript(name, src)
		return err
	})
	if err == nil {
		p.stats.injected.Add(1)
		return nil
	}
	if _, ok := err.(*ScriptError); ok {
		p.stats.scriptErrors.Add(1)
	}
	return err
}

// Eval evaluates expr on the page and exports the result
func (p *Page) Eval(ctx context.Context, expr string) (any, error) {
	var out any
	err := p.await(ctx, HostOrigin, p.cfg.InjectTimeout, func() error {
		v, err := p.vm.RunString(expr)
		if err != nil {
			return err
		}
		out = exportValue(v)
		return nil
	})
	return out, err
}

// Mutate runs fn against the document on the page loop. Watchers see the
// mutations fn makes, attributed to the host.
func (p *Page) Mutate(ctx context.Context, fn func(*DOM)) error {
	return p.await(ctx, HostOrigin, 0, func() error {
		fn(p.dom)
		return nil
	})
}

// HTML renders the current document
func (p *Page) HTML(ctx context.Context) (string, error) {
	var out string
	err := p.Mutate(ctx, func(d *DOM) { out = d.Render() })
	return out, err
}

// DispatchKey delivers a keyboard event to keydown/keyup listeners. It does
// not wait for the listeners to run.
func (p *Page) DispatchKey(ctx context.Context, ev KeyEvent) error {
	return p.await(ctx, HostOrigin, 0, func() error {
		obj := p.vm.NewObject()
		_ = obj.Set("type", ev.Type)
		_ = obj.Set("key", ev.Key)
		_ = obj.Set("code", ev.Code)
		_ = obj.Set("altKey", ev.Alt)
		_ = obj.Set("ctrlKey", ev.Ctrl)
		_ = obj.Set("shiftKey", ev.Shift)
		_ = obj.Set("metaKey", ev.Meta)
		_ = obj.Set("repeat", ev.Repeat)
		p.fireListeners(ev.Type, obj)
		return nil
	})
}

// DispatchEvent delivers a named event whose detail is a plain value
func (p *Page) DispatchEvent(name string, detail any) bool {
	return p.post(job{
		origin: HostOrigin,
		fn: func() error {
			obj := p.vm.NewObject()
			_ = obj.Set("type", name)
			_ = obj.Set("detail", detail)
			p.fireListeners(name, obj)
			return nil
		},
	})
}

// fireListeners runs on the loop. Each listener is scheduled as its own job so
// one slow or throwing listener cannot starve the others.
func (p *Page) fireListeners(name string, ev *goja.Object) {
	_ = ev.Set("defaultPrevented", false)
	_ = ev.Set("preventDefault", func() { _ = ev.Set("defaultPrevented", true) })

	for _, l := range p.listeners[name] {
		l := l
		p.post(job{
			origin:  l.origin,
			timeout: p.cfg.CallbackTimeout,
			fn: func() error {
				_, err := l.call(goja.Undefined(), ev)
				return err
			},
			done: func(err error) { p.reportCallbackError(l.origin, name+" listener", err) },
		})
	}
}

// Close stops the page: queued and future jobs are discarded, timers are
// stopped and a running script is interrupted. It returns once the loop has
// exited. Close must not be called from inside a page job.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.queue = nil
	timers := p.timers
	p.timers = make(map[int64]*timer)
	p.mu.Unlock()

	for _, t := range timers {
		t.t.Stop()
	}

	p.cancel()
	p.vm.Interrupt(ErrPageClosed)
	<-p.done

	p.logger.Debug("page closed", zap.Int("timers_cancelled", len(timers)))
}

// Stats returns activity counters
func (p *Page) Stats() Stats {
	return Stats{
		Jobs:         p.stats.jobs.Load(),
		Injected:     p.stats.injected.Load(),
		ScriptErrors: p.stats.scriptErrors.Load(),
		TimersFired:  p.stats.timersFired.Load(),
		WaitGiveUps:  p.stats.waitGiveUps.Load(),
		CallsDropped: p.stats.callsDropped.Load(),
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
