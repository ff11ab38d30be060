package window

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/diagnostics"
	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/GriffinCanCode/modhost/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const content = `<!DOCTYPE html><html><head><title>Game</title></head><body><canvas id="screen"></canvas></body></html>`

type nopSender struct{}

func (nopSender) Send(telemetry.Event) bool { return true }

func writeContent(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newWindow(t *testing.T, cfg Config, opts ...Option) *Window {
	t.Helper()
	w := New(cfg, diagnostics.NewHub(), nil, opts...)
	reg, err := bridge.New(w, nopSender{}, bridge.Config{AppRoot: t.TempDir()}, nil, nil)
	require.NoError(t, err)
	w.SetRegistry(reg)
	t.Cleanup(w.Quit)
	return w
}

func eval(t *testing.T, p *sandbox.Page, expr string) any {
	t.Helper()
	v, err := p.Eval(context.Background(), expr)
	require.NoError(t, err)
	return v
}

func TestLoadSignalsReady(t *testing.T) {
	path := writeContent(t, t.TempDir())
	w := newWindow(t, Config{ContentPath: path})

	var got []*sandbox.Page
	w.OnContentReady(func(p *sandbox.Page) { got = append(got, p) })

	require.NoError(t, w.Load(context.Background()))
	require.Len(t, got, 1)
	assert.Same(t, got[0], w.Page())
	assert.Equal(t, path, w.ContentPath())
	assert.False(t, w.ShowingError())
	assert.Equal(t, "Game", eval(t, got[0], "document.title"))
	assert.Equal(t, "file://"+filepath.ToSlash(path), eval(t, got[0], "location.href"))
}

func TestReloadClosesPreviousPage(t *testing.T) {
	w := newWindow(t, Config{ContentPath: writeContent(t, t.TempDir())})

	var got []*sandbox.Page
	w.OnContentReady(func(p *sandbox.Page) { got = append(got, p) })

	require.NoError(t, w.Load(context.Background()))
	first := w.Page()
	require.NoError(t, first.Inject(context.Background(), "poll.js",
		`document.waitFor("#never", {interval: 2, attempts: 100000})`))

	require.NoError(t, w.Reload(context.Background()))
	require.Len(t, got, 2)
	assert.True(t, first.Closed())
	assert.Zero(t, first.ActiveTimers())
	assert.NotEqual(t, first.ID(), w.Page().ID())
	assert.False(t, w.Page().Closed())
}

func TestConcurrentLoadsLeaveOneLivePage(t *testing.T) {
	w := newWindow(t, Config{ContentPath: writeContent(t, t.TempDir())})

	var mu sync.Mutex
	var pages []*sandbox.Page
	w.OnContentReady(func(p *sandbox.Page) {
		mu.Lock()
		pages = append(pages, p)
		mu.Unlock()
	})

	for range 50 {
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, w.Load(context.Background()))
			}()
		}
		wg.Wait()
	}

	current := w.Page()
	require.NotNil(t, current)
	require.Len(t, pages, 200)
	live := 0
	for _, p := range pages {
		if p != current && !p.Closed() {
			live++
		}
	}
	assert.Zero(t, live)
	assert.False(t, current.Closed())
}

func TestMissingContentShowsErrorPage(t *testing.T) {
	t.Chdir(t.TempDir())
	w := newWindow(t, Config{ContentPath: "index.html"})

	ready := 0
	w.OnContentReady(func(*sandbox.Page) { ready++ })

	err := w.Load(context.Background())
	assert.ErrorIs(t, err, ErrContentNotFound)
	assert.Zero(t, ready)
	assert.True(t, w.ShowingError())

	page := w.Page()
	require.NotNil(t, page)
	assert.Equal(t, "Error", eval(t, page, "document.title"))
	assert.EqualValues(t, 0, eval(t, page, "Object.keys(bridge).length"))
}

func TestContentFallsBackToParent(t *testing.T) {
	root := t.TempDir()
	writeContent(t, root)
	sub := filepath.Join(root, "app")
	require.NoError(t, os.Mkdir(sub, 0o755))
	t.Chdir(sub)

	w := newWindow(t, Config{ContentPath: "index.html"})
	require.NoError(t, w.Load(context.Background()))

	want, err := filepath.EvalSymlinks(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(w.ContentPath())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFullscreenNotifiesListenersAndPage(t *testing.T) {
	w := newWindow(t, Config{ContentPath: writeContent(t, t.TempDir())})
	require.NoError(t, w.Load(context.Background()))
	page := w.Page()
	require.NoError(t, page.Inject(context.Background(), "fs.js",
		`window.changes = []; window.addEventListener("fullscreenchange", e => window.changes.push(e.detail))`))

	var (
		mu   sync.Mutex
		seen []bool
	)
	remove := w.OnFullscreenChange(func(on bool) {
		mu.Lock()
		seen = append(seen, on)
		mu.Unlock()
	})

	w.SetFullscreen(true)
	w.SetFullscreen(true)
	w.SetFullscreen(false)
	remove()
	w.SetFullscreen(true)

	mu.Lock()
	assert.Equal(t, []bool{true, false}, seen)
	mu.Unlock()
	assert.True(t, w.IsFullscreen())

	require.Eventually(t, func() bool {
		v, err := page.Eval(context.Background(), "window.changes.join(',')")
		return err == nil && v == "true,false,true"
	}, time.Second, 5*time.Millisecond)
}

func TestDispatchKey(t *testing.T) {
	w := newWindow(t, Config{ContentPath: writeContent(t, t.TempDir())})
	ctx := context.Background()

	_, err := w.DispatchKey(ctx, sandbox.KeyEvent{Type: "keydown", Key: "a"})
	assert.ErrorIs(t, err, ErrNoPage)

	require.NoError(t, w.Load(ctx))
	page := w.Page()
	require.NoError(t, page.Inject(ctx, "keys.js",
		`window.keys = []; window.addEventListener("keydown", e => window.keys.push(e.key))`))

	tests := []struct {
		name       string
		ev         sandbox.KeyEvent
		consumed   bool
		fullscreen bool
	}{
		{"F11 toggles on", sandbox.KeyEvent{Type: "keydown", Key: "F11", Code: "F11"}, true, true},
		{"repeat F11 is forwarded", sandbox.KeyEvent{Type: "keydown", Key: "F11", Code: "F11", Repeat: true}, false, true},
		{"Alt+Enter toggles off", sandbox.KeyEvent{Type: "keydown", Key: "Enter", Code: "Enter", Alt: true}, true, false},
		{"plain Enter is forwarded", sandbox.KeyEvent{Type: "keydown", Key: "Enter", Code: "Enter"}, false, false},
		{"F11 keyup is forwarded", sandbox.KeyEvent{Type: "keyup", Key: "F11", Code: "F11"}, false, false},
		{"letter is forwarded", sandbox.KeyEvent{Type: "keydown", Key: "w", Code: "KeyW"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumed, err := w.DispatchKey(ctx, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.consumed, consumed)
			assert.Equal(t, tt.fullscreen, w.IsFullscreen())
		})
	}

	require.Eventually(t, func() bool {
		v, err := page.Eval(ctx, "window.keys.join(',')")
		return err == nil && v == "F11,Enter,w"
	}, time.Second, 5*time.Millisecond)
}

func TestNavigationPolicy(t *testing.T) {
	var (
		mu     sync.Mutex
		opened []string
	)
	opener := func(url string) error {
		mu.Lock()
		opened = append(opened, url)
		mu.Unlock()
		return nil
	}
	allowed := "https://opengameart.org/content/sci-fi-theme-1"
	w := newWindow(t, Config{
		ContentPath:   writeContent(t, t.TempDir()),
		AllowExternal: []string{allowed},
	}, WithOpener(opener))

	for _, url := range []string{"https://example.com/", allowed, "file:///etc/passwd"} {
		assert.ErrorIs(t, w.Navigate(url), ErrNavigationBlocked, url)
	}

	assert.NoError(t, w.OpenWindow(allowed))
	assert.ErrorIs(t, w.OpenWindow("https://example.com/"), ErrNavigationBlocked)

	require.NoError(t, w.Load(context.Background()))
	page := w.Page()
	assert.Equal(t, true, eval(t, page, `window.open("https://example.com/x") === null`))
	assert.Equal(t, true, eval(t, page, `window.open("`+allowed+`") === null`))
	eval(t, page, `location.assign("https://example.com/"); 0`)
	assert.Equal(t, "Game", eval(t, page, "document.title"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{allowed, allowed}, opened)
}

func TestDiagnosticViewReceivesConsole(t *testing.T) {
	hub := diagnostics.NewHub()
	w := New(Config{ContentPath: writeContent(t, t.TempDir())}, hub, nil)
	t.Cleanup(w.Quit)
	require.NoError(t, w.Load(context.Background()))
	page := w.Page()

	require.NoError(t, page.Inject(context.Background(), "quiet.js", `console.log("unseen")`))

	assert.True(t, w.ToggleDiagnosticView())
	assert.True(t, w.DiagnosticsOpen())
	sub, ok := hub.Subscribe(8)
	require.True(t, ok)

	require.NoError(t, page.Inject(context.Background(), "loud.js", `console.error("<i>broken</i>")`))
	select {
	case e := <-sub.Entries:
		assert.Equal(t, "broken", e.Message)
		assert.Equal(t, "loud.js", e.Origin)
		assert.Equal(t, "error", e.Level)
	case <-time.After(time.Second):
		t.Fatal("no console entry")
	}

	assert.False(t, w.ToggleDiagnosticView())
}

func TestBridgeDrivesWindow(t *testing.T) {
	w := newWindow(t, Config{ContentPath: writeContent(t, t.TempDir())})
	require.NoError(t, w.Load(context.Background()))
	page := w.Page()

	require.NoError(t, page.Inject(context.Background(), "fs.js", `bridge.setFullscreen(true)`))
	require.Eventually(t, w.IsFullscreen, time.Second, 5*time.Millisecond)
	assert.Equal(t, true, eval(t, page, "bridge.isFullscreen()"))

	// quit may close the page before the script returns
	_ = page.Inject(context.Background(), "quit.js", `bridge.quit()`)
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("window did not quit")
	}
	assert.True(t, page.Closed())
	assert.Nil(t, w.Page())
	assert.ErrorIs(t, w.Load(context.Background()), ErrClosed)
}
