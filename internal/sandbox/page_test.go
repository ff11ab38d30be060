package sandbox

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"github.com/GriffinCanCode/modhost/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"
)

const testDoc = `<!DOCTYPE html>
<html><head><title>Player</title></head>
<body>
<div id="stage" class="main wide" style="opacity: 1;"><p class="line">one</p><p class="line">two</p></div>
</body></html>`

type stubWindow struct {
	mu         sync.Mutex
	fullscreen bool
	quits      int
	listeners  []func(bool)
}

func (w *stubWindow) Quit() {
	w.mu.Lock()
	w.quits++
	w.mu.Unlock()
}

func (w *stubWindow) IsFullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullscreen
}

func (w *stubWindow) SetFullscreen(on bool) {
	w.mu.Lock()
	w.fullscreen = on
	fns := slices.Clone(w.listeners)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(on)
	}
}

func (w *stubWindow) OnFullscreenChange(fn func(bool)) func() {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *stubWindow) ToggleDiagnosticView() bool { return true }

type stubSender struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *stubSender) Send(ev telemetry.Event) bool {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return true
}

func (s *stubSender) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Key + ":" + string(ev.Action)
	}
	return out
}

type consoleSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *consoleSink) add(e LogEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

func (c *consoleSink) all() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.entries...)
}

type harness struct {
	page    *Page
	win     *stubWindow
	sender  *stubSender
	console *consoleSink
	store   *prefs.MemoryStore
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "img", "a.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "img", "notes.txt"), []byte("x"), 0o644))

	h := &harness{
		win:     &stubWindow{},
		sender:  &stubSender{},
		console: &consoleSink{},
		store:   prefs.NewMemoryStore(),
	}
	core, logs := observer.New(zapcore.DebugLevel)
	h.logs = logs

	reg, err := bridge.New(h.win, h.sender, bridge.Config{AppRoot: root, ImageExts: []string{".png"}}, nil, nil)
	require.NoError(t, err)

	h.page, err = NewPage(testDoc, Options{
		Config:   cfg,
		Registry: reg,
		Prefs:    h.store,
		Console:  h.console.add,
		Logger:   zap.New(core),
	})
	require.NoError(t, err)
	t.Cleanup(h.page.Close)
	return h
}

func (h *harness) eval(t *testing.T, expr string) any {
	t.Helper()
	v, err := h.page.Eval(context.Background(), expr)
	require.NoError(t, err)
	return v
}

func (h *harness) inject(t *testing.T, name, src string) {
	t.Helper()
	require.NoError(t, h.page.Inject(context.Background(), name, src))
}

func (h *harness) eventually(t *testing.T, expr string, want any) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := h.page.Eval(context.Background(), expr)
		return err == nil && assert.ObjectsAreEqualValues(want, v)
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s == %v", expr, want)
}

func TestHostModuleGlobalsAreUndefined(t *testing.T) {
	h := newHarness(t, Config{})

	for _, name := range []string{"require", "process", "module", "exports"} {
		assert.Equal(t, "undefined", h.eval(t, "typeof "+name), name)
	}
	assert.Equal(t, true, h.eval(t, "window === globalThis"))
	assert.Equal(t, "object", h.eval(t, "typeof window.document"))
	assert.Equal(t, "function", h.eval(t, "typeof performance.now"))
	assert.Equal(t, true, h.eval(t, "performance.now() >= 0"))
}

func TestBridgeIsFrozen(t *testing.T) {
	h := newHarness(t, Config{})

	assert.Equal(t, true, h.eval(t, "Object.isFrozen(bridge)"))
	assert.Equal(t, "undefined", h.eval(t, "bridge.exec = function() {}; typeof bridge.exec"))
	assert.Equal(t, "function", h.eval(t, "bridge.quit = null; typeof bridge.quit"))
	assert.Equal(t, true, h.eval(t, "var before = bridge; bridge = {}; bridge === before"))
	assert.Equal(t, false, h.eval(t, "delete window.bridge"))

	_, err := h.page.Eval(context.Background(), `"use strict"; bridge.exec = 1`)
	require.Error(t, err)

	assert.Equal(t, "isFullscreen,onFullscreenChange,quit,readImages,sendTelemetry,setFullscreen,toggleDiagnosticView",
		h.eval(t, "Object.keys(bridge).sort().join(',')"))
}

func TestMalformedCapabilityCallThrows(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.page.Inject(context.Background(), "fs.js", `bridge.setFullscreen("yes")`)
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fs.js", se.Origin)
	assert.Contains(t, se.Message, "TypeError")
	assert.Contains(t, se.Message, "malformed capability call")
	assert.False(t, h.win.IsFullscreen())

	assert.Equal(t, "caught", h.eval(t, `
		try { bridge.sendTelemetry("KeyA", "down"); "missed" } catch (e) { "caught" }`))
	assert.Empty(t, h.sender.keys())
}

func TestFireAndForgetCallsKeepOrder(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "keys.js", `
		for (const k of ["KeyA", "KeyB", "KeyC"]) {
			bridge.sendTelemetry(k, "down", 10);
			bridge.sendTelemetry(k, "up", 20.5);
		}`)

	want := []string{"KeyA:down", "KeyA:up", "KeyB:down", "KeyB:up", "KeyC:down", "KeyC:up"}
	require.Eventually(t, func() bool { return len(h.sender.keys()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, h.sender.keys())
}

func TestSyncAndAsyncCapabilities(t *testing.T) {
	h := newHarness(t, Config{})

	assert.Equal(t, false, h.eval(t, "bridge.isFullscreen()"))

	h.inject(t, "images.js", `
		bridge.readImages("img").then(list => { window.images = list.join(","); window.isArray = Array.isArray(list) });
		bridge.readImages("../../etc").then(list => { window.outside = list.length });`)

	h.eventually(t, "window.images", "img/a.png")
	h.eventually(t, "window.isArray", true)
	h.eventually(t, "window.outside", 0)
}

func TestFullscreenCallbackRunsOnPage(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "fs.js", `bridge.onFullscreenChange(on => { window.fsSeen = on })`)
	require.Eventually(t, func() bool {
		h.win.mu.Lock()
		defer h.win.mu.Unlock()
		return len(h.win.listeners) == 1
	}, time.Second, 5*time.Millisecond)

	h.win.SetFullscreen(true)
	h.eventually(t, "window.fsSeen", true)
}

func TestInjectReportsScriptErrors(t *testing.T) {
	h := newHarness(t, Config{})

	tests := []struct {
		name        string
		src         string
		message     string
		interrupted bool
	}{
		{"throw", `throw new Error("boom")`, "boom", false},
		{"syntax", `function (`, "SyntaxError", false},
		{"reference", `missingFunction()`, "ReferenceError", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.page.Inject(context.Background(), tt.name+".js", tt.src)
			var se *ScriptError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.name+".js", se.Origin)
			assert.Contains(t, se.Message, tt.message)
			assert.Equal(t, tt.interrupted, se.Interrupted)
		})
	}

	h.inject(t, "fine.js", `window.fine = true`)
	assert.Equal(t, true, h.eval(t, "window.fine"))
	assert.EqualValues(t, 1, h.page.Stats().Injected)
	assert.EqualValues(t, 3, h.page.Stats().ScriptErrors)
}

func TestInjectTimeoutInterrupts(t *testing.T) {
	h := newHarness(t, Config{InjectTimeout: 50 * time.Millisecond})

	err := h.page.Inject(context.Background(), "spin.js", `for (;;) {}`)
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Interrupted)
	assert.Equal(t, "spin.js", se.Origin)

	// the page stays usable
	assert.EqualValues(t, 2, h.eval(t, "1 + 1"))
}

func TestInjectCancelledByContext(t *testing.T) {
	h := newHarness(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.page.Inject(ctx, "spin.js", `for (;;) {}`)
	require.Error(t, err)
	assert.EqualValues(t, 3, h.eval(t, "1 + 2"))
}

func TestTimersInheritOrigin(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "clock.js", `setTimeout(() => console.log("tick"), 5)`)

	require.Eventually(t, func() bool { return len(h.console.all()) == 1 }, time.Second, 5*time.Millisecond)
	e := h.console.all()[0]
	assert.Equal(t, "clock.js", e.Origin)
	assert.Equal(t, "tick", e.Message)
	assert.Equal(t, h.page.ID().String(), e.Page)
	assert.EqualValues(t, 1, h.page.Stats().TimersFired)
}

func TestHugeTimerDelaySaturates(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "far.js", `
		window.fired = 0;
		setTimeout(() => { window.fired++ }, 1e13);
		setTimeout(() => { window.fired++ }, Infinity);
		document.waitFor("#never", {interval: 1e13, attempts: 2})`)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, h.eval(t, "window.fired"))
	assert.Equal(t, 3, h.page.ActiveTimers())
	assert.Zero(t, h.page.Stats().TimersFired)
}

func TestMillisSaturates(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, millis(5))
	assert.Equal(t, time.Duration(math.MaxInt64), millis(1e13))
	assert.Equal(t, time.Duration(math.MaxInt64), millis(math.Inf(1)))
	assert.Positive(t, millis(maxMillis-1))
}

func TestIntervalAndClear(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "interval.js", `
		window.n = 0;
		const id = setInterval(() => { window.n++; if (window.n === 3) clearInterval(id) }, 2)`)

	h.eventually(t, "window.n", 3)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 3, h.eval(t, "window.n"))
	assert.Zero(t, h.page.ActiveTimers())
}

func TestCallbackTimeoutStopsRunawayTimer(t *testing.T) {
	h := newHarness(t, Config{CallbackTimeout: 30 * time.Millisecond})

	h.inject(t, "hog.js", `setTimeout(() => { for (;;) {} }, 1)`)

	require.Eventually(t, func() bool {
		return h.logs.FilterMessage("page callback failed").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 4, h.eval(t, "2 + 2"))
}

func TestWaitForResolves(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "late.js", `
		document.waitFor("#late", {interval: 5, attempts: 200}).then(el => { window.found = el.id })`)

	err := h.page.Mutate(context.Background(), func(d *DOM) {
		el := d.CreateElement("section")
		d.SetAttr(el, "id", "late")
		d.Append(d.Body(), el)
	})
	require.NoError(t, err)

	h.eventually(t, "window.found", "late")
	assert.Zero(t, h.page.Stats().WaitGiveUps)
}

func TestWaitForGivesUp(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "absent.js", `
		document.waitFor("#never", {interval: 2, attempts: 4}).catch(err => { window.gaveUp = err.message })`)

	h.eventually(t, "typeof window.gaveUp", "string")
	assert.Contains(t, h.eval(t, "window.gaveUp"), "4 attempts")
	assert.EqualValues(t, 1, h.page.Stats().WaitGiveUps)

	entries := h.logs.FilterMessage("waitFor gave up").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "absent.js", fields["origin"])
	assert.Equal(t, "#never", fields["selector"])
	assert.EqualValues(t, 4, fields["attempts"])
}

func TestCloseAbandonsPolling(t *testing.T) {
	old := newHarness(t, Config{})

	old.inject(t, "poll.js", `
		document.waitFor("#never", {interval: 2, attempts: 100000});
		setInterval(() => console.log("stale"), 2)`)
	require.Eventually(t, func() bool { return len(old.console.all()) > 0 }, time.Second, 2*time.Millisecond)

	old.page.Close()
	assert.Zero(t, old.page.ActiveTimers())
	assert.True(t, old.page.Closed())

	seen := len(old.console.all())
	fired := old.page.Stats().TimersFired
	time.Sleep(40 * time.Millisecond)
	assert.Len(t, old.console.all(), seen)
	assert.Equal(t, fired, old.page.Stats().TimersFired)

	assert.ErrorIs(t, old.page.Inject(context.Background(), "late.js", "1"), ErrPageClosed)
	_, err := old.page.Eval(context.Background(), "1")
	assert.ErrorIs(t, err, ErrPageClosed)

	// the next content load starts clean
	fresh := newHarness(t, Config{})
	assert.Zero(t, fresh.page.ActiveTimers())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fresh.console.all())

	// closing twice is harmless
	old.page.Close()
}

func TestCloseInterruptsRunningScript(t *testing.T) {
	h := newHarness(t, Config{InjectTimeout: time.Minute})

	errc := make(chan error, 1)
	go func() { errc <- h.page.Inject(context.Background(), "spin.js", `for (;;) {}`) }()
	time.Sleep(20 * time.Millisecond)

	h.page.Close()
	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("inject did not return after Close")
	}
}

func TestConsoleStripsMarkup(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "chat.js", `
		console.warn("<b>hello</b> <script>alert(1)</script>&amp; bye", 42);
		console.log({a: 1})`)

	entries := h.console.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "hello & bye 42", entries[0].Message)
	assert.Equal(t, "chat.js", entries[0].Origin)
	assert.Equal(t, `{"a":1}`, entries[1].Message)

	logged := h.logs.FilterMessage("page console").All()
	require.Len(t, logged, 2)
	assert.Equal(t, zapcore.WarnLevel, logged[0].Level)
	assert.Equal(t, "chat.js", logged[0].ContextMap()["origin"])
	assert.Equal(t, h.page.ID().String(), logged[0].ContextMap()["page"])
}

func TestLocalStorageIsScopedPerExtension(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "a.js", `localStorage.setItem("volume", 7)`)
	h.inject(t, "b.js", `window.fromB = localStorage.getItem("volume")`)
	h.inject(t, "a.js", `window.fromA = localStorage.getItem("volume"); window.lenA = localStorage.length`)

	assert.Nil(t, h.eval(t, "window.fromB"))
	assert.Equal(t, "7", h.eval(t, "window.fromA"))
	assert.EqualValues(t, 1, h.eval(t, "window.lenA"))

	v, ok := h.store.Get("a.js", "volume")
	require.True(t, ok)
	assert.Equal(t, "7", v)

	h.inject(t, "a.js", `localStorage.removeItem("volume")`)
	_, ok = h.store.Get("a.js", "volume")
	assert.False(t, ok)
}

func TestLocalStorageQuotaThrows(t *testing.T) {
	h := newHarness(t, Config{})

	big := strings.Repeat("x", prefs.MaxValueBytes+1)
	err := h.page.Inject(context.Background(), "big.js", `localStorage.setItem("blob", "`+big+`")`)
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "quota")
}

func TestWatchSeesOtherMutations(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "watcher.js", `
		window.seen = [];
		window.stopWatch = document.watch("#stage", rec => {
			window.seen.push(rec.type + ":" + rec.property + "=" + rec.value);
			document.getElementById("stage").setAttribute("data-touched", String(window.seen.length));
		})`)

	h.inject(t, "dimmer.js", `document.getElementById("stage").style.setProperty("opacity", "0.5")`)
	h.eventually(t, "window.seen.join('|')", "style:opacity=0.5")

	// the watcher's own setAttribute is not fed back to it
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, h.eval(t, "window.seen.length"))

	// a change under a matching ancestor counts
	h.inject(t, "text.js", `document.querySelector("#stage .line").textContent = "uno"`)
	h.eventually(t, "window.seen.length", 2)

	// mutations elsewhere do not
	h.inject(t, "title.js", `document.body.setAttribute("data-x", "1")`)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, h.eval(t, "window.seen.length"))

	h.inject(t, "watcher.js", `window.stopWatch()`)
	h.inject(t, "dimmer.js", `document.getElementById("stage").style.opacity = "0.2"`)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, h.eval(t, "window.seen.length"))
}

func TestDispatchKeyReachesListeners(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "keys.js", `
		window.keys = [];
		const onKey = e => window.keys.push(e.type + ":" + e.key + (e.altKey ? "+alt" : ""));
		window.addEventListener("keydown", onKey);
		window.addEventListener("keydown", onKey);
		document.addEventListener("keyup", onKey)`)

	n, err := h.page.Listeners(context.Background(), "keydown")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ctx := context.Background()
	require.NoError(t, h.page.DispatchKey(ctx, KeyEvent{Type: "keydown", Key: "a", Alt: true}))
	require.NoError(t, h.page.DispatchKey(ctx, KeyEvent{Type: "keyup", Key: "a"}))

	h.eventually(t, "window.keys.join(',')", "keydown:a+alt,keyup:a")

	h.inject(t, "keys.js", `window.removeEventListener("keydown", onKey)`)
	n, err = h.page.Listeners(context.Background(), "keydown")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatchEvent(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "fs.js", `window.addEventListener("fullscreenchange", e => { window.fs = e.detail })`)
	require.True(t, h.page.DispatchEvent("fullscreenchange", true))
	h.eventually(t, "window.fs", true)
}

func TestElementProxy(t *testing.T) {
	h := newHarness(t, Config{})

	tests := []struct {
		expr string
		want any
	}{
		{`document.title`, "Player"},
		{`document.getElementById("stage").tagName`, "DIV"},
		{`document.getElementById("stage").className`, "main wide"},
		{`document.getElementById("stage").getAttribute("missing")`, nil},
		{`document.getElementById("stage").hasAttribute("style")`, true},
		{`document.querySelectorAll(".line").length`, 2},
		{`document.querySelector(".line").textContent`, "one"},
		{`document.querySelector(".line").parentElement.id`, "stage"},
		{`document.getElementById("stage") === document.querySelector("#stage")`, true},
		{`document.getElementById("nope")`, nil},
		{`document.queryXPath("//p[@class='line']").length`, 2},
		{`document.getElementById("stage").style.opacity`, "1"},
		{`document.getElementById("stage").style.getPropertyValue("opacity")`, "1"},
		{`document.getElementById("stage").querySelector("p").innerHTML`, "one"},
		{`document.querySelector(".line").closest(".main").id`, "stage"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.EqualValues(t, tt.want, h.eval(t, tt.expr))
		})
	}
}

func TestElementMutations(t *testing.T) {
	h := newHarness(t, Config{})

	h.inject(t, "edit.js", `
		const stage = document.getElementById("stage");
		stage.style.backgroundColor = "red";
		stage.style.removeProperty("opacity");
		stage.insertAdjacentHTML("beforeend", "<p class='line'>three</p>");
		stage.insertAdjacentHTML("beforebegin", "<nav id='top'></nav>");
		const badge = document.createElement("SPAN");
		badge.id = "badge";
		badge.textContent = "live";
		stage.appendChild(badge);
		stage.querySelector(".line").remove();
		stage.setAttribute("data-state", "on");
		stage.removeAttribute("class");
		document.title = "Edited"`)

	assert.Equal(t, "background-color: red;", h.eval(t, `document.getElementById("stage").getAttribute("style")`))
	assert.Equal(t, "two,three", h.eval(t, `document.querySelectorAll(".line").map(e => e.textContent).join(",")`))
	assert.Equal(t, "SPAN", h.eval(t, `document.getElementById("badge").tagName`))
	assert.Equal(t, "NAV", h.eval(t, `document.getElementById("stage").parentElement.children[0].tagName`))
	assert.Equal(t, "Edited", h.eval(t, "document.title"))

	out, err := h.page.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, `data-state="on"`)
	assert.Contains(t, out, `<span id="badge">live</span>`)
	assert.NotContains(t, out, `class="main wide"`)
}

func TestBadSelectorsThrow(t *testing.T) {
	h := newHarness(t, Config{})

	for _, src := range []string{
		`document.querySelector("##")`,
		`document.queryXPath("//[")`,
		`document.watch("##", () => {})`,
		`document.body.insertAdjacentHTML("sideways", "<p></p>")`,
		`document.body.appendChild({})`,
	} {
		err := h.page.Inject(context.Background(), "bad.js", src)
		assert.Error(t, err, src)
	}
}

func TestMutateFromHost(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.page.Mutate(context.Background(), func(d *DOM) {
		stage := d.ByID("stage")
		d.SetText(stage, "replaced")
		d.SetStyle(stage, "display", "none")
	})
	require.NoError(t, err)

	assert.Equal(t, "replaced", h.eval(t, `document.getElementById("stage").textContent`))
	assert.Equal(t, "none", h.eval(t, `document.getElementById("stage").style.display`))
}

func TestDOMHelpers(t *testing.T) {
	d, err := ParseDOM(testDoc)
	require.NoError(t, err)

	var got []Mutation
	d.onMutate = func(_ *html.Node, m Mutation) { got = append(got, m) }

	stage := d.ByID("stage")
	require.NotNil(t, stage)
	d.SetStyle(stage, "fontSize", "12px")

	require.Len(t, got, 1)
	assert.Equal(t, Mutation{Type: "style", Target: "div#stage.main.wide", Property: "fontSize", Value: "12px"}, got[0])

	st := d.Style(stage)
	assert.Equal(t, []string{"opacity", "font-size"}, st.Properties())
	assert.Equal(t, "12px", st.Get("font-size"))

	nodes, err := d.Query(nil, "p.line")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	_, err = d.Query(nil, ":::")
	assert.Error(t, err)

	assert.ErrorIs(t, d.InsertHTML(stage, "middle", "<i></i>"), ErrBadPosition)
}

func TestCSSName(t *testing.T) {
	tests := map[string]string{
		"backgroundColor": "background-color",
		"opacity":         "opacity",
		"font-size":       "font-size",
		"--accent":        "--accent",
		"WebkitTransform": "-webkit-transform",
	}
	for in, want := range tests {
		assert.Equal(t, want, cssName(in), in)
	}
}

func TestNavigationIsRoutedToHost(t *testing.T) {
	var (
		mu     sync.Mutex
		routed []string
	)
	hook := func(kind string) func(string) error {
		return func(url string) error {
			mu.Lock()
			routed = append(routed, kind+" "+url)
			mu.Unlock()
			return errors.New("blocked")
		}
	}

	page, err := NewPage(testDoc, Options{
		URL:      "file:///srv/game/index.html",
		Navigate: hook("nav"),
		Open:     hook("open"),
	})
	require.NoError(t, err)
	defer page.Close()

	v, err := page.Eval(context.Background(), `
		location.assign("https://evil.example/");
		location.href = "https://evil.example/2";
		const w = window.open("https://opengameart.org/");
		[location.href, w === null].join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "file:///srv/game/index.html,true", v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"nav https://evil.example/",
		"nav https://evil.example/2",
		"open https://opengameart.org/",
	}, routed)
}
