package sandbox

import (
	"math"
	"time"

	"github.com/dop251/goja"
)

// timer is a setTimeout/setInterval registration. The callback runs as a job
// carrying the origin of the script that scheduled it.
type timer struct {
	id       int64
	t        *time.Timer
	interval time.Duration
	repeat   bool
}

// schedule registers fn to run on the loop after delay. It returns 0 once the
// page is closed.
func (p *Page) schedule(origin string, delay time.Duration, repeat bool, fn func() error, what string) int64 {
	if delay < 0 {
		delay = 0
	}
	if repeat && delay < time.Millisecond {
		delay = time.Millisecond
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}

	p.timerN++
	tm := &timer{id: p.timerN, interval: delay, repeat: repeat}
	tm.t = time.AfterFunc(delay, func() {
		p.post(job{
			origin:  origin,
			timeout: p.cfg.CallbackTimeout,
			fn: func() error {
				if !p.timerLive(tm) {
					return nil
				}
				p.stats.timersFired.Add(1)
				err := fn()
				p.rearm(tm)
				return err
			},
			done: func(err error) { p.reportCallbackError(origin, what, err) },
		})
	})
	p.timers[tm.id] = tm
	return tm.id
}

func (p *Page) timerLive(tm *timer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timers[tm.id] == tm
}

// rearm restarts an interval or forgets a one-shot timer
func (p *Page) rearm(tm *timer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timers[tm.id] != tm {
		return
	}
	if tm.repeat {
		tm.t.Reset(tm.interval)
		return
	}
	delete(p.timers, tm.id)
}

func (p *Page) clearTimer(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tm, ok := p.timers[id]; ok {
		tm.t.Stop()
		delete(p.timers, id)
	}
}

// ActiveTimers reports how many timers are pending
func (p *Page) ActiveTimers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// maxMillis is the longest delay a time.Duration can hold, in milliseconds
const maxMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// millis converts a script delay to a Duration, saturating instead of
// wrapping for huge or infinite values
func millis(ms float64) time.Duration {
	if ms >= maxMillis {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func (p *Page) installTimers() error {
	set := func(repeat bool, what string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(p.vm.NewTypeError(what + ": callback must be a function"))
			}
			extra := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)
			ms := call.Argument(1).ToFloat()
			if math.IsNaN(ms) || ms < 0 {
				ms = 0
			}
			delay := millis(ms)
			id := p.schedule(p.origin, delay, repeat, func() error {
				_, err := fn(goja.Undefined(), extra...)
				return err
			}, what)
			return p.vm.ToValue(id)
		}
	}
	cancel := func(call goja.FunctionCall) goja.Value {
		p.clearTimer(call.Argument(0).ToInteger())
		return goja.Undefined()
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    set(false, "setTimeout"),
		"setInterval":   set(true, "setInterval"),
		"clearTimeout":  cancel,
		"clearInterval": cancel,
	} {
		if err := p.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}
