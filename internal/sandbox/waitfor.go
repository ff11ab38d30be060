package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// waitFor polls for the first element matching selector. The returned
// promise resolves with the element, or rejects once attempts polls have
// missed. Polls run as page timers, so closing the page abandons them.
func (p *Page) waitFor(call goja.FunctionCall) goja.Value {
	selector := call.Argument(0).String()
	if _, err := Compile(selector); err != nil {
		panic(p.syntaxError(err))
	}

	interval := p.cfg.WaitInterval
	attempts := p.cfg.WaitAttempts
	if opts, ok := call.Argument(1).(*goja.Object); ok {
		if v := opts.Get("interval"); v != nil && !goja.IsUndefined(v) {
			if ms := v.ToFloat(); ms > 0 {
				interval = millis(ms)
			}
		}
		if v := opts.Get("attempts"); v != nil && !goja.IsUndefined(v) {
			if n := v.ToInteger(); n > 0 {
				attempts = int(n)
			}
		}
	}

	promise, resolve, reject := p.vm.NewPromise()
	origin := p.origin
	tried := 0

	var poll func() error
	poll = func() error {
		tried++
		n, _ := p.dom.QueryFirst(nil, selector)
		if n != nil {
			resolve(p.element(n))
			return nil
		}
		if tried >= attempts {
			p.giveUp(origin, selector, tried)
			reject(p.vm.NewGoError(fmt.Errorf("waitFor %q: no match after %d attempts", selector, tried)))
			return nil
		}
		p.schedule(origin, interval, false, poll, "waitFor "+selector)
		return nil
	}
	_ = poll()

	return p.vm.ToValue(promise)
}

func (p *Page) giveUp(origin, selector string, attempts int) {
	p.stats.waitGiveUps.Add(1)
	p.metrics.IncWaitGiveUps()
	p.logger.Warn("waitFor gave up",
		zap.String("origin", origin),
		zap.String("selector", selector),
		zap.Int("attempts", attempts),
	)
}
