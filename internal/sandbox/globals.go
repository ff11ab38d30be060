package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var errNoFreeze = errors.New("object freeze unavailable")

// hidden names a script might probe for a host module system
var hidden = []string{"require", "process", "module", "exports"}

func (p *Page) setupGlobals() error {
	global := p.vm.GlobalObject()
	for _, name := range hidden {
		_ = global.Delete(name)
	}

	if err := p.vm.Set("window", global); err != nil {
		return err
	}
	if err := p.vm.Set("self", global); err != nil {
		return err
	}

	for _, install := range []func() error{
		p.installConsole,
		p.installTimers,
		p.installStorage,
		p.installPerformance,
		p.installEvents,
		p.installDocument,
		p.installNavigation,
		p.installBridge,
	} {
		if err := install(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) installPerformance() error {
	perf := p.vm.NewObject()
	if err := perf.Set("now", func() float64 {
		return float64(time.Since(p.started)) / float64(time.Millisecond)
	}); err != nil {
		return err
	}
	return p.vm.Set("performance", perf)
}

// installEvents puts addEventListener/removeEventListener on window. The
// document shares the same listener table.
func (p *Page) installEvents() error {
	global := p.vm.GlobalObject()
	if err := global.Set("addEventListener", p.addListener); err != nil {
		return err
	}
	return global.Set("removeEventListener", p.removeListener)
}

func (p *Page) addListener(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	fnVal := call.Argument(1)
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return goja.Undefined()
	}
	for _, l := range p.listeners[name] {
		if l.fn.StrictEquals(fnVal) {
			return goja.Undefined()
		}
	}
	p.listeners[name] = append(p.listeners[name], listener{origin: p.origin, fn: fnVal, call: fn})
	return goja.Undefined()
}

func (p *Page) removeListener(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	fnVal := call.Argument(1)
	ls := p.listeners[name]
	for i, l := range ls {
		if l.fn.StrictEquals(fnVal) {
			p.listeners[name] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	return goja.Undefined()
}

// Listeners reports how many listeners are registered for an event
func (p *Page) Listeners(ctx context.Context, name string) (int, error) {
	var n int
	err := p.await(ctx, HostOrigin, 0, func() error {
		n = len(p.listeners[name])
		return nil
	})
	return n, err
}

func (p *Page) installDocument() error {
	doc := p.vm.NewObject()
	d := p.dom

	p.accessor(doc, "body", func() goja.Value { return p.element(d.Body()) }, nil)
	p.accessor(doc, "head", func() goja.Value { return p.element(d.Head()) }, nil)
	p.accessor(doc, "documentElement", func() goja.Value { return p.element(d.first("html")) }, nil)
	p.accessor(doc, "title",
		func() goja.Value { return p.vm.ToValue(d.Title()) },
		func(v goja.Value) { d.SetTitle(stringOf(v)) })
	p.constant(doc, "readyState", "complete")

	p.method(doc, "createElement", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		if tag == "" || goja.IsUndefined(call.Argument(0)) {
			panic(p.vm.NewTypeError("createElement: tag name required"))
		}
		return p.element(d.CreateElement(tag))
	})
	p.method(doc, "getElementById", func(call goja.FunctionCall) goja.Value {
		return p.element(d.ByID(call.Argument(0).String()))
	})
	p.method(doc, "querySelector", func(call goja.FunctionCall) goja.Value {
		return p.queryFirst(nil, call.Argument(0).String())
	})
	p.method(doc, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return p.queryAll(nil, call.Argument(0).String())
	})
	p.method(doc, "queryXPath", func(call goja.FunctionCall) goja.Value {
		nodes, err := d.XPath(call.Argument(0).String())
		if err != nil {
			panic(p.syntaxError(err))
		}
		return p.elements(nodes)
	})
	p.method(doc, "waitFor", p.waitFor)
	p.method(doc, "watch", p.watch)
	p.method(doc, "addEventListener", p.addListener)
	p.method(doc, "removeEventListener", p.removeListener)

	return p.vm.Set("document", doc)
}

// installNavigation routes window.open and location changes to the host. The
// page itself never navigates and never gets a second window.
func (p *Page) installNavigation() error {
	route := func(kind string, hook func(string) error, url string) {
		if hook == nil {
			return
		}
		if err := hook(url); err != nil {
			p.logger.Info("page navigation refused",
				zap.String("origin", p.origin),
				zap.String("via", kind),
				zap.String("url", url),
				zap.Error(err),
			)
		}
	}

	if err := p.vm.GlobalObject().Set("open", func(url string) goja.Value {
		route("window.open", p.open, url)
		return goja.Null()
	}); err != nil {
		return err
	}

	loc := p.vm.NewObject()
	href := p.url
	if href == "" {
		href = "about:blank"
	}
	p.accessor(loc, "href",
		func() goja.Value { return p.vm.ToValue(href) },
		func(v goja.Value) { route("location.href", p.navigate, stringOf(v)) })
	for _, name := range []string{"assign", "replace"} {
		via := "location." + name
		p.method(loc, name, func(call goja.FunctionCall) goja.Value {
			route(via, p.navigate, call.Argument(0).String())
			return goja.Undefined()
		})
	}
	return p.vm.Set("location", loc)
}
