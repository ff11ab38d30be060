package sandbox

import (
	"github.com/GriffinCanCode/modhost/internal/bridge"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installBridge exposes the registry as the frozen, non-writable global
// "bridge". Every call is checked against the capability signature before it
// leaves the page; a malformed call throws and nothing privileged runs.
func (p *Page) installBridge() error {
	obj := p.vm.NewObject()

	if p.registry != nil {
		for _, name := range p.registry.Names() {
			c, _ := p.registry.Lookup(name)
			fn := p.capabilityFunc(c)
			if err := obj.DefineDataProperty(name, p.vm.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
				return err
			}
		}
	}

	freeze, ok := goja.AssertFunction(p.vm.Get("Object").ToObject(p.vm).Get("freeze"))
	if !ok {
		return errNoFreeze
	}
	if _, err := freeze(goja.Undefined(), obj); err != nil {
		return err
	}

	return p.vm.GlobalObject().DefineDataProperty("bridge", obj, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (p *Page) capabilityFunc(c bridge.Capability) func(goja.FunctionCall) goja.Value {
	name := c.Name
	return func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = p.exportArg(a)
		}

		if _, err := p.registry.Check(name, args); err != nil {
			p.metrics.RecordCapabilityCall(name, "malformed")
			p.logger.Warn("malformed capability call rejected",
				zap.String("origin", p.origin),
				zap.String("capability", name),
				zap.Error(err),
			)
			panic(p.vm.NewTypeError(err.Error()))
		}

		switch c.Kind {
		case bridge.Sync:
			out, err := p.registry.Invoke(p.ctx, name, args)
			if err != nil {
				panic(p.vm.NewGoError(err))
			}
			return p.toJS(bridge.Materialize(out))

		case bridge.Async:
			promise, resolve, reject := p.vm.NewPromise()
			origin := p.origin
			go func() {
				out, err := p.registry.Invoke(p.ctx, name, args)
				out = bridge.Materialize(out)
				p.post(job{
					origin: origin,
					fn: func() error {
						if err != nil {
							reject(p.vm.NewGoError(err))
							return nil
						}
						resolve(p.toJS(out))
						return nil
					},
				})
			}()
			return p.vm.ToValue(promise)

		default:
			p.enqueueCall(name, args)
			return goja.Undefined()
		}
	}
}

// toJS converts a capability result. String lists become real arrays.
func (p *Page) toJS(v any) goja.Value {
	if list, ok := v.([]string); ok {
		items := make([]any, len(list))
		for i, s := range list {
			items[i] = s
		}
		return p.vm.NewArray(items...)
	}
	return p.vm.ToValue(v)
}

// exportArg converts a page value for the bridge. Functions become callbacks
// bound to this page's loop.
func (p *Page) exportArg(v goja.Value) any {
	if fn, ok := goja.AssertFunction(v); ok {
		cb := p.callback(p.origin, fn, "bridge callback")
		return bridge.Callback(func(value any) { cb(value) })
	}
	return exportValue(v)
}

// enqueueCall hands a fire-and-forget call to the page's call worker. Calls
// run in the order they were made; a full queue drops the call.
func (p *Page) enqueueCall(name string, args []any) {
	origin := p.origin
	run := func() {
		if _, err := p.registry.Invoke(p.ctx, name, args); err != nil {
			p.logger.Debug("capability call failed",
				zap.String("origin", origin),
				zap.String("capability", name),
				zap.Error(err),
			)
		}
	}

	select {
	case p.calls <- run:
	default:
		p.stats.callsDropped.Add(1)
		p.logger.Warn("capability call dropped, queue full",
			zap.String("origin", origin),
			zap.String("capability", name),
		)
	}
}

// runCalls is the call worker. It stops with the page.
func (p *Page) runCalls() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case run := <-p.calls:
			run()
		}
	}
}
