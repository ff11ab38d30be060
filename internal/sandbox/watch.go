package sandbox

import (
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// watcher is a document.watch subscription
type watcher struct {
	selector string
	match    cascadia.Sel
	origin   string
	fn       goja.Callable
	active   bool
}

type pendingMutation struct {
	node *html.Node
	m    Mutation
	by   *watcher
}

// recordMutation runs on the loop for every DOM change
func (p *Page) recordMutation(n *html.Node, m Mutation) {
	if len(p.watchers) == 0 {
		return
	}
	p.pending = append(p.pending, pendingMutation{node: n, m: m, by: p.watching})
}

// flushMutations hands the mutations of the finished job to every watcher
// whose selector matches the changed node or one of its ancestors. A watcher
// never sees the mutations its own callback made.
func (p *Page) flushMutations() {
	if len(p.pending) == 0 {
		return
	}
	pending := p.pending
	p.pending = nil

	for _, w := range p.watchers {
		var batch []Mutation
		for _, pm := range pending {
			if pm.by == w || !within(pm.node, w.match) {
				continue
			}
			batch = append(batch, pm.m)
		}
		if len(batch) == 0 {
			continue
		}

		w := w
		p.post(job{
			origin:  w.origin,
			timeout: p.cfg.CallbackTimeout,
			fn: func() error {
				if !w.active {
					return nil
				}
				p.watching = w
				defer func() { p.watching = nil }()

				for _, m := range batch {
					rec := map[string]any{
						"type":     m.Type,
						"selector": w.selector,
						"target":   m.Target,
						"property": m.Property,
						"value":    m.Value,
					}
					if _, err := w.fn(goja.Undefined(), p.vm.ToValue(rec)); err != nil {
						return err
					}
				}
				return nil
			},
			done: func(err error) { p.reportCallbackError(w.origin, "watch "+w.selector, err) },
		})
	}
}

func within(n *html.Node, sel cascadia.Sel) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && sel.Match(n) {
			return true
		}
	}
	return false
}

// watch installs a subscription and returns its unsubscribe function
func (p *Page) watch(call goja.FunctionCall) goja.Value {
	selector := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(p.vm.NewTypeError("watch: callback must be a function"))
	}
	match, err := Compile(selector)
	if err != nil {
		panic(p.syntaxError(err))
	}

	w := &watcher{selector: selector, match: match, origin: p.origin, fn: fn, active: true}
	p.watchers = append(p.watchers, w)

	return p.vm.ToValue(func() {
		if !w.active {
			return
		}
		w.active = false
		for i, x := range p.watchers {
			if x == w {
				p.watchers = append(p.watchers[:i:i], p.watchers[i+1:]...)
				break
			}
		}
	})
}
