package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// element returns the cached proxy for n, or null
func (p *Page) element(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := p.proxies[n]; ok {
		return obj
	}

	obj := p.vm.NewObject()
	p.proxies[n] = obj
	p.nodes[obj] = n

	d := p.dom
	p.constant(obj, "tagName", strings.ToUpper(n.Data))
	p.constant(obj, "nodeName", strings.ToUpper(n.Data))

	p.accessor(obj, "id",
		func() goja.Value { v, _ := d.Attr(n, "id"); return p.vm.ToValue(v) },
		func(v goja.Value) { d.SetAttr(n, "id", v.String()) })
	p.accessor(obj, "className",
		func() goja.Value { v, _ := d.Attr(n, "class"); return p.vm.ToValue(v) },
		func(v goja.Value) { d.SetAttr(n, "class", v.String()) })
	p.accessor(obj, "textContent",
		func() goja.Value { return p.vm.ToValue(d.Text(n)) },
		func(v goja.Value) { d.SetText(n, stringOf(v)) })
	p.accessor(obj, "innerText",
		func() goja.Value { return p.vm.ToValue(d.Text(n)) },
		func(v goja.Value) { d.SetText(n, stringOf(v)) })
	p.accessor(obj, "innerHTML",
		func() goja.Value { return p.vm.ToValue(d.InnerHTML(n)) },
		func(v goja.Value) { d.SetInnerHTML(n, stringOf(v)) })
	p.accessor(obj, "outerHTML",
		func() goja.Value { return p.vm.ToValue(d.OuterHTML(n)) }, nil)
	p.accessor(obj, "parentElement",
		func() goja.Value {
			if n.Parent == nil || n.Parent.Type != html.ElementNode {
				return goja.Null()
			}
			return p.element(n.Parent)
		}, nil)
	p.accessor(obj, "children",
		func() goja.Value {
			var kids []any
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode {
					kids = append(kids, p.element(c))
				}
			}
			return p.vm.NewArray(kids...)
		}, nil)
	p.accessor(obj, "isConnected",
		func() goja.Value { return p.vm.ToValue(d.Contains(n)) }, nil)

	style := p.vm.NewDynamicObject(&styleObject{p: p, n: n})
	p.constant(obj, "style", style)

	p.method(obj, "getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := d.Attr(n, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return p.vm.ToValue(v)
	})
	p.method(obj, "setAttribute", func(call goja.FunctionCall) goja.Value {
		d.SetAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	p.method(obj, "removeAttribute", func(call goja.FunctionCall) goja.Value {
		d.RemoveAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	p.method(obj, "hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := d.Attr(n, call.Argument(0).String())
		return p.vm.ToValue(ok)
	})
	p.method(obj, "appendChild", func(call goja.FunctionCall) goja.Value {
		child := p.nodeArg(call.Argument(0))
		d.Append(n, child)
		return call.Argument(0)
	})
	p.method(obj, "remove", func(goja.FunctionCall) goja.Value {
		d.Remove(n)
		return goja.Undefined()
	})
	p.method(obj, "insertAdjacentHTML", func(call goja.FunctionCall) goja.Value {
		if err := d.InsertHTML(n, call.Argument(0).String(), call.Argument(1).String()); err != nil {
			panic(p.vm.NewTypeError(err.Error()))
		}
		return goja.Undefined()
	})
	p.method(obj, "insertAdjacentElement", func(call goja.FunctionCall) goja.Value {
		child := p.nodeArg(call.Argument(1))
		if err := d.InsertNode(n, call.Argument(0).String(), child); err != nil {
			panic(p.vm.NewTypeError(err.Error()))
		}
		return call.Argument(1)
	})
	p.method(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return p.queryFirst(n, call.Argument(0).String())
	})
	p.method(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return p.queryAll(n, call.Argument(0).String())
	})
	p.method(obj, "matches", func(call goja.FunctionCall) goja.Value {
		sel, err := Compile(call.Argument(0).String())
		if err != nil {
			panic(p.syntaxError(err))
		}
		return p.vm.ToValue(sel.Match(n))
	})
	p.method(obj, "closest", func(call goja.FunctionCall) goja.Value {
		sel, err := Compile(call.Argument(0).String())
		if err != nil {
			panic(p.syntaxError(err))
		}
		for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
			if sel.Match(c) {
				return p.element(c)
			}
		}
		return goja.Null()
	})

	return obj
}

func (p *Page) queryFirst(root *html.Node, selector string) goja.Value {
	n, err := p.dom.QueryFirst(root, selector)
	if err != nil {
		panic(p.syntaxError(err))
	}
	return p.element(n)
}

func (p *Page) queryAll(root *html.Node, selector string) goja.Value {
	nodes, err := p.dom.Query(root, selector)
	if err != nil {
		panic(p.syntaxError(err))
	}
	return p.elements(nodes)
}

func (p *Page) elements(nodes []*html.Node) goja.Value {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = p.element(n)
	}
	return p.vm.NewArray(out...)
}

// nodeArg resolves an element proxy handed back by the page
func (p *Page) nodeArg(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := p.nodes[obj]; ok {
			return n
		}
	}
	panic(p.vm.NewTypeError("argument is not an element"))
}

func (p *Page) syntaxError(err error) *goja.Object {
	ctor := p.vm.Get("SyntaxError")
	if fn, ok := goja.AssertConstructor(ctor); ok {
		if obj, cerr := fn(nil, p.vm.ToValue(err.Error())); cerr == nil {
			return obj
		}
	}
	return p.vm.NewTypeError(err.Error())
}

func (p *Page) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := p.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = p.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (p *Page) method(obj *goja.Object, name string, fn func(goja.FunctionCall) goja.Value) {
	_ = obj.DefineDataProperty(name, p.vm.ToValue(fn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (p *Page) constant(obj *goja.Object, name string, v any) {
	_ = obj.DefineDataProperty(name, p.vm.ToValue(v), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func stringOf(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
