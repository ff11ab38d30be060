package sandbox

import (
	"github.com/GriffinCanCode/modhost/internal/prefs"
	"github.com/dop251/goja"
)

// installStorage exposes localStorage. Each extension sees only its own
// scope; host-run scripts share the "page" scope.
func (p *Page) installStorage() error {
	scoped := func() *prefs.Scoped {
		name := p.origin
		if name == "" || name == HostOrigin {
			name = "page"
		}
		return prefs.Scope(p.prefs, name)
	}

	storage := p.vm.NewObject()
	methods := map[string]any{
		"getItem": func(key string) goja.Value {
			v, ok := scoped().Get(key)
			if !ok {
				return goja.Null()
			}
			return p.vm.ToValue(v)
		},
		"setItem": func(key string, value goja.Value) {
			// quota errors surface to the script as a throw
			if err := scoped().Set(key, stringOf(value)); err != nil {
				panic(p.vm.NewGoError(err))
			}
		},
		"removeItem": func(key string) {
			if err := scoped().Delete(key); err != nil {
				panic(p.vm.NewGoError(err))
			}
		},
		"clear": func() {
			s := scoped()
			for _, k := range s.Keys() {
				_ = s.Delete(k)
			}
		},
		"key": func(i int) goja.Value {
			keys := scoped().Keys()
			if i < 0 || i >= len(keys) {
				return goja.Null()
			}
			return p.vm.ToValue(keys[i])
		},
	}
	for name, fn := range methods {
		if err := storage.Set(name, fn); err != nil {
			return err
		}
	}
	_ = storage.DefineAccessorProperty("length",
		p.vm.ToValue(func(goja.FunctionCall) goja.Value { return p.vm.ToValue(len(scoped().Keys())) }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return p.vm.Set("localStorage", storage)
}
