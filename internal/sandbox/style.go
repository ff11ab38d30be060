package sandbox

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Style is an element's inline declarations in source order
type Style struct {
	decls []*css.Declaration
}

func parseStyle(attr string) *Style {
	decls, err := parser.ParseDeclarations(attr)
	if err != nil {
		return &Style{}
	}
	return &Style{decls: decls}
}

// Get returns the value of a property
func (s *Style) Get(property string) string {
	property = cssName(property)
	for _, d := range s.decls {
		if d.Property == property {
			return d.Value
		}
	}
	return ""
}

// Set adds or replaces a property
func (s *Style) Set(property, value string) {
	property = cssName(property)
	important := false
	if v, ok := strings.CutSuffix(strings.TrimSpace(value), "!important"); ok {
		value, important = strings.TrimSpace(v), true
	}
	for _, d := range s.decls {
		if d.Property == property {
			d.Value, d.Important = value, important
			return
		}
	}
	s.decls = append(s.decls, &css.Declaration{Property: property, Value: value, Important: important})
}

// Remove drops a property
func (s *Style) Remove(property string) {
	property = cssName(property)
	out := s.decls[:0]
	for _, d := range s.decls {
		if d.Property != property {
			out = append(out, d)
		}
	}
	s.decls = out
}

// Properties returns property names in source order
func (s *Style) Properties() []string {
	out := make([]string, len(s.decls))
	for i, d := range s.decls {
		out[i] = d.Property
	}
	return out
}

func (s *Style) String() string {
	parts := make([]string, len(s.decls))
	for i, d := range s.decls {
		parts[i] = d.String()
	}
	return strings.Join(parts, " ")
}

// cssName maps backgroundColor to background-color. Custom properties and
// names already in kebab case pass through.
func cssName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "--") {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// styleObject is the element.style proxy. Property reads and writes go
// straight to the style attribute.
type styleObject struct {
	p *Page
	n *html.Node
}

func (s *styleObject) Get(key string) goja.Value {
	switch key {
	case "cssText":
		v, _ := s.p.dom.Attr(s.n, "style")
		return s.p.vm.ToValue(v)
	case "setProperty":
		return s.p.vm.ToValue(func(prop, value string) { s.p.dom.SetStyle(s.n, prop, value) })
	case "getPropertyValue":
		return s.p.vm.ToValue(func(prop string) string { return s.p.dom.Style(s.n).Get(prop) })
	case "removeProperty":
		return s.p.vm.ToValue(func(prop string) string {
			old := s.p.dom.Style(s.n).Get(prop)
			s.p.dom.SetStyle(s.n, prop, "")
			return old
		})
	}
	return s.p.vm.ToValue(s.p.dom.Style(s.n).Get(key))
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		s.p.dom.SetAttr(s.n, "style", val.String())
		return true
	}
	value := ""
	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		value = val.String()
	}
	s.p.dom.SetStyle(s.n, key, value)
	return true
}

func (s *styleObject) Has(key string) bool {
	return s.p.dom.Style(s.n).Get(key) != ""
}

func (s *styleObject) Delete(key string) bool {
	s.p.dom.SetStyle(s.n, key, "")
	return true
}

func (s *styleObject) Keys() []string {
	return s.p.dom.Style(s.n).Properties()
}
