package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrBadPosition rejects an insertAdjacent position outside the four names
var ErrBadPosition = errors.New("invalid insert position")

// Insert positions relative to a target element
const (
	BeforeBegin = "beforebegin"
	AfterBegin  = "afterbegin"
	BeforeEnd   = "beforeend"
	AfterEnd    = "afterend"
)

// DOM is the page document. It is owned by the page loop; the host reaches it
// through Page.Mutate.
type DOM struct {
	doc      *goquery.Document
	onMutate func(n *html.Node, m Mutation)
}

// ParseDOM parses a full HTML document
func ParseDOM(doc string) (*DOM, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &DOM{doc: d}, nil
}

// Document exposes the underlying goquery document for read access
func (d *DOM) Document() *goquery.Document {
	return d.doc
}

// Render serializes the whole document
func (d *DOM) Render() string {
	out, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return out
}

// Title returns the document title
func (d *DOM) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// SetTitle replaces the title, creating the element when absent
func (d *DOM) SetTitle(title string) {
	if n := d.doc.Find("title").First(); n.Length() > 0 {
		d.SetText(n.Get(0), title)
		return
	}
	head := d.Head()
	if head == nil {
		return
	}
	t := d.CreateElement("title")
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	d.Append(head, t)
}

// Body returns the body element
func (d *DOM) Body() *html.Node {
	return d.first("body")
}

// Head returns the head element
func (d *DOM) Head() *html.Node {
	return d.first("head")
}

func (d *DOM) first(tag string) *html.Node {
	s := d.doc.Find(tag).First()
	if s.Length() == 0 {
		return nil
	}
	return s.Get(0)
}

// ByID returns the first element with the given id
func (d *DOM) ByID(id string) *html.Node {
	var found *html.Node
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("id"); v == id {
			found = s.Get(0)
			return false
		}
		return true
	})
	return found
}

// Compile parses a CSS selector
func Compile(selector string) (cascadia.Sel, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

// Query returns descendants of root matching selector in document order.
// A nil root searches the whole document.
func (d *DOM) Query(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = d.doc.Get(0)
	}
	return cascadia.QueryAll(root, sel), nil
}

// QueryFirst returns the first descendant of root matching selector
func (d *DOM) QueryFirst(root *html.Node, selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = d.doc.Get(0)
	}
	return cascadia.Query(root, sel), nil
}

// XPath evaluates an XPath expression and keeps element results
func (d *DOM) XPath(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.doc.Get(0), expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out, nil
}

// CreateElement returns a detached element
func (d *DOM) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// Attr returns an attribute value
func (d *DOM) Attr(n *html.Node, name string) (string, bool) {
	return sel(n).Attr(strings.ToLower(name))
}

// SetAttr sets an attribute
func (d *DOM) SetAttr(n *html.Node, name, value string) {
	name = strings.ToLower(name)
	sel(n).SetAttr(name, value)
	d.notify(n, Mutation{Type: "attribute", Property: name, Value: value})
}

// RemoveAttr removes an attribute
func (d *DOM) RemoveAttr(n *html.Node, name string) {
	name = strings.ToLower(name)
	if _, ok := sel(n).Attr(name); !ok {
		return
	}
	sel(n).RemoveAttr(name)
	d.notify(n, Mutation{Type: "attribute", Property: name})
}

// Text returns the concatenated text of n
func (d *DOM) Text(n *html.Node) string {
	return sel(n).Text()
}

// SetText replaces the children of n with a single text node
func (d *DOM) SetText(n *html.Node, text string) {
	sel(n).SetText(text)
	d.notify(n, Mutation{Type: "text", Value: text})
}

// InnerHTML serializes the children of n
func (d *DOM) InnerHTML(n *html.Node) string {
	out, err := sel(n).Html()
	if err != nil {
		return ""
	}
	return out
}

// SetInnerHTML replaces the children of n with parsed markup
func (d *DOM) SetInnerHTML(n *html.Node, markup string) {
	sel(n).SetHtml(markup)
	d.notify(n, Mutation{Type: "html", Value: markup})
}

// OuterHTML serializes n itself
func (d *DOM) OuterHTML(n *html.Node) string {
	out, err := goquery.OuterHtml(sel(n))
	if err != nil {
		return ""
	}
	return out
}

// Append moves child to the end of parent
func (d *DOM) Append(parent, child *html.Node) {
	detach(child)
	parent.AppendChild(child)
	d.notify(parent, Mutation{Type: "childList", Value: describe(child)})
}

// Remove detaches n from its parent
func (d *DOM) Remove(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	detach(n)
	d.notify(parent, Mutation{Type: "childList", Value: describe(n)})
}

// InsertHTML parses markup and inserts it at pos relative to n
func (d *DOM) InsertHTML(n *html.Node, pos, markup string) error {
	s := sel(n)
	target := n
	switch strings.ToLower(pos) {
	case BeforeBegin:
		if n.Parent == nil {
			return nil
		}
		s.BeforeHtml(markup)
		target = n.Parent
	case AfterBegin:
		s.PrependHtml(markup)
	case BeforeEnd:
		s.AppendHtml(markup)
	case AfterEnd:
		if n.Parent == nil {
			return nil
		}
		s.AfterHtml(markup)
		target = n.Parent
	default:
		return fmt.Errorf("%w: %q", ErrBadPosition, pos)
	}
	d.notify(target, Mutation{Type: "childList", Value: markup})
	return nil
}

// InsertNode moves child to pos relative to n
func (d *DOM) InsertNode(n *html.Node, pos string, child *html.Node) error {
	target := n
	switch strings.ToLower(pos) {
	case BeforeBegin:
		if n.Parent == nil {
			return nil
		}
		detach(child)
		n.Parent.InsertBefore(child, n)
		target = n.Parent
	case AfterBegin:
		detach(child)
		n.InsertBefore(child, n.FirstChild)
	case BeforeEnd:
		detach(child)
		n.AppendChild(child)
	case AfterEnd:
		if n.Parent == nil {
			return nil
		}
		detach(child)
		n.Parent.InsertBefore(child, n.NextSibling)
		target = n.Parent
	default:
		return fmt.Errorf("%w: %q", ErrBadPosition, pos)
	}
	d.notify(target, Mutation{Type: "childList", Value: describe(child)})
	return nil
}

// Style returns the parsed inline style of n
func (d *DOM) Style(n *html.Node) *Style {
	v, _ := d.Attr(n, "style")
	return parseStyle(v)
}

// SetStyle writes a style property, removing it when value is empty
func (d *DOM) SetStyle(n *html.Node, property, value string) {
	st := d.Style(n)
	if value == "" {
		st.Remove(property)
	} else {
		st.Set(property, value)
	}
	sel(n).SetAttr("style", st.String())
	d.notify(n, Mutation{Type: "style", Property: property, Value: value})
}

// Contains reports whether n is attached under the document root
func (d *DOM) Contains(n *html.Node) bool {
	root := d.doc.Get(0)
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

func (d *DOM) notify(n *html.Node, m Mutation) {
	m.Target = describe(n)
	if d.onMutate != nil {
		d.onMutate(n, m)
	}
}

// sel wraps a single node for goquery manipulation
func sel(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// describe renders n as tag#id.class for logs and mutation records
func describe(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			if a.Val != "" {
				b.WriteString("#" + a.Val)
			}
		case "class":
			for _, c := range strings.Fields(a.Val) {
				b.WriteString("." + c)
			}
		}
	}
	return b.String()
}
