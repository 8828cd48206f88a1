// Package htmldriver implements browser.Driver over static HTML documents.
//
// It replays saved page snapshots (the debug artifacts written on aborted
// applications) without a browser: clicks, typing and option selection mutate
// an in-memory DOM, and a click on an element carrying data-goto="<key>"
// swaps in the document registered under that key. Scripts are recorded but
// not executed.
package htmldriver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/util"
)

const SnapshotURL = "about:snapshot"

var errStale = errors.New("stale element reference")

type Driver struct {
	mu          sync.Mutex
	pages       map[string]string
	doc         *goquery.Document
	url         string
	closed      bool
	navigations []string
	clicks      []string
	scripts     []string
}

// New returns a driver that serves pages by URL (or data-goto key). Nothing is
// loaded until Navigate or Load is called.
func New(pages map[string]string) *Driver {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &Driver{pages: cp}
}

// FromHTML returns a driver with a single document already loaded.
func FromHTML(doc string) (*Driver, error) {
	d := New(map[string]string{SnapshotURL: doc})
	if err := d.Load(SnapshotURL); err != nil {
		return nil, err
	}
	return d, nil
}

// AddPage registers (or replaces) a document.
func (d *Driver) AddPage(key, doc string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[key] = doc
}

// Load switches to a registered document without recording a navigation.
func (d *Driver) Load(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(key)
}

func (d *Driver) load(key string) error {
	src, ok := d.pages[key]
	if !ok {
		return fmt.Errorf("htmldriver: no page registered for %q", key)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("htmldriver: parse %q: %w", key, err)
	}
	d.doc = doc
	d.url = key
	return nil
}

// Navigations lists every URL passed to Navigate, in order.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Clicks lists a short description of every clicked element.
func (d *Driver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

func (d *Driver) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scripts...)
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrSessionLost
	}
	d.navigations = append(d.navigations, url)
	return d.load(url)
}

func (d *Driver) CurrentURL(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrSessionLost
	}
	return d.url, nil
}

func (d *Driver) FindOne(_ context.Context, within browser.Handle, sel browser.Selector) (browser.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.find(within, sel)
	if err != nil {
		return nil, err
	}
	if s.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", sel, browser.ErrNotFound)
	}
	return s.Nodes[0], nil
}

func (d *Driver) FindAll(_ context.Context, within browser.Handle, sel browser.Selector) ([]browser.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.find(within, sel)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Handle, 0, s.Length())
	for _, n := range s.Nodes {
		out = append(out, n)
	}
	return out, nil
}

// WaitFor never blocks: a static document cannot change by itself.
func (d *Driver) WaitFor(_ context.Context, sel browser.Selector, _ time.Duration) (browser.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.find(nil, sel)
	if err != nil {
		return nil, err
	}
	if s.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", sel, browser.ErrTimeout)
	}
	return s.Nodes[0], nil
}

func (d *Driver) find(within browser.Handle, sel browser.Selector) (*goquery.Selection, error) {
	if d.closed {
		return nil, browser.ErrSessionLost
	}
	if d.doc == nil {
		return nil, errors.New("htmldriver: no document loaded")
	}
	base := d.doc.Selection
	if within != nil {
		n, err := d.node(within)
		if err != nil {
			return nil, err
		}
		base = d.doc.FindNodes(n)
	} else if sel.By != browser.ByCSS {
		return nil, fmt.Errorf("htmldriver: %s needs a starting element", sel)
	}

	switch sel.By {
	case browser.ByCSS:
		return base.Find(sel.Value), nil
	case browser.ByParent:
		return base.Parent(), nil
	case browser.ByPrevSibling:
		return base.Prev(), nil
	case browser.ByClosest:
		return base.Closest(sel.Value), nil
	default:
		return nil, fmt.Errorf("htmldriver: unknown selector kind %d", sel.By)
	}
}

// node validates that h is an element of the current document.
func (d *Driver) node(h browser.Handle) (*html.Node, error) {
	n, ok := h.(*html.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("htmldriver: foreign handle %T", h)
	}
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	if d.doc == nil || len(d.doc.Nodes) == 0 || root != d.doc.Nodes[0] {
		return nil, errStale
	}
	return n, nil
}

func (d *Driver) Click(_ context.Context, h browser.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return err
	}
	d.clicks = append(d.clicks, describe(n))

	switch n.Data {
	case "label":
		if target := d.labelTarget(n); target != nil {
			d.activate(target)
		}
	case "input":
		d.activate(n)
	case "option":
		if sel := d.doc.FindNodes(n).Closest("select"); sel.Length() > 0 {
			selectOption(sel.Nodes[0], n)
		}
	}

	if g := d.doc.FindNodes(n).Closest("[data-goto]"); g.Length() > 0 {
		key, _ := g.Attr("data-goto")
		return d.load(key)
	}
	return nil
}

func (d *Driver) labelTarget(label *html.Node) *html.Node {
	if id := attr(label, "for"); id != "" {
		var found *html.Node
		d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, _ := s.Attr("id"); v == id {
				found = s.Nodes[0]
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	if in := d.doc.FindNodes(label).Find("input"); in.Length() > 0 {
		return in.Nodes[0]
	}
	return nil
}

func (d *Driver) activate(in *html.Node) {
	if in.Data != "input" {
		return
	}
	switch strings.ToLower(attr(in, "type")) {
	case "radio":
		name := attr(in, "name")
		if name != "" {
			d.doc.Find("input[type=radio]").Each(func(_ int, s *goquery.Selection) {
				if v, _ := s.Attr("name"); v == name {
					removeAttr(s.Nodes[0], "checked")
				}
			})
		}
		setAttr(in, "checked", "checked")
	case "checkbox":
		if _, ok := getAttr(in, "checked"); ok {
			removeAttr(in, "checked")
		} else {
			setAttr(in, "checked", "checked")
		}
	}
}

func (d *Driver) Clear(_ context.Context, h browser.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return err
	}
	return setValue(n, "")
}

func (d *Driver) Type(_ context.Context, h browser.Handle, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return err
	}
	return setValue(n, value(n)+text)
}

func (d *Driver) Select(_ context.Context, h browser.Handle, optionText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return err
	}
	want := strings.ToLower(util.CleanText(optionText))
	for _, o := range options(n) {
		if strings.ToLower(util.CleanText(textOf(o))) == want {
			selectOption(n, o)
			return nil
		}
	}
	return fmt.Errorf("option %q: %w", optionText, browser.ErrNotFound)
}

func (d *Driver) Attribute(_ context.Context, h browser.Handle, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return "", err
	}
	switch name {
	case "tagName":
		return strings.ToLower(n.Data), nil
	case "value":
		return value(n), nil
	case "selectedIndex":
		if n.Data != "select" {
			return "", nil
		}
		return strconv.Itoa(selectedIndex(n)), nil
	case "checked", "disabled":
		if _, ok := getAttr(n, name); ok {
			return "true", nil
		}
		return "", nil
	default:
		return attr(n, name), nil
	}
}

func (d *Driver) Text(_ context.Context, h browser.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return "", err
	}
	return util.CleanText(textOf(n)), nil
}

func (d *Driver) Visible(_ context.Context, h browser.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, browser.ErrSessionLost
	}
	n, err := d.node(h)
	if err != nil {
		return false, err
	}
	if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false, nil
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := getAttr(p, "hidden"); ok {
			return false, nil
		}
		if attr(p, "aria-hidden") == "true" {
			return false, nil
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (d *Driver) Exec(_ context.Context, _ browser.Handle, script string, _ ...any) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrSessionLost
	}
	d.scripts = append(d.scripts, script)
	return "", nil
}

func (d *Driver) Screenshot(_ context.Context) ([]byte, error) {
	return nil, browser.ErrUnsupported
}

func (d *Driver) PageSource(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", browser.ErrSessionLost
	}
	if d.doc == nil {
		return "", nil
	}
	return d.doc.Html()
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// ---- DOM helpers ----

func attr(n *html.Node, key string) string {
	v, _ := getAttr(n, key)
	return v
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

func value(n *html.Node) string {
	switch n.Data {
	case "textarea":
		return textOf(n)
	case "select":
		opts := options(n)
		i := selectedIndex(n)
		if i < 0 || i >= len(opts) {
			return ""
		}
		if v, ok := getAttr(opts[i], "value"); ok {
			return v
		}
		return util.CleanText(textOf(opts[i]))
	default:
		return attr(n, "value")
	}
}

func setValue(n *html.Node, v string) error {
	switch n.Data {
	case "input":
		setAttr(n, "value", v)
	case "textarea":
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		if v != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		}
	default:
		return fmt.Errorf("htmldriver: <%s> is not editable", n.Data)
	}
	return nil
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			if k.Type == html.ElementNode && k.Data == "option" {
				out = append(out, k)
				continue
			}
			walk(k)
		}
	}
	walk(sel)
	return out
}

func selectedIndex(sel *html.Node) int {
	opts := options(sel)
	if len(opts) == 0 {
		return -1
	}
	for i, o := range opts {
		if _, ok := getAttr(o, "selected"); ok {
			return i
		}
	}
	return 0
}

func selectOption(sel, opt *html.Node) {
	for _, o := range options(sel) {
		removeAttr(o, "selected")
	}
	setAttr(opt, "selected", "selected")
}

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	if id := attr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	if l := attr(n, "aria-label"); l != "" {
		b.WriteString("[" + l + "]")
	}
	return b.String()
}
