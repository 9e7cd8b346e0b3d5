// Package dom holds an in-memory host document built on golang.org/x/net/html.
//
// A Document behaves like the small slice of the browser DOM the overlay
// engine needs: snapshots for read-only inspection, id lookups, fragment
// insertion, class/content patches and subtree mutation notifications in the
// spirit of MutationObserver{childList, subtree}.
package dom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Patch describes a display update applied to one element.
type Patch struct {
	// Require lists ids that must all be present for the patch to apply.
	Require []string
	// ID of the element whose class (and optionally content) is replaced.
	ID    string
	Class string
	// Inner replaces the element's children when non-empty.
	Inner string
}

type subscription struct {
	id   int
	root *html.Node
	fn   func()
}

// Document is an in-memory host document. It is safe for concurrent use;
// subscriber callbacks run on the mutating goroutine after the lock is released.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	location string
	subs     []*subscription
	nextSub  int
}

// New wraps an already parsed document node.
func New(root *html.Node, location string) *Document {
	return &Document{root: root, location: location}
}

// Parse reads an HTML document from r.
func Parse(r io.Reader, location string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root, location), nil
}

// ParseString is Parse over a string.
func ParseString(s, location string) (*Document, error) {
	return Parse(strings.NewReader(s), location)
}

// Location returns the URL the document was loaded from.
func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

// SetLocation simulates a client-side navigation.
func (d *Document) SetLocation(u string) {
	d.mu.Lock()
	d.location = u
	d.mu.Unlock()
}

// HTML serializes the current tree.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Render(d.root)
}

// Snapshot returns a detached deep copy of the tree together with the location.
func (d *Document) Snapshot(_ context.Context) (*html.Node, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Clone(d.root), d.location, nil
}

// Exists reports whether an element with the given id is in the tree.
func (d *Document) Exists(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ByID(d.root, id) != nil, nil
}

// Count returns how many elements carry the given id.
func (d *Document) Count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.ElementNode && Attr(x, "id") == id {
			n++
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return n
}

// Insert parses fragment in the context of the element at parent and inserts
// the resulting nodes before the element at before. A nil before appends.
func (d *Document) Insert(_ context.Context, parent, before Path, fragment string) error {
	d.mu.Lock()
	p := parent.Resolve(d.root)
	if p == nil {
		d.mu.Unlock()
		return fmt.Errorf("dom: insert: no element at %s", parent)
	}
	var ref *html.Node
	if before != nil {
		ref = before.Resolve(d.root)
		if ref == nil || ref.Parent != p {
			d.mu.Unlock()
			return fmt.Errorf("dom: insert: %s is not a child of %s", before, parent)
		}
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), p)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("dom: insert: parse fragment: %w", err)
	}
	for _, n := range nodes {
		p.InsertBefore(n, ref)
	}
	fns := d.listenersLocked(p)
	d.mu.Unlock()
	notify(fns)
	return nil
}

// EnsureStyle appends <style id=id>css</style> to the head unless an element
// with that id already exists.
func (d *Document) EnsureStyle(_ context.Context, id, css string) error {
	d.mu.Lock()
	if ByID(d.root, id) != nil {
		d.mu.Unlock()
		return nil
	}
	head := findElement(d.root, atom.Head)
	if head == nil {
		head = findElement(d.root, atom.Html)
	}
	if head == nil {
		d.mu.Unlock()
		return fmt.Errorf("dom: no head element for style %q", id)
	}
	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.AppendChild(style)
	fns := d.listenersLocked(head)
	d.mu.Unlock()
	notify(fns)
	return nil
}

// Patch applies p. It returns false, leaving the tree untouched, when the
// target or any required element is missing.
func (d *Document) Patch(_ context.Context, p Patch) (bool, error) {
	d.mu.Lock()
	for _, id := range p.Require {
		if ByID(d.root, id) == nil {
			d.mu.Unlock()
			return false, nil
		}
	}
	target := ByID(d.root, p.ID)
	if target == nil {
		d.mu.Unlock()
		return false, nil
	}
	var nodes []*html.Node
	if p.Inner != "" {
		var err error
		nodes, err = html.ParseFragment(strings.NewReader(p.Inner), target)
		if err != nil {
			d.mu.Unlock()
			return false, fmt.Errorf("dom: patch %q: %w", p.ID, err)
		}
	}
	setAttr(target, "class", p.Class)
	if p.Inner != "" {
		for c := target.FirstChild; c != nil; {
			next := c.NextSibling
			target.RemoveChild(c)
			c = next
		}
		for _, n := range nodes {
			target.AppendChild(n)
		}
	}
	fns := d.listenersLocked(target)
	d.mu.Unlock()
	notify(fns)
	return true, nil
}

// Remove detaches the element with the given id. It reports whether one was found.
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	n := ByID(d.root, id)
	if n == nil || n.Parent == nil {
		d.mu.Unlock()
		return false
	}
	parent := n.Parent
	parent.RemoveChild(n)
	fns := d.listenersLocked(parent)
	d.mu.Unlock()
	notify(fns)
	return true
}

// Rerender replaces the children of every element matching sel with markup,
// the way a client-side framework throws away foreign nodes on re-render.
// It returns the number of elements replaced.
func (d *Document) Rerender(sel, markup string) (int, error) {
	d.mu.Lock()
	matches, err := QueryAll(d.root, sel)
	if err != nil {
		d.mu.Unlock()
		return 0, fmt.Errorf("dom: rerender %q: %w", sel, err)
	}
	var fns []func()
	for _, m := range matches {
		nodes, err := html.ParseFragment(strings.NewReader(markup), m)
		if err != nil {
			d.mu.Unlock()
			return 0, fmt.Errorf("dom: rerender %q: %w", sel, err)
		}
		for c := m.FirstChild; c != nil; {
			next := c.NextSibling
			m.RemoveChild(c)
			c = next
		}
		for _, n := range nodes {
			m.AppendChild(n)
		}
		fns = append(fns, d.listenersLocked(m)...)
	}
	d.mu.Unlock()
	notify(fns)
	return len(matches), nil
}

// Subscribe registers fn for every mutation inside the subtree rooted at the
// element at root. The returned func cancels the subscription.
func (d *Document) Subscribe(_ context.Context, root Path, fn func()) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := root.Resolve(d.root)
	if n == nil {
		return nil, fmt.Errorf("dom: subscribe: no element at %s", root)
	}
	d.nextSub++
	sub := &subscription{id: d.nextSub, root: n, fn: fn}
	d.subs = append(d.subs, sub)
	return func() { d.unsubscribe(sub.id) }, nil
}

func (d *Document) unsubscribe(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

func (d *Document) listenersLocked(target *html.Node) []func() {
	var fns []func()
	for _, s := range d.subs {
		if isAncestorOrSelf(s.root, target) {
			fns = append(fns, s.fn)
		}
	}
	return fns
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
