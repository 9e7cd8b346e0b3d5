package overlay

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"abstatus/dom"
)

// Layout is the page shape the widget is injected into.
type Layout int

const (
	LayoutUnresolved Layout = iota
	LayoutCoach
	LayoutForm
)

func (l Layout) String() string {
	switch l {
	case LayoutCoach:
		return "coach"
	case LayoutForm:
		return "form"
	default:
		return "unresolved"
	}
}

// MarshalText renders the layout name in JSON.
func (l Layout) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// PageContext is the detected layout and its anchor nodes. Coach pages use
// Anchor (the widget goes right before it); form pages use Container and
// Before. The nodes belong to the snapshot they were detected in.
type PageContext struct {
	Layout    Layout
	Anchor    *html.Node
	Container *html.Node
	Before    *html.Node
}

// insertionPoint returns the parent and the reference sibling for the widget.
func (pc PageContext) insertionPoint() (parent, before *html.Node) {
	switch pc.Layout {
	case LayoutCoach:
		return pc.Anchor.Parent, pc.Anchor
	case LayoutForm:
		return pc.Container, pc.Before
	}
	return nil, nil
}

// DetectLayout probes doc for the Lenus coach settings or form editor shape.
func DetectLayout(doc *html.Node) PageContext {
	return defaultProfile.detect(doc)
}

func (cp *compiledProfile) detect(doc *html.Node) PageContext {
	if doc == nil {
		return PageContext{}
	}
	if cp.coachSection != nil && cp.coachHeading != nil {
		for _, section := range cp.coachSection.MatchAll(doc) {
			if section.Parent == nil || dom.Attr(section, "id") == ContainerID {
				continue
			}
			heading := cp.coachHeading.MatchFirst(section)
			if heading != nil && heading != section && strings.TrimSpace(dom.Text(heading)) == cp.coachText {
				return PageContext{Layout: LayoutCoach, Anchor: section}
			}
		}
	}
	if cp.formFirst != nil && cp.formNext != nil {
		first := cp.formFirst.MatchFirst(doc)
		next := cp.formNext.MatchFirst(doc)
		if first != nil && next != nil && first.Parent != nil && next.Parent == first.Parent {
			return PageContext{Layout: LayoutForm, Container: first.Parent, Before: next}
		}
	}
	return PageContext{}
}

// observeRoot picks the element the presence watcher subscribes to: the first
// configured root that matches, else body.
func (cp *compiledProfile) observeRoot(doc *html.Node) *html.Node {
	if doc == nil {
		return nil
	}
	for _, r := range cp.observe {
		n := r.sel.MatchFirst(doc)
		if n == nil {
			continue
		}
		if r.parent && n.Parent != nil && n.Parent.Type == html.ElementNode {
			return n.Parent
		}
		return n
	}
	return findBody(doc)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
