package dom

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Path addresses an element by its element-only child indexes starting at
// the document node. It survives a serialize/parse round trip of the tree,
// which is what lets a snapshot node be found again in a live document.
type Path []int

// PathOf returns the path of n, or nil when n is not attached to a document.
func PathOf(n *html.Node) Path {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	var rev []int
	cur := n
	for cur.Parent != nil {
		rev = append(rev, elementIndex(cur))
		cur = cur.Parent
	}
	if cur.Type != html.DocumentNode {
		return nil
	}
	p := make(Path, len(rev))
	for i := range rev {
		p[i] = rev[len(rev)-1-i]
	}
	return p
}

// Resolve walks p from root. It returns nil when any step is out of range.
func (p Path) Resolve(root *html.Node) *html.Node {
	if root == nil || p == nil {
		return nil
	}
	cur := root
	for _, idx := range p {
		cur = nthElementChild(cur, idx)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return "/" + strings.Join(parts, "/")
}

func elementIndex(n *html.Node) int {
	idx := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

func nthElementChild(n *html.Node, idx int) *html.Node {
	if idx < 0 {
		return nil
	}
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

// Attr returns the value of the named attribute, matched case-insensitively.
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

// Text returns the concatenated text content of n, like textContent.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// ByID returns the first element with the given id attribute.
func ByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	if root.Type == html.ElementNode && Attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := ByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// QueryAll compiles sel and returns every match below root in document order.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(root), nil
}

// Query returns the first match of sel below root, or nil.
func Query(root *html.Node, sel string) (*html.Node, error) {
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchFirst(root), nil
}

// Clone deep-copies n. The copy has no parent or siblings.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(Clone(c))
	}
	return out
}

// Render serializes n back to HTML.
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isAncestorOrSelf(a, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == a {
			return true
		}
	}
	return false
}
