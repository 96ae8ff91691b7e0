package engine

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var selectorCache sync.Map // string -> cascadia.SelectorGroup

func compile(sel string) (cascadia.SelectorGroup, bool) {
	if v, ok := selectorCache.Load(sel); ok {
		return v.(cascadia.SelectorGroup), true
	}
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil, false
	}
	selectorCache.Store(sel, group)
	return group, true
}

// QueryAll returns the descendants of root matching sel in document order.
// An invalid selector matches nothing.
func QueryAll(root *html.Node, sel string) []*html.Node {
	group, ok := compile(sel)
	if !ok || root == nil {
		return nil
	}
	return cascadia.QueryAll(root, group)
}

// Query returns the first descendant of root matching sel.
func Query(root *html.Node, sel string) *html.Node {
	group, ok := compile(sel)
	if !ok || root == nil {
		return nil
	}
	return cascadia.Query(root, group)
}

// Matches reports whether n itself matches sel.
func Matches(n *html.Node, sel string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	group, ok := compile(sel)
	return ok && group.Match(n)
}

// Closest walks from n up through its ancestors and returns the first
// element matching sel.
func Closest(n *html.Node, sel string) *html.Node {
	group, ok := compile(sel)
	if !ok {
		return nil
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && group.Match(cur) {
			return cur
		}
	}
	return nil
}

// GetElementByID finds the element with the given id.
func (d *Document) GetElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(d.root)
	return found
}

// QueryAll is the package QueryAll scoped to the whole document.
func (d *Document) QueryAll(sel string) []*html.Node { return QueryAll(d.root, sel) }
func (d *Document) Query(sel string) *html.Node      { return Query(d.root, sel) }
