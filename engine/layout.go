package engine

import (
	"fmt"
	"sort"

	"golang.org/x/net/html"
)

// Rect is a box in CSS pixels relative to the viewport.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r Rect) String() string {
	return fmt.Sprintf("%.0fx%.0f@%.0f,%.0f", r.W, r.H, r.X, r.Y)
}

// Layout answers geometric questions about a rendered document.
type Layout interface {
	Rect(n *html.Node) (Rect, bool)
	Viewport() Rect
	// ElementsAt lists the elements painted at a point, topmost first.
	ElementsAt(x, y float64) []*html.Node
}

// Rect returns the box of n from the attached layout.
func (d *Document) Rect(n *html.Node) (Rect, error) {
	if d.layout == nil {
		return Rect{}, ErrNoLayout
	}
	if !d.IsAttached(n) {
		return Rect{}, ErrDetached
	}
	r, ok := d.layout.Rect(n)
	if !ok {
		return Rect{}, fmt.Errorf("engine: no box for <%s>: %w", n.Data, ErrNoLayout)
	}
	return r, nil
}

type placedBox struct {
	rect Rect
	z    int
	seq  int
}

// BoxLayout is a Layout built from explicitly placed rectangles. Boxes with
// a higher z paint on top; among equal z the later placement wins. Nodes
// that have left the document are never reported.
type BoxLayout struct {
	viewport Rect
	boxes    map[*html.Node]placedBox
	seq      int
}

func NewBoxLayout(viewport Rect) *BoxLayout {
	return &BoxLayout{viewport: viewport, boxes: map[*html.Node]placedBox{}}
}

// Place records the box of n at z-index 0.
func (b *BoxLayout) Place(n *html.Node, r Rect) *BoxLayout {
	return b.PlaceZ(n, r, 0)
}

func (b *BoxLayout) PlaceZ(n *html.Node, r Rect, z int) *BoxLayout {
	b.seq++
	b.boxes[n] = placedBox{rect: r, z: z, seq: b.seq}
	return b
}

func (b *BoxLayout) Forget(n *html.Node) { delete(b.boxes, n) }

func (b *BoxLayout) Viewport() Rect { return b.viewport }

func (b *BoxLayout) Rect(n *html.Node) (Rect, bool) {
	box, ok := b.boxes[n]
	if !ok || !inDocument(n) {
		return Rect{}, false
	}
	return box.rect, true
}

func (b *BoxLayout) ElementsAt(x, y float64) []*html.Node {
	type hit struct {
		n   *html.Node
		box placedBox
	}
	var hits []hit
	for n, box := range b.boxes {
		if box.rect.Contains(x, y) && inDocument(n) {
			hits = append(hits, hit{n, box})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].box.z != hits[j].box.z {
			return hits[i].box.z > hits[j].box.z
		}
		return hits[i].box.seq > hits[j].box.seq
	})
	out := make([]*html.Node, len(hits))
	for i, h := range hits {
		out[i] = h.n
	}
	return out
}

func inDocument(n *html.Node) bool {
	top := n
	for top != nil && top.Parent != nil {
		top = top.Parent
	}
	return top != nil && top.Type == html.DocumentNode
}
