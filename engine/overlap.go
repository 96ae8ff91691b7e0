package engine

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// WidgetAttr marks elements the engine injects as floating widgets; the
// overlap detector looks through them.
const WidgetAttr = "data-calm-widget"

// OwnedAttr marks content the engine inserted into the page, such as
// captions and summaries. Detectors leave owned subtrees alone.
const OwnedAttr = "data-calm-owned"

// IsOwned reports whether n sits inside engine-inserted content.
func IsOwned(n *html.Node) bool {
	return Closest(n, "["+OwnedAttr+"], ["+GateAttr+"], ["+WidgetAttr+"]") != nil
}

const (
	maxSampleInset = 4.0
	minOverlapText = 3
)

type point struct{ x, y float64 }

func samplePoints(r Rect) []point {
	inset := math.Min(maxSampleInset, math.Min(r.W/4, r.H/4))
	return []point{
		{r.X + r.W/2, r.Y + r.H/2},
		{r.X + inset, r.Y + inset},
		{r.X + r.W - inset, r.Y + inset},
		{r.X + inset, r.Y + r.H - inset},
		{r.X + r.W - inset, r.Y + r.H - inset},
	}
}

// OverlapsMedia reports whether anything other than n and its descendants
// is painted under the sampled points of n's box: an image, a control, a
// background image or another piece of visible text. Without a layout, or
// for an empty box, it reports false.
func (d *Document) OverlapsMedia(n *html.Node) bool {
	r, err := d.Rect(n)
	if err != nil || r.Empty() {
		return false
	}
	vp := d.layout.Viewport()
	for _, p := range samplePoints(r) {
		if !vp.Contains(p.x, p.y) {
			continue
		}
		for _, hit := range d.layout.ElementsAt(p.x, p.y) {
			if Contains(n, hit) || Closest(hit, "["+WidgetAttr+"]") != nil {
				continue
			}
			if d.isOverlayHazard(hit) {
				return true
			}
		}
	}
	return false
}

func (d *Document) isOverlayHazard(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Img, atom.Picture, atom.Svg, atom.Canvas, atom.Video:
		return true
	}
	if isControl(n) {
		return true
	}
	if bg := strings.TrimSpace(d.ComputedValue(n, "background-image")); bg != "" && bg != "none" {
		return true
	}
	return d.carriesVisibleText(n)
}

func isControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Textarea, atom.Select, atom.Button, atom.Option:
		return true
	}
	if v, ok := LookupAttr(n, "contenteditable"); ok && !strings.EqualFold(v, "false") {
		return true
	}
	return strings.EqualFold(Attr(n, "role"), "button")
}

// carriesVisibleText looks at n's own text children only; text inside
// child elements is judged when those elements are hit.
func (d *Document) carriesVisibleText(n *html.Node) bool {
	if Closest(n, "button, label, form") != nil {
		return false
	}
	var own strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			own.WriteString(c.Data)
		}
	}
	text := strings.Join(strings.Fields(own.String()), " ")
	if utf8.RuneCountInString(text) < minOverlapText {
		return false
	}
	return !d.IsHidden(n)
}
