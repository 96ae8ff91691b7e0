package browser

import (
	"sort"
	"strconv"
	"strings"

	"calmpage/engine"
	"golang.org/x/net/html"
)

// IndexAttr temporarily tags elements in the browser so their boxes can be
// matched to the parsed tree.
const IndexAttr = "data-calm-idx"

const measureScript = `(() => {
  const all = document.querySelectorAll('*');
  const boxes = [];
  for (let i = 0; i < all.length; i++) {
    const el = all[i];
    el.setAttribute('` + IndexAttr + `', String(i));
    const r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) continue;
    const z = parseInt(getComputedStyle(el).zIndex, 10);
    boxes.push({i: i, x: r.left, y: r.top, w: r.width, h: r.height, z: isNaN(z) ? 0 : z});
  }
  return {w: window.innerWidth, h: window.innerHeight, boxes: boxes};
})()`

type measurement struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
	Boxes  []Box   `json:"boxes"`
}

// Box is the measured rectangle of the element tagged Index.
type Box struct {
	Index int     `json:"i"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Z     int     `json:"z"`
}

// Snapshot is a rendered page: tagged markup plus element boxes.
type Snapshot struct {
	URL    string
	HTML   string
	Width  float64
	Height float64
	Boxes  []Box
}

// Document parses the snapshot, strips the index tags and attaches a layout
// built from the measured boxes. Boxes are placed in document order so later
// elements paint over earlier ones at the same z-index.
func (s *Snapshot) Document(opts ...engine.Option) (*engine.Document, error) {
	root, err := html.Parse(strings.NewReader(s.HTML))
	if err != nil {
		return nil, err
	}
	nodes := untag(root)
	layout := engine.NewBoxLayout(engine.Rect{W: s.Width, H: s.Height})
	boxes := append([]Box(nil), s.Boxes...)
	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].Index < boxes[j].Index })
	for _, b := range boxes {
		if n, ok := nodes[b.Index]; ok {
			layout.PlaceZ(n, engine.Rect{X: b.X, Y: b.Y, W: b.W, H: b.H}, b.Z)
		}
	}
	opts = append([]engine.Option{engine.WithBaseURL(s.URL), engine.WithLayout(layout)}, opts...)
	return engine.NewDocument(root, opts...), nil
}

// untag removes IndexAttr from every element and returns the elements by
// index.
func untag(root *html.Node) map[int]*html.Node {
	out := map[int]*html.Node{}
	for _, n := range engine.Elements(root) {
		for i, a := range n.Attr {
			if a.Key != IndexAttr {
				continue
			}
			if idx, err := strconv.Atoi(a.Val); err == nil {
				out[idx] = n
			}
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			break
		}
	}
	return out
}
