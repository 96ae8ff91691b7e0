package affect

import (
	"strconv"
	"strings"
	"time"

	"calmpage/engine"
	"calmpage/palette"
	"golang.org/x/net/html"
)

const (
	SummaryID  = "adhd-summary"
	FocusClass = "adhd-focus"

	// WheelThrottle is the minimum gap between two wheel-driven focus moves.
	WheelThrottle = 300 * time.Millisecond
)

var defaultLinkColor = palette.RGB{R: 0x15, G: 0x65, B: 0xC0}

const adhdCSS = `footer, nav { display: none !important; }
a, a:visited { border-radius: 4px; padding: 2px 4px; text-decoration: underline !important; }
p.adhd-focus { opacity: 1 !important; }
p:not(.adhd-focus) { opacity: 0.4 !important; transition: opacity 0.25s; }
figure, figure *, img { opacity: 1 !important; filter: none !important; }
#adhd-summary { border: 1px solid #ccc; padding: 12px; margin-bottom: 24px; background: #f9f9f9; font-family: sans-serif; }
#adhd-summary h2 { margin-top: 0; font-size: 1.2em; }
#adhd-summary table { width: 100%; border-collapse: collapse; }
#adhd-summary td { padding: 4px 8px; border-bottom: 1px solid #ddd; }
`

// ADHD hides page chrome, builds a heading summary, lets the reader step
// through paragraphs one at a time and hover-gates GIFs.
type ADHD struct {
	gates      *engine.Gatekeeper
	summary    *html.Node
	rows       *html.Node
	paragraphs []*html.Node
	seen       map[*html.Node]bool
	current    int
	lastWheel  time.Time
	background palette.RGB
}

func NewADHD() *ADHD { return &ADHD{current: -1} }

func (m *ADHD) Name() string { return NameADHD }

func (m *ADHD) Style() engine.StyleSpec { return styleSpec(NameADHD, adhdCSS) }

func (m *ADHD) Gates() *engine.Gatekeeper { return m.gates }

// Focused returns the paragraph holding the focus class, if any.
func (m *ADHD) Focused() *html.Node {
	if m.current < 0 || m.current >= len(m.paragraphs) {
		return nil
	}
	return m.paragraphs[m.current]
}

func (m *ADHD) Enable(s *engine.Session) error {
	m.reset()
	m.background = pageBackground(s.Doc)
	m.gates = engine.NewGatekeeper(s.Context(), s.Doc, s.Ledger, engine.GateConfig{
		Namespace:    NameADHD,
		ImageTrigger: engine.TriggerHover,
		VideoTrigger: engine.TriggerClick,
		Frames:       s.Frames,
	})
	s.Detect(
		func(n *html.Node) bool { return m.linkColor(s, n) },
		func(n *html.Node) bool { return m.heading(s, n) },
		func(n *html.Node) bool { return m.paragraph(s, n) },
		m.gates.GateImage,
	)
	s.Listen(s.Doc.Root(), engine.EventKeyDown, func(e *engine.Event) {
		switch e.Key {
		case "ArrowDown", "PageDown":
			m.step(s, 1)
			e.PreventDefault()
		case "ArrowUp", "PageUp":
			m.step(s, -1)
			e.PreventDefault()
		}
	})
	s.Listen(s.Doc.Root(), engine.EventWheel, func(e *engine.Event) {
		now := e.Time
		if !m.lastWheel.IsZero() && now.Sub(m.lastWheel) < WheelThrottle {
			return
		}
		if e.DeltaY > 0 {
			m.step(s, 1)
		} else {
			m.step(s, -1)
		}
		m.lastWheel = now
		e.PreventDefault()
	})
	return nil
}

func (m *ADHD) Disable(*engine.Session) {
	if m.gates != nil {
		m.gates.DisposeAll()
	}
	m.reset()
}

func (m *ADHD) reset() {
	m.gates = nil
	m.summary, m.rows = nil, nil
	m.paragraphs = nil
	m.seen = map[*html.Node]bool{}
	m.current = -1
	m.lastWheel = time.Time{}
}

// pageBackground is the first parseable background of body or html,
// white otherwise.
func pageBackground(doc *engine.Document) palette.RGB {
	for _, n := range []*html.Node{doc.Body(), doc.DocumentElement()} {
		if n == nil {
			continue
		}
		if c, ok := palette.Parse(doc.ComputedValue(n, "background-color")); ok {
			return c
		}
	}
	return palette.RGB{R: 255, G: 255, B: 255}
}

func (m *ADHD) linkColor(s *engine.Session, n *html.Node) bool {
	if !engine.IsElement(n, "a") || !engine.HasAttr(n, "href") || engine.IsOwned(n) {
		return false
	}
	if s.Ledger.Captured(n, engine.StyleField("color")) {
		return false
	}
	link, ok := palette.Parse(s.Doc.ComputedValue(n, "color"))
	if !ok {
		link = defaultLinkColor
	}
	s.Ledger.SetStyle(n, "color", palette.LinkColorFor(m.background, link).Hex()+" !important")
	return true
}

func headingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode || len(n.Data) != 2 || (n.Data[0] != 'h' && n.Data[0] != 'H') {
		return 0
	}
	level, err := strconv.Atoi(n.Data[1:])
	if err != nil || level < 1 || level > 6 {
		return 0
	}
	return level
}

func (m *ADHD) heading(s *engine.Session, n *html.Node) bool {
	level := headingLevel(n)
	if level == 0 || level > 4 || engine.IsOwned(n) || s.Ledger.IsDone(n) {
		return false
	}
	text := engine.VisibleText(n)
	if text == "" {
		return false
	}
	s.Ledger.MarkDone(n)
	m.ensureSummary(s)
	if m.rows == nil {
		return false
	}
	cell := s.Doc.CreateElement("td", "style", "padding-left: "+strconv.Itoa((level-1)*16)+"px")
	cell.AppendChild(s.Doc.CreateText(text))
	row := s.Doc.CreateElement("tr")
	row.AppendChild(cell)
	s.Doc.AppendChild(m.rows, row)
	return true
}

// ensureSummary inserts the summary box at the top of body the first time
// a heading is found.
func (m *ADHD) ensureSummary(s *engine.Session) {
	if m.summary != nil {
		return
	}
	body := s.Doc.Body()
	if body == nil {
		return
	}
	box := s.Doc.CreateElement("div", "id", SummaryID, engine.OwnedAttr, "1")
	title := s.Doc.CreateElement("h2")
	title.AppendChild(s.Doc.CreateText("Summary"))
	box.AppendChild(title)
	table := s.Doc.CreateElement("table")
	box.AppendChild(table)
	m.summary, m.rows = box, table
	s.Inject(body, box, firstElementChild(body))
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (m *ADHD) paragraph(s *engine.Session, n *html.Node) bool {
	if !engine.IsElement(n, "p") || engine.IsOwned(n) || m.seen[n] {
		return false
	}
	m.seen[n] = true
	m.paragraphs = append(m.paragraphs, n)
	if m.current < 0 {
		m.focus(s, 0)
	}
	return true
}

func (m *ADHD) step(s *engine.Session, delta int) {
	next := m.current + delta
	if next < 0 || next >= len(m.paragraphs) {
		return
	}
	m.focus(s, next)
}

func (m *ADHD) focus(s *engine.Session, idx int) {
	if prev := m.Focused(); prev != nil {
		s.Doc.RemoveClass(prev, FocusClass)
	}
	m.current = idx
	p := m.Focused()
	if p == nil {
		return
	}
	s.Ledger.Capture(p, engine.AttrField("class"))
	s.Doc.AddClass(p, FocusClass)
}

// SummaryText lists the summary rows, one per line.
func (m *ADHD) SummaryText() string {
	if m.rows == nil {
		return ""
	}
	var lines []string
	for _, td := range engine.QueryAll(m.rows, "td") {
		lines = append(lines, engine.VisibleText(td))
	}
	return strings.Join(lines, "\n")
}
