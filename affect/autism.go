package affect

import (
	"strings"
	"unicode/utf8"

	"calmpage/engine"
	"calmpage/prose"
	"golang.org/x/net/html"
)

// Autism sub-flags. All three are on unless turned off.
const (
	FlagHideExtras         = "hide-extras"
	FlagVerticalLayout     = "vertical-layout"
	FlagParagraphSummaries = "paragraph-summaries"
)

const (
	SummaryBoxClass = "autism-paragraph-summary-box"

	minSummaryText = 40
	maxSummaries   = 200
)

const (
	summaryScope   = "main, article, #content, .article"
	summaryExclude = "header, footer, nav, aside, form"
)

var autismFlagClasses = map[string]string{
	FlagHideExtras:         "autism-hide-extras",
	FlagVerticalLayout:     "autism-vertical-layout",
	FlagParagraphSummaries: "autism-paragraph-summaries-enabled",
}

const autismCSS = `html.autism-color-reduced { filter: saturate(0.6) contrast(0.95); }
html.autism-color-reduced body { background: #f7f5f0 !important; color: #2b2b2b !important; }
html.autism-hide-extras aside, html.autism-hide-extras iframe, html.autism-hide-extras .ad,
html.autism-hide-extras .ads, html.autism-hide-extras [role='complementary'] { display: none !important; }
html.autism-vertical-layout body * { float: none !important; }
html.autism-vertical-layout main, html.autism-vertical-layout article { max-width: 760px; margin: 0 auto; }
.autism-paragraph-summary-box { display: none; }
html.autism-paragraph-summaries-enabled .autism-paragraph-summary-box {
  display: block; margin: 0 0 8px; padding: 6px 10px; border-left: 4px solid #7a9cc6;
  background: #eef3f9; font-size: 0.9em; line-height: 1.6; letter-spacing: 0.02em;
}
`

// Autism softens colours, hides extras, linearises the layout and puts a
// short summary above each long paragraph.
type Autism struct {
	boxes []*html.Node
}

func NewAutism() *Autism { return &Autism{} }

func (m *Autism) Name() string { return NameAutism }

func (m *Autism) Style() engine.StyleSpec { return styleSpec(NameAutism, autismCSS) }

// Summaries returns the summary boxes currently in the page.
func (m *Autism) Summaries() []*html.Node { return m.boxes }

func (m *Autism) Enable(s *engine.Session) error {
	m.boxes = nil
	s.SetRootClass("autism-color-reduced", true)
	for _, flag := range []string{FlagHideExtras, FlagVerticalLayout, FlagParagraphSummaries} {
		if flagOn(s.State, flag) {
			s.SetRootClass(autismFlagClasses[flag], true)
		}
	}
	s.Detect(func(n *html.Node) bool { return m.summarize(s, n) })
	return nil
}

func (m *Autism) Disable(*engine.Session) { m.boxes = nil }

func (m *Autism) FlagChanged(s *engine.Session, name string, on bool) {
	class, ok := autismFlagClasses[name]
	if !ok {
		return
	}
	s.SetRootClass(class, on)
	if name != FlagParagraphSummaries {
		return
	}
	if on {
		if body := s.Doc.Body(); body != nil {
			s.Loop.Sweep(body)
		}
		return
	}
	m.removeSummaries(s)
}

func (m *Autism) removeSummaries(s *engine.Session) {
	for _, box := range m.boxes {
		p := box.Parent
		s.Doc.RemoveNode(box)
		s.Ledger.Restore(p)
	}
	m.boxes = nil
}

func (m *Autism) summarize(s *engine.Session, p *html.Node) bool {
	if !engine.IsElement(p, "p") || !flagOn(s.State, FlagParagraphSummaries) {
		return false
	}
	if s.Ledger.IsDone(p) || engine.IsOwned(p) || len(m.boxes) >= maxSummaries {
		return false
	}
	if engine.Query(s.Doc.Root(), summaryScope) != nil && engine.Closest(p, summaryScope) == nil {
		return false
	}
	if engine.Closest(p, summaryExclude) != nil {
		return false
	}
	text := strings.TrimSpace(engine.VisibleText(p))
	if utf8.RuneCountInString(text) < minSummaryText {
		return false
	}
	summary := prose.Summarize(text)
	if summary == "" {
		return false
	}
	if pos := strings.TrimSpace(s.Doc.ComputedValue(p, "position")); pos == "" || pos == "static" {
		s.Ledger.SetStyle(p, "position", "relative")
	}
	// Phrasing content only: a <div> inside <p> would close the paragraph
	// once the page is serialized and parsed again.
	box := s.Doc.CreateElement("span", "class", SummaryBoxClass, "role", "note", engine.OwnedAttr, "1")
	box.AppendChild(s.Doc.CreateText(summary))
	s.Ledger.MarkDone(p)
	s.Doc.InsertBefore(p, box, p.FirstChild)
	s.Track(box)
	m.boxes = append(m.boxes, box)
	return true
}
