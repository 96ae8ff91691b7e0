package affect

import (
	"strconv"
	"strings"

	"calmpage/engine"
	"calmpage/palette"
	"calmpage/prose"
	"golang.org/x/net/html"
)

// FlagStripInlineStyles removes page inline styles; on unless turned off.
const FlagStripInlineStyles = "strip-inline-styles"

const (
	PrefBackground = "backgroundColor"
	PrefFontSize   = "fontSizePx"
	PrefAcronyms   = "acronyms"

	// Keys the older settings store used.
	legacyPrefBackground = "dyslexia_background"
	legacyPrefFontSize   = "dyslexia_fontsize"

	CaptionClass = "calm-heading-caption"
)

const distractingSelector = "nav, header, footer, aside, .sidebar, .ad, .ads, .advertisement, " +
	"[role='banner'], [role='complementary'], .cookie-banner, .popup, .modal, .overlay, .sticky, .fixed"

const columnSelector = "[class*='col'], .column, .columns"

const dyslexiaMotionCSS = `* { animation: none !important; transition: none !important; scroll-behavior: auto !important; }`

const dyslexiaCSS = `html.dyslexia-mode body {
  background: var(--dyslexia-bg, #faf7f0) !important;
  color: #1e1e1e !important;
  font-family: OpenDyslexic, "Comic Sans MS", Verdana, Tahoma, sans-serif !important;
  font-size: var(--dyslexia-font-size, 18px) !important;
  line-height: 1.7 !important;
  letter-spacing: 0.05em !important;
  word-spacing: 0.12em !important;
  max-width: 70ch; margin: 0 auto !important;
}
html.dyslexia-mode p, html.dyslexia-mode li { text-align: left !important; }
html.dyslexia-mode h1, html.dyslexia-mode h2, html.dyslexia-mode h3 { line-height: 1.3 !important; }
.calm-heading-caption { font-weight: bold; font-size: 1.1em; margin: 4px 0 12px; }
`

// Dyslexia restyles the page for easier reading and sentence-cases
// headings written in capitals.
type Dyslexia struct {
	acronyms prose.Acronyms
	captions []*html.Node
}

func NewDyslexia() *Dyslexia { return &Dyslexia{acronyms: prose.DefaultAcronyms} }

func (m *Dyslexia) Name() string { return NameDyslexia }

func (m *Dyslexia) Style() engine.StyleSpec { return styleSpec(NameDyslexia, dyslexiaCSS) }

func (m *Dyslexia) PreferenceKeys() []string {
	return []string{PrefBackground, PrefFontSize, PrefAcronyms, legacyPrefBackground, legacyPrefFontSize}
}

// Captions returns the heading captions inserted next to headings that sit
// over media.
func (m *Dyslexia) Captions() []*html.Node { return m.captions }

func (m *Dyslexia) Enable(s *engine.Session) error {
	m.captions = nil
	m.acronyms = acronymsFromPrefs(s.Prefs)
	s.SetRootClass("dyslexia-mode", true)
	s.InjectStyle("calm-dyslexia-motion", dyslexiaMotionCSS)
	m.applyPage(s)
	s.Detect(
		func(n *html.Node) bool { return stripInline(s, n) },
		func(n *html.Node) bool { return hideDistracting(s, n) },
		func(n *html.Node) bool { return flattenColumn(s, n) },
		func(n *html.Node) bool { return m.heading(s, n) },
	)
	return nil
}

func (m *Dyslexia) Disable(*engine.Session) { m.captions = nil }

func (m *Dyslexia) FlagChanged(s *engine.Session, name string, _ bool) {
	if name == FlagStripInlineStyles {
		m.reapply(s)
	}
}

// reapply undoes every body change and sweeps again under the current flags.
func (m *Dyslexia) reapply(s *engine.Session) {
	body := s.Doc.Body()
	if body == nil {
		return
	}
	for _, c := range m.captions {
		s.Doc.RemoveNode(c)
	}
	m.captions = nil
	s.Ledger.RestoreAll(body)
	m.applyPage(s)
	s.Loop.Sweep(body)
}

// applyPage sets the reading variables on <html> and unblocks scrolling.
func (m *Dyslexia) applyPage(s *engine.Session) {
	root := s.Doc.DocumentElement()
	if root == nil {
		return
	}
	if bg, ok := firstPrefString(s.Prefs, PrefBackground, legacyPrefBackground); ok {
		if c, parsed := palette.Parse(bg); parsed {
			bg = c.Hex()
		}
		s.Ledger.SetStyle(root, "--dyslexia-bg", bg)
	}
	if px, ok := firstPrefNumber(s.Prefs, PrefFontSize, legacyPrefFontSize); ok && px > 0 {
		s.Ledger.SetStyle(root, "--dyslexia-font-size", strconv.FormatFloat(px, 'f', -1, 64)+"px")
	}
	s.Ledger.SetStyle(root, "overflow", "auto")
	if body := s.Doc.Body(); body != nil {
		s.Ledger.SetStyle(body, "overflow", "auto")
	}
}

func firstPrefString(prefs map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := engine.PrefString(prefs, k); ok {
			return v, true
		}
	}
	return "", false
}

func firstPrefNumber(prefs map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := engine.PrefNumber(prefs, k); ok {
			return v, true
		}
	}
	return 0, false
}

// acronymsFromPrefs extends the default acronym set with a comma separated
// list or a list of strings.
func acronymsFromPrefs(prefs map[string]any) prose.Acronyms {
	var extra []string
	switch v := prefs[PrefAcronyms].(type) {
	case string:
		extra = strings.Split(v, ",")
	case []string:
		extra = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				extra = append(extra, s)
			}
		}
	}
	if len(extra) == 0 {
		return prose.DefaultAcronyms
	}
	out := make(prose.Acronyms, len(prose.DefaultAcronyms)+len(extra))
	for k := range prose.DefaultAcronyms {
		out[k] = struct{}{}
	}
	for k := range prose.NewAcronyms(extra...) {
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

func stripInline(s *engine.Session, n *html.Node) bool {
	if !flagOn(s.State, FlagStripInlineStyles) || !engine.HasAttr(n, "style") {
		return false
	}
	if engine.IsElement(n, "html", "body") || skipContent(n) || s.Ledger.Touched(n) {
		return false
	}
	s.Ledger.RemoveAttr(n, "style")
	return true
}

func hideDistracting(s *engine.Session, n *html.Node) bool {
	if skipContent(n) || !engine.Matches(n, distractingSelector) {
		return false
	}
	if s.Ledger.Captured(n, engine.StyleField("display")) {
		return false
	}
	s.Ledger.SetStyle(n, "display", "none !important")
	return true
}

func flattenColumn(s *engine.Session, n *html.Node) bool {
	if skipContent(n) || !engine.Matches(n, columnSelector) {
		return false
	}
	if s.Ledger.Captured(n, engine.StyleField("min-width")) {
		return false
	}
	s.Ledger.SetStyle(n, "min-width", "600px")
	s.Ledger.SetStyle(n, "width", "100%")
	return true
}
