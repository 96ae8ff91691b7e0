package affect

import (
	"strings"

	"calmpage/engine"
	"golang.org/x/net/html"
)

const epilepsyCSS = `*, *::before, *::after {
  animation: none !important;
  transition: none !important;
  scroll-behavior: auto !important;
}
marquee, blink { display: none !important; }
`

var frozenStyle = []struct{ prop, value string }{
	{"animation", "none !important"},
	{"transition", "none !important"},
	{"scroll-behavior", "auto !important"},
}

// Epilepsy gates GIFs behind hover and videos behind a click, and stops
// CSS animation and transitions.
type Epilepsy struct {
	gates *engine.Gatekeeper
}

func NewEpilepsy() *Epilepsy { return &Epilepsy{} }

func (m *Epilepsy) Name() string { return NameEpilepsy }

func (m *Epilepsy) Style() engine.StyleSpec { return styleSpec(NameEpilepsy, epilepsyCSS) }

// Gates is the live gatekeeper while the mode is enabled.
func (m *Epilepsy) Gates() *engine.Gatekeeper { return m.gates }

func (m *Epilepsy) Enable(s *engine.Session) error {
	m.gates = engine.NewGatekeeper(s.Context(), s.Doc, s.Ledger, engine.GateConfig{
		Namespace:    NameEpilepsy,
		ImageTrigger: engine.TriggerHover,
		VideoTrigger: engine.TriggerClick,
		Frames:       s.Frames,
	})
	s.Detect(m.gates.GateImage, m.gates.GateVideo, freezeDetector(s))
	return nil
}

func (m *Epilepsy) Disable(*engine.Session) {
	if m.gates != nil {
		m.gates.DisposeAll()
		m.gates = nil
	}
}

// freezeDetector pins animation and transition off on elements that
// animate through their inline style, which the stylesheet cannot beat.
func freezeDetector(s *engine.Session) engine.Detector {
	return func(n *html.Node) bool {
		if skipContent(n) || s.Ledger.Captured(n, engine.StyleField("animation")) {
			return false
		}
		if !animatesInline(n) {
			return false
		}
		for _, d := range frozenStyle {
			s.Ledger.SetStyle(n, d.prop, d.value)
		}
		return true
	}
}

func animatesInline(n *html.Node) bool {
	for _, prop := range []string{"animation", "animation-name", "transition", "transition-property"} {
		v := strings.ToLower(engine.Style(n, prop))
		if v == "" || v == "none" || strings.HasPrefix(v, "none ") {
			continue
		}
		return true
	}
	return false
}
